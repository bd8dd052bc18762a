// Package goalprofile classifies a free-text goal and deadline into a
// dominant domain plus an urgency signal. Two strategies exist with
// different semantics; pick one with New.
package goalprofile

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"jericho/internal/daykey"
	"jericho/internal/domain"
)

type Strategy string

const (
	StrategyKeyword  Strategy = "keyword"
	StrategyGoalType Strategy = "goal_type"
)

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Input is what both strategies classify. Today is a day key; Deadline may
// be a day key or an instant, and is read in TimeZone.
type Input struct {
	Text     string
	Deadline string
	Today    string
	TimeZone string
}

// Profile is derived on every call and never cached.
type Profile struct {
	Strategy       Strategy      `json:"strategy"`
	GoalType       string        `json:"goal_type,omitempty"`
	DominantDomain domain.Domain `json:"dominant_domain"`
	Urgency        Urgency       `json:"urgency,omitempty"`
	Pressure       float64       `json:"pressure"`
	DaysRemaining  int           `json:"days_remaining"`
	Tokens         []string      `json:"tokens"`
}

// HasToken reports whether the goal text contained t.
func (p Profile) HasToken(t string) bool {
	for _, tok := range p.Tokens {
		if tok == t {
			return true
		}
	}
	return false
}

// Classifier maps goal text to a profile.
type Classifier interface {
	Strategy() Strategy
	Classify(in Input) Profile
}

// New returns the classifier for a strategy name.
func New(s Strategy) (Classifier, error) {
	switch s {
	case StrategyKeyword, "":
		return KeywordClassifier{}, nil
	case StrategyGoalType:
		return GoalTypeClassifier{}, nil
	}
	return nil, fmt.Errorf("unknown classifier %q", s)
}

var splitRe = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize lowercases text and splits it on non-alphanumerics.
func Tokenize(text string) []string {
	parts := splitRe.Split(strings.ToLower(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// daysRemaining counts calendar days from today to the deadline, never
// below zero. ok is false when there is no usable deadline.
func daysRemaining(in Input) (int, bool) {
	if strings.TrimSpace(in.Deadline) == "" || !daykey.Valid(in.Today) {
		return 0, false
	}
	deadline, err := daykey.FromISO(in.Deadline, in.TimeZone)
	if err != nil {
		return 0, false
	}
	n, err := daykey.Diff(in.Today, deadline)
	if err != nil {
		return 0, false
	}
	return max(0, n), true
}

var domainKeywords = []struct {
	domain domain.Domain
	words  []string
}{
	{domain.Resources, []string{"money", "revenue", "sales", "client", "customers", "customer", "deal", "cash"}},
	{domain.Creation, []string{"music", "album", "song", "label", "content", "video", "script", "write", "record"}},
	{domain.Body, []string{"sleep", "gym", "health", "food", "run", "workout", "exercise", "rest"}},
}

const noDeadlineDays = 999

// KeywordClassifier checks keyword lists in priority order
// Resources, Creation, Body and falls back to Focus. Urgency is banded.
type KeywordClassifier struct{}

func (KeywordClassifier) Strategy() Strategy { return StrategyKeyword }

func (KeywordClassifier) Classify(in Input) Profile {
	tokens := Tokenize(in.Text)
	p := Profile{Strategy: StrategyKeyword, DominantDomain: domain.Focus, Tokens: tokens}
	for _, entry := range domainKeywords {
		if anyToken(tokens, entry.words) {
			p.DominantDomain = entry.domain
			break
		}
	}
	days, ok := daysRemaining(in)
	if !ok {
		days = noDeadlineDays
	}
	p.DaysRemaining = days
	switch {
	case days <= 14:
		p.Urgency = UrgencyHigh
	case days <= 60:
		p.Urgency = UrgencyMedium
	default:
		p.Urgency = UrgencyLow
	}
	return p
}

func anyToken(tokens, words []string) bool {
	for _, w := range words {
		if containsToken(tokens, w) {
			return true
		}
	}
	return false
}

// GoalType is one row of the goal type table.
type GoalType struct {
	Type   string
	Domain domain.Domain
	Tokens []string
}

// GoalTypes is ranked: on equal overlap the earlier row wins.
var GoalTypes = []GoalType{
	{"SHIP_CREATIVE", domain.Creation, []string{"ship", "publish", "launch", "album", "book", "design", "music", "art"}},
	{"BUILD_SYSTEM", domain.Focus, []string{"system", "process", "automation", "architecture", "refactor", "implementation"}},
	{"RAISE_CAPITAL", domain.Resources, []string{"fund", "capital", "investor", "pitch", "deck", "finance"}},
	{"STABILIZE_SELF", domain.Body, []string{"health", "sleep", "recovery", "rest", "stress"}},
	{"GROW_AUDIENCE", domain.Resources, []string{"audience", "subscribers", "marketing", "growth", "followers"}},
	{"OPERATIONS", domain.Focus, []string{"operations", "ops", "support", "tickets", "maintenance"}},
}

const pressureHorizonDays = 90

// GoalTypeClassifier picks the goal type with the largest token overlap and
// derives a continuous pressure = clamp(1 - days/90, 0, 1).
type GoalTypeClassifier struct{}

func (GoalTypeClassifier) Strategy() Strategy { return StrategyGoalType }

func (GoalTypeClassifier) Classify(in Input) Profile {
	tokens := Tokenize(in.Text)
	best, bestScore := GoalTypes[0], -1
	for _, gt := range GoalTypes {
		overlap := 0
		for _, t := range gt.Tokens {
			if containsToken(tokens, t) {
				overlap++
			}
		}
		if overlap > bestScore {
			best, bestScore = gt, overlap
		}
	}
	days, ok := daysRemaining(in)
	if !ok {
		days = pressureHorizonDays
	}
	pressure := math.Max(0, math.Min(1, 1-float64(days)/pressureHorizonDays))
	return Profile{
		Strategy:       StrategyGoalType,
		GoalType:       best.Type,
		DominantDomain: best.Domain,
		Pressure:       pressure,
		DaysRemaining:  days,
		Tokens:         tokens,
	}
}

func containsToken(tokens []string, t string) bool {
	for _, tok := range tokens {
		if tok == t {
			return true
		}
	}
	return false
}
