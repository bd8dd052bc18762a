package domain

import "strings"

// Domain is one of the four fixed life areas a block, goal or capability
// belongs to.
type Domain string

const (
	Body      Domain = "BODY"
	Creation  Domain = "CREATION"
	Resources Domain = "RESOURCES"
	Focus     Domain = "FOCUS"
)

// Domains lists the taxonomy in display order.
var Domains = []Domain{Body, Resources, Creation, Focus}

// NormalizeDomain maps free-form input onto the taxonomy. Anything
// unrecognised becomes Focus.
func NormalizeDomain(s string) Domain {
	switch d := Domain(strings.ToUpper(strings.TrimSpace(s))); d {
	case Body, Creation, Resources, Focus:
		return d
	}
	return Focus
}

// ParseDomain is NormalizeDomain without the fallback.
func ParseDomain(s string) (Domain, bool) {
	switch d := Domain(strings.ToUpper(strings.TrimSpace(s))); d {
	case Body, Creation, Resources, Focus:
		return d, true
	}
	return "", false
}

// Title returns the capitalised label, which doubles as the practice key.
func (d Domain) Title() string {
	if d == "" {
		return ""
	}
	s := strings.ToLower(string(d))
	return strings.ToUpper(s[:1]) + s[1:]
}

// Purpose documents what work in the domain is for.
func (d Domain) Purpose() string {
	switch d {
	case Body:
		return "capacity"
	case Creation:
		return "artifact creation"
	case Resources:
		return "leverage acquisition"
	case Focus:
		return "decision clarity"
	}
	return ""
}

const (
	BlockPending   = "pending"
	BlockCompleted = "completed"
	BlockSkipped   = "skipped"
)

// Block is a scheduled interval. Start and End are ISO instants kept as
// received so that unparseable values can be reported rather than lost.
type Block struct {
	ID       string `json:"id"`
	GoalID   string `json:"goal_id,omitempty"`
	Start    string `json:"start" format:"date-time"`
	End      string `json:"end" format:"date-time"`
	Practice string `json:"practice,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status" enum:"pending,completed,skipped"`
	Label    string `json:"label,omitempty"`
}

// IsCompleted accepts both spellings seen in imported calendars.
func (b Block) IsCompleted() bool {
	return b.Status == BlockCompleted || b.Status == "complete"
}

type Goal struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Deadline  string `json:"deadline,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Window is the half-open day key range [Start, EndExclusive). When Include
// is non-empty only those day keys count, even inside the range.
type Window struct {
	Start        string   `json:"start"`
	EndExclusive string   `json:"end_exclusive"`
	Include      []string `json:"include,omitempty"`
}

type SuggestionStatus string

const (
	SuggestionSuggested SuggestionStatus = "suggested"
	SuggestionAccepted  SuggestionStatus = "accepted"
	SuggestionRejected  SuggestionStatus = "rejected"
	SuggestionIgnored   SuggestionStatus = "ignored"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

type SuggestedBlock struct {
	ID              string           `json:"id"`
	GoalID          string           `json:"goal_id"`
	Status          SuggestionStatus `json:"status" enum:"suggested,accepted,rejected,ignored,dismissed"`
	Domain          Domain           `json:"domain"`
	Title           string           `json:"title"`
	DurationMinutes int              `json:"duration_minutes"`
	DayKey          string           `json:"day_key"`
	StartTime       string           `json:"start_time"`
	StartISO        string           `json:"start" format:"date-time"`
	EndISO          string           `json:"end" format:"date-time"`
	Frequency       string           `json:"frequency,omitempty"`
	WhyThis         string           `json:"why_this,omitempty"`
	Assumption      string           `json:"assumption,omitempty"`
}

type SuggestionEventType string

const (
	EventSuggestionCreated     SuggestionEventType = "suggested_block_created"
	EventSuggestionAccepted    SuggestionEventType = "suggested_block_accepted"
	EventSuggestionRejected    SuggestionEventType = "suggestion_rejected"
	EventSuggestionIgnored     SuggestionEventType = "suggestion_ignored"
	EventSuggestionDismissed   SuggestionEventType = "suggestion_dismissed"
	EventSuggestionsRecomputed SuggestionEventType = "suggestions_recomputed"
)

// SuggestionEvent is one entry in the append-only suggestion log.
type SuggestionEvent struct {
	ID           string              `json:"id"`
	Type         SuggestionEventType `json:"type"`
	GoalID       string              `json:"goal_id,omitempty"`
	SuggestionID string              `json:"suggestion_id,omitempty"`
	ProposalID   string              `json:"proposal_id,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	DayKey       string              `json:"day_key,omitempty"`
	AtISO        string              `json:"at" format:"date-time"`
	PreviousIDs  []string            `json:"previous_ids,omitempty"`
	NextIDs      []string            `json:"next_ids,omitempty"`
}

// Subject returns the suggestion the event refers to.
func (e SuggestionEvent) Subject() string {
	if e.SuggestionID != "" {
		return e.SuggestionID
	}
	return e.ProposalID
}

type CapabilityRequirement struct {
	GoalID       string  `json:"goal_id" yaml:"goal_id,omitempty"`
	Domain       string  `json:"domain" yaml:"domain"`
	Capability   string  `json:"capability" yaml:"capability"`
	TargetLevel  float64 `json:"target_level" yaml:"target_level"`
	CurrentLevel float64 `json:"current_level" yaml:"current_level"`
	Weight       float64 `json:"weight" yaml:"weight"`
}

type CapabilityChange struct {
	Domain     string  `json:"domain"`
	Capability string  `json:"capability"`
	Delta      float64 `json:"delta"`
}

// CapabilityCycle is one recorded round of capability changes together with
// the integrity score observed when they were made.
type CapabilityCycle struct {
	ID        string             `json:"id"`
	GoalID    string             `json:"goal_id"`
	AtISO     string             `json:"at" format:"date-time"`
	Integrity float64            `json:"integrity"`
	Changes   []CapabilityChange `json:"changes"`
}
