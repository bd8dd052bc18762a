// Package nextmove generates today's action candidates, scores them and
// picks a single directive. Selection is fully deterministic so the same
// day replays to the same directive.
package nextmove

import (
	"math"
	"sort"
	"strings"
	"time"

	"jericho/internal/daykey"
	"jericho/internal/domain"
	"jericho/internal/goalprofile"
	"jericho/internal/metrics"
)

type Kind string

const (
	KindScheduledBlock  Kind = "scheduled_block"
	KindGapFill         Kind = "gap_fill"
	KindFirstMove       Kind = "first_move"
	KindExecuteExisting Kind = "EXECUTE_EXISTING"
	KindScheduleNew     Kind = "SCHEDULE_NEW"
	KindNone            Kind = "NONE"
)

// Candidate is an ephemeral scoring unit.
type Candidate struct {
	Kind            Kind          `json:"kind"`
	Domain          domain.Domain `json:"domain"`
	DurationMinutes int           `json:"duration_minutes"`
	StartISO        string        `json:"start,omitempty"`
	BlockID         string        `json:"block_id,omitempty"`
	Title           string        `json:"title"`
	Status          string        `json:"status,omitempty"`
}

type Scored struct {
	Candidate
	Score     int      `json:"score"`
	Rationale []string `json:"rationale"`
}

type DirectiveType string

const (
	DirectiveExecute  DirectiveType = "execute"
	DirectiveSchedule DirectiveType = "schedule"
)

// Directive is the single recommended next action for a day.
type Directive struct {
	Kind            Kind          `json:"kind"`
	Type            DirectiveType `json:"type,omitempty"`
	DayKey          string        `json:"day_key"`
	Domain          domain.Domain `json:"domain,omitempty"`
	Title           string        `json:"title,omitempty"`
	DurationMinutes int           `json:"duration_minutes,omitempty"`
	BlockID         string        `json:"block_id,omitempty"`
	StartISO        string        `json:"start,omitempty"`
	Score           int           `json:"score"`
	Rationale       []string      `json:"rationale"`
	Why             string        `json:"why,omitempty"`
	DoneWhen        string        `json:"done_when"`
}

// Context carries everything a scheme needs for one day. Now is optional;
// when it falls on DayKey, new-block candidates that no longer fit before
// midnight are dropped.
type Context struct {
	DayKey   string
	Location *time.Location
	Blocks   []metrics.NormalizedBlock
	Profile  goalprofile.Profile
	Stats    CompletionStats
	Gaps     map[domain.Domain]float64
	Now      time.Time
}

func (c Context) today() []metrics.NormalizedBlock {
	var out []metrics.NormalizedBlock
	for _, b := range c.Blocks {
		if b.DayKey == c.DayKey {
			out = append(out, b)
		}
	}
	return out
}

// minutesLeft returns the minutes until local midnight, or -1 when Now is
// unset or on another day.
func (c Context) minutesLeft() int {
	if c.Now.IsZero() || daykey.FromTime(c.Now, c.Location) != c.DayKey {
		return -1
	}
	next, err := daykey.AddDays(c.DayKey, 1)
	if err != nil {
		return -1
	}
	midnight, err := daykey.LocalStart(next, daykey.Clock{}, c.Location)
	if err != nil {
		return -1
	}
	return int(midnight.Sub(c.Now).Minutes())
}

func (c Context) fits(minutes int) bool {
	left := c.minutesLeft()
	return left < 0 || minutes <= left
}

// Compute runs the scheme matching the profile's strategy.
func Compute(c Context) Directive {
	if c.Profile.Strategy == goalprofile.StrategyGoalType {
		return GoalType(c)
	}
	return Keyword(c)
}

// None is the directive for a day with no feasible candidate.
func None(dayKey string) Directive {
	return Directive{
		Kind:      KindNone,
		DayKey:    dayKey,
		Rationale: []string{},
		Why:       "No feasible time remaining today.",
		DoneWhen:  "Day ends.",
	}
}

// Secondary is a scheme's third tie-break on duration.
type Secondary int

const (
	ShorterFirst Secondary = iota
	LongerFirst
)

// Select orders scored candidates by score, then earliest start (missing
// starts last), then duration per secondary, then block id and title.
// It returns false when there is nothing to select.
func Select(scored []Scored, secondary Secondary, loc *time.Location) (Scored, bool) {
	if len(scored) == 0 {
		return Scored{}, false
	}
	ordered := append([]Scored(nil), scored...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		as, aok := startOf(a.StartISO, loc)
		bs, bok := startOf(b.StartISO, loc)
		if aok != bok {
			return aok
		}
		if aok && !as.Equal(bs) {
			return as.Before(bs)
		}
		if a.DurationMinutes != b.DurationMinutes {
			if secondary == LongerFirst {
				return a.DurationMinutes > b.DurationMinutes
			}
			return a.DurationMinutes < b.DurationMinutes
		}
		if a.BlockID != b.BlockID {
			return a.BlockID < b.BlockID
		}
		return a.Title < b.Title
	})
	return ordered[0], true
}

func startOf(iso string, loc *time.Location) (time.Time, bool) {
	if iso == "" {
		return time.Time{}, false
	}
	t, err := daykey.ParseInstant(iso, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func estimateDuration(b metrics.NormalizedBlock) int {
	if b.DayKey == "" {
		return 30
	}
	return max(1, int(math.Round(b.DurationMinutes)))
}

func blockTitle(b metrics.NormalizedBlock) string {
	if b.Label != "" {
		return b.Label
	}
	return blockDomain(b).Title() + " block"
}

func isPending(b metrics.NormalizedBlock) bool {
	return b.Status == "" || b.Status == domain.BlockPending
}

func limit(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string{}, s...)
}

func lowerDomain(d domain.Domain) string {
	return strings.ToLower(string(d))
}
