package suggest

import (
	"fmt"
	"time"

	"jericho/internal/daykey"
	"jericho/internal/domain"
)

// Template shapes one generated suggestion.
type Template struct {
	Title           string        `json:"title" yaml:"title"`
	Domain          domain.Domain `json:"domain" yaml:"domain"`
	DurationMinutes int           `json:"duration_minutes" yaml:"duration_minutes"`
	Frequency       string        `json:"frequency" yaml:"frequency"`
	Reason          string        `json:"reason" yaml:"reason"`
}

// GenerateInput parameterises Generate. Slots are HH:MM start times; one
// slot is used per day unless more than seven blocks a week are asked for,
// in which case two are.
type GenerateInput struct {
	GoalID        string
	GoalText      string
	PrimaryDomain domain.Domain
	StartDayKey   string
	BlocksPerWeek int
	DaysPerWeek   int
	Templates     []Template
	Slots         []string
	Reserved      map[string]bool
	Location      *time.Location
}

var DefaultSlots = []string{"09:00", "16:00"}

// SuggestionID is the deterministic id of the n-th suggestion for a goal.
func SuggestionID(goalID string, n int) string {
	return fmt.Sprintf("sugg-%s-%d", goalID, n)
}

// Generate lays out BlocksPerWeek suggestions from StartDayKey onwards.
// Reserved ids are skipped without consuming a placement, so ids of
// accepted or rejected suggestions are never reused.
func Generate(in GenerateInput) []domain.SuggestedBlock {
	slots := in.Slots
	if len(slots) == 0 {
		slots = DefaultSlots
	}
	if in.BlocksPerWeek <= 7 {
		slots = slots[:1]
	} else if len(slots) > 2 {
		slots = slots[:2]
	}
	goalText := in.GoalText
	if goalText == "" {
		goalText = "your goal"
	}
	out := []domain.SuggestedBlock{}
	idx, seq := 0, 0
	for seq < in.BlocksPerWeek {
		idx++
		id := SuggestionID(in.GoalID, idx)
		if in.Reserved[id] {
			continue
		}
		dayKey, err := daykey.AddDays(in.StartDayKey, seq/len(slots))
		if err != nil {
			break
		}
		slot := slots[seq%len(slots)]
		tmpl := fallbackTemplate(in.PrimaryDomain)
		if len(in.Templates) > 0 {
			tmpl = in.Templates[seq%len(in.Templates)]
		}
		seq++
		clock, err := daykey.ParseClock(slot)
		if err != nil {
			continue
		}
		start, err := daykey.LocalStart(dayKey, clock, in.Location)
		if err != nil {
			continue
		}
		end := start.Add(time.Duration(tmpl.DurationMinutes) * time.Minute)
		out = append(out, domain.SuggestedBlock{
			ID:              id,
			GoalID:          in.GoalID,
			Status:          domain.SuggestionSuggested,
			Domain:          domain.NormalizeDomain(string(tmpl.Domain)),
			Title:           tmpl.Title,
			DurationMinutes: tmpl.DurationMinutes,
			DayKey:          dayKey,
			StartTime:       clock.String(),
			StartISO:        start.UTC().Format(time.RFC3339),
			EndISO:          end.UTC().Format(time.RFC3339),
			Frequency:       tmpl.Frequency,
			WhyThis:         fmt.Sprintf("%s for “%s”.", tmpl.Reason, goalText),
			Assumption:      fmt.Sprintf("Assuming %d days/week execution.", in.DaysPerWeek),
		})
	}
	return out
}

func fallbackTemplate(d domain.Domain) Template {
	return Template{
		Title:           d.Title() + " block",
		Domain:          d,
		DurationMinutes: 45,
		Frequency:       "weekly",
		Reason:          "maintain momentum",
	}
}

const (
	MinDaysPerWeek = 3
	MaxDaysPerWeek = 7
)

// BlocksPerWeek converts a days-per-week commitment into a block count,
// two per day bounded to [6, 14].
func BlocksPerWeek(daysPerWeek int) int {
	return min(14, max(6, daysPerWeek*2))
}
