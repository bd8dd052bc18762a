package suggest

import (
	"fmt"
	"sort"

	"jericho/internal/daykey"
	"jericho/internal/domain"
)

// HistoryType is the display label of a lifecycle event.
type HistoryType string

const (
	HistoryCreated   HistoryType = "CREATED"
	HistoryAccepted  HistoryType = "ACCEPTED"
	HistoryRejected  HistoryType = "REJECTED"
	HistoryIgnored   HistoryType = "IGNORED"
	HistoryDismissed HistoryType = "DISMISSED"
)

var historyLabels = map[domain.SuggestionEventType]HistoryType{
	domain.EventSuggestionCreated:   HistoryCreated,
	domain.EventSuggestionAccepted:  HistoryAccepted,
	domain.EventSuggestionRejected:  HistoryRejected,
	domain.EventSuggestionIgnored:   HistoryIgnored,
	domain.EventSuggestionDismissed: HistoryDismissed,
}

const DefaultWindowDays = 14

// Filters are allow-lists; an empty list allows everything.
type Filters struct {
	Types   []HistoryType   `json:"types,omitempty"`
	Domains []domain.Domain `json:"domains,omitempty"`
	Reasons []string        `json:"reasons,omitempty"`
}

type HistoryInput struct {
	Events      []domain.SuggestionEvent
	Suggestions map[string]domain.SuggestedBlock
	NowDayKey   string
	WindowDays  int
	Filters     Filters
	TimeZone    string
}

// HistoryItem is one display row.
type HistoryItem struct {
	ID           string        `json:"id"`
	DayKey       string        `json:"day_key"`
	Type         HistoryType   `json:"type"`
	SuggestionID string        `json:"suggestion_id"`
	Reason       string        `json:"reason,omitempty"`
	Domain       domain.Domain `json:"domain,omitempty"`
	Title        string        `json:"title,omitempty"`
	Archived     bool          `json:"archived"`
	AtISO        string        `json:"at"`
	Index        int           `json:"index"`
}

// ProjectHistory maps lifecycle events inside the inclusive window
// [NowDayKey-(WindowDays-1), NowDayKey] to display rows. Rows whose
// suggestion is missing from the lookup are archived. Rows sort by day key
// descending, then timestamp ascending, then log position.
func ProjectHistory(in HistoryInput) []HistoryItem {
	out := []HistoryItem{}
	if len(in.Events) == 0 || !daykey.Valid(in.NowDayKey) {
		return out
	}
	window := in.WindowDays
	if window <= 0 {
		window = DefaultWindowDays
	}
	startKey, err := daykey.AddDays(in.NowDayKey, -(window - 1))
	if err != nil {
		return out
	}
	for idx, e := range in.Events {
		label, ok := historyLabels[e.Type]
		if !ok {
			continue
		}
		dayKey := e.DayKey
		if dayKey == "" && e.AtISO != "" {
			if k, err := daykey.FromISO(e.AtISO, in.TimeZone); err == nil {
				dayKey = k
			}
		}
		if dayKey == "" || dayKey < startKey || dayKey > in.NowDayKey {
			continue
		}
		sid := e.Subject()
		item := HistoryItem{
			ID:           e.ID,
			DayKey:       dayKey,
			Type:         label,
			SuggestionID: sid,
			Reason:       e.Reason,
			Archived:     true,
			AtISO:        e.AtISO,
			Index:        idx,
		}
		if item.ID == "" {
			ref := sid
			if ref == "" {
				ref = fmt.Sprint(idx)
			}
			item.ID = string(label) + "-" + ref
		}
		if s, found := in.Suggestions[sid]; sid != "" && found {
			item.Archived = false
			item.Domain = s.Domain
			item.Title = s.Title
		}
		if !in.Filters.allows(item) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DayKey != b.DayKey {
			return a.DayKey > b.DayKey
		}
		if a.AtISO != b.AtISO {
			return a.AtISO < b.AtISO
		}
		return a.Index < b.Index
	})
	return out
}

func (f Filters) allows(it HistoryItem) bool {
	if len(f.Types) > 0 && !containsType(f.Types, it.Type) {
		return false
	}
	if len(f.Domains) > 0 && !containsDomain(f.Domains, it.Domain) {
		return false
	}
	if len(f.Reasons) > 0 && !containsString(f.Reasons, it.Reason) {
		return false
	}
	return true
}

func containsType(list []HistoryType, v HistoryType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsDomain(list []domain.Domain, v domain.Domain) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Lookup indexes blocks by id.
func Lookup(blocks []domain.SuggestedBlock) map[string]domain.SuggestedBlock {
	out := make(map[string]domain.SuggestedBlock, len(blocks))
	for _, b := range blocks {
		out[b.ID] = b
	}
	return out
}
