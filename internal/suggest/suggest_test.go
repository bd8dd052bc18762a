package suggest_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jericho/internal/daykey"
	"jericho/internal/domain"
	"jericho/internal/suggest"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := daykey.Location("America/Chicago")
	require.NoError(t, err)
	return loc
}

func stamp(day string, hour int) suggest.Stamp {
	at, _ := time.Parse(daykey.Layout, day)
	return suggest.Stamp{At: at.Add(time.Duration(hour) * time.Hour), DayKey: day}
}

func planInput(t *testing.T, days int) suggest.PlanInput {
	return suggest.PlanInput{
		GoalID:        "g1",
		GoalText:      "Ship the album",
		PrimaryDomain: domain.Creation,
		StartDayKey:   "2026-01-05",
		DaysPerWeek:   days,
		Location:      chicago(t),
	}
}

func ids(prefix string, from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, suggest.SuggestionID(prefix, i))
	}
	return out
}

func TestGenerateSlotsAndReservedIDs(t *testing.T) {
	out := suggest.Generate(suggest.GenerateInput{
		GoalID:        "g",
		GoalText:      "Ship the album",
		PrimaryDomain: domain.Creation,
		StartDayKey:   "2026-01-05",
		BlocksPerWeek: 10,
		DaysPerWeek:   5,
		Reserved:      map[string]bool{"sugg-g-1": true},
		Location:      chicago(t),
	})
	require.Len(t, out, 10)
	assert.Equal(t, "sugg-g-2", out[0].ID)
	assert.Equal(t, "2026-01-05", out[0].DayKey)
	assert.Equal(t, "09:00", out[0].StartTime)
	assert.Equal(t, "2026-01-05T15:00:00Z", out[0].StartISO)
	assert.Equal(t, "2026-01-05T15:45:00Z", out[0].EndISO)
	assert.Equal(t, "16:00", out[1].StartTime)
	assert.Equal(t, "2026-01-06", out[2].DayKey)
	assert.Equal(t, "Creation block", out[0].Title)
	assert.Equal(t, "maintain momentum for “Ship the album”.", out[0].WhyThis)
	assert.Equal(t, "Assuming 5 days/week execution.", out[0].Assumption)

	single := suggest.Generate(suggest.GenerateInput{
		GoalID:        "g",
		StartDayKey:   "2026-01-05",
		BlocksPerWeek: 6,
		Templates: []suggest.Template{
			{Title: "Mix", Domain: domain.Creation, DurationMinutes: 60, Reason: "finish"},
			{Title: "Walk", Domain: "body", DurationMinutes: 20, Reason: "recover"},
		},
		Location: chicago(t),
	})
	require.Len(t, single, 6)
	assert.Equal(t, "2026-01-10", single[5].DayKey, "one slot per day")
	assert.Equal(t, "Walk", single[1].Title)
	assert.Equal(t, domain.Body, single[1].Domain)
	assert.Equal(t, "finish for “your goal”.", single[0].WhyThis)
}

func TestBlocksPerWeek(t *testing.T) {
	assert.Equal(t, 6, suggest.BlocksPerWeek(3))
	assert.Equal(t, 10, suggest.BlocksPerWeek(5))
	assert.Equal(t, 14, suggest.BlocksPerWeek(7))
}

func TestRecalibrateRoundTripPreservesDecisions(t *testing.T) {
	day := stamp("2026-01-05", 14)
	l, err := suggest.Ledger{}.Plan(planInput(t, 3), day)
	require.NoError(t, err)
	original := l.Suggested()
	require.Equal(t, ids("g1", 1, 6), original)
	require.Len(t, l.Events, 6)
	assert.Equal(t, domain.EventSuggestionCreated, l.Events[0].Type)
	assert.Equal(t, "sev-sugg-g1-1", l.Events[0].ID)

	l, applied, err := l.Accept("sugg-g1-1", day)
	require.NoError(t, err)
	require.True(t, applied)
	l, _, err = l.Reject("sugg-g1-2", suggest.ReasonOvercommitted, day)
	require.NoError(t, err)

	five, applied, err := l.Recalibrate(planInput(t, 5), day)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, ids("g1", 3, 10), five.Suggested())
	last := five.Events[len(five.Events)-1]
	assert.Equal(t, domain.EventSuggestionsRecomputed, last.Type)
	assert.Equal(t, ids("g1", 3, 6), last.PreviousIDs)
	assert.Equal(t, ids("g1", 3, 10), last.NextIDs)

	back, _, err := five.Recalibrate(planInput(t, 3), day)
	require.NoError(t, err)
	assert.Equal(t, original[2:], back.Suggested())

	accepted, ok := back.Find("sugg-g1-1")
	require.True(t, ok)
	assert.Equal(t, domain.SuggestionAccepted, accepted.Status)
	rejected, ok := back.Find("sugg-g1-2")
	require.True(t, ok)
	assert.Equal(t, domain.SuggestionRejected, rejected.Status)
	assert.Equal(t, l.Blocks[:2], back.Blocks[:2], "decided records are untouched")

	same, applied, err := back.Recalibrate(planInput(t, 3), day)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, same.Events, len(back.Events))
}

func TestTransitionsAreIdempotentAndOneWay(t *testing.T) {
	day := stamp("2026-01-05", 14)
	l, err := suggest.Ledger{}.Plan(planInput(t, 3), day)
	require.NoError(t, err)
	planned := len(l.Events)

	l, applied, err := l.Reject("sugg-g1-2", suggest.ReasonTooLong, day)
	require.NoError(t, err)
	require.True(t, applied)
	require.Len(t, l.Events, planned+1)

	again, applied, err := l.Reject("sugg-g1-2", suggest.ReasonTooLong, stamp("2026-01-06", 10))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, again.Events, planned+1)

	_, _, err = l.Accept("sugg-g1-2", day)
	assert.True(t, errors.Is(err, suggest.ErrInvalidTransition))

	_, _, err = l.Accept("sugg-g1-99", day)
	assert.True(t, errors.Is(err, suggest.ErrUnknownSuggestion))

	_, _, err = l.Reject("sugg-g1-3", "MEH", day)
	assert.True(t, errors.Is(err, suggest.ErrInvalidReason))

	l, _, err = l.Ignore("sugg-g1-3", day)
	require.NoError(t, err)
	l, _, err = l.Dismiss("sugg-g1-4", day)
	require.NoError(t, err)
	cur := suggest.Lookup(l.Current())
	assert.Equal(t, domain.SuggestionIgnored, cur["sugg-g1-3"].Status)
	assert.Equal(t, domain.SuggestionDismissed, cur["sugg-g1-4"].Status)
	assert.Equal(t, suggest.Preview{TotalBlocks: 3, TotalMinutes: 135}, l.Preview())

	_, err = l.Plan(planInput(t, 3), day)
	assert.True(t, errors.Is(err, suggest.ErrAlreadyPlanned))
	_, _, err = l.Recalibrate(planInput(t, 8), day)
	assert.True(t, errors.Is(err, suggest.ErrInvalidDaysPerWeek))
}

func TestLedgerCommandsDoNotMutateReceiver(t *testing.T) {
	day := stamp("2026-01-05", 14)
	l, err := suggest.Ledger{}.Plan(planInput(t, 3), day)
	require.NoError(t, err)
	before := suggest.Ledger{
		Blocks: append([]domain.SuggestedBlock(nil), l.Blocks...),
		Events: append([]domain.SuggestionEvent(nil), l.Events...),
	}
	_, _, _ = l.Accept("sugg-g1-1", day)
	_, _, _ = l.Recalibrate(planInput(t, 6), day)
	if diff := cmp.Diff(before, l); diff != "" {
		t.Fatalf("ledger mutated:\n%s", diff)
	}
}

func historyFixture() []domain.SuggestionEvent {
	return []domain.SuggestionEvent{
		{ID: "e1", Type: domain.EventSuggestionCreated, ProposalID: "s1", DayKey: "2026-01-07", AtISO: "2026-01-07T10:00:00.000Z"},
		{ID: "e2", Type: domain.EventSuggestionRejected, SuggestionID: "s2", Reason: "OVERCOMMITTED", DayKey: "2026-01-08", AtISO: "2026-01-08T09:00:00.000Z"},
		{ID: "e3", Type: domain.EventSuggestionAccepted, ProposalID: "s1", DayKey: "2026-01-08", AtISO: "2026-01-08T08:00:00.000Z"},
		{ID: "e4", Type: domain.EventSuggestionCreated, ProposalID: "s3", DayKey: "2025-12-30", AtISO: "2025-12-30T12:00:00.000Z"},
		{ID: "e5", Type: domain.EventSuggestionRejected, SuggestionID: "s3", Reason: "TOO_LONG", DayKey: "2025-12-20", AtISO: "2025-12-20T12:00:00.000Z"},
		{ID: "e6", Type: domain.EventSuggestionsRecomputed, DayKey: "2026-01-08", AtISO: "2026-01-08T07:00:00.000Z"},
	}
}

func TestProjectHistoryWindowAndOrder(t *testing.T) {
	rows := suggest.ProjectHistory(suggest.HistoryInput{
		Events:      historyFixture(),
		Suggestions: map[string]domain.SuggestedBlock{"s1": {ID: "s1", Title: "Deep work sprint", Domain: domain.Creation}},
		NowDayKey:   "2026-01-08",
		WindowDays:  14,
	})
	var got []string
	for _, r := range rows {
		got = append(got, r.ID)
	}
	assert.Equal(t, []string{"e3", "e2", "e1", "e4"}, got)
	assert.Equal(t, suggest.HistoryAccepted, rows[0].Type)
	assert.False(t, rows[0].Archived)
	assert.Equal(t, "Deep work sprint", rows[0].Title)
	assert.True(t, rows[1].Archived)
	assert.Equal(t, "OVERCOMMITTED", rows[1].Reason)
}

func TestProjectHistoryFiltersWithoutMutation(t *testing.T) {
	events := historyFixture()
	lookup := map[string]domain.SuggestedBlock{"s1": {ID: "s1", Title: "Sprint", Domain: domain.Creation}}
	eventsBefore := append([]domain.SuggestionEvent(nil), events...)
	lookupBefore := map[string]domain.SuggestedBlock{"s1": lookup["s1"]}

	in := suggest.HistoryInput{Events: events, Suggestions: lookup, NowDayKey: "2026-01-08", WindowDays: 14}
	in.Filters = suggest.Filters{Types: []suggest.HistoryType{suggest.HistoryRejected}}
	rows := suggest.ProjectHistory(in)
	require.Len(t, rows, 1)
	assert.Equal(t, "e2", rows[0].ID)

	in.Filters = suggest.Filters{Domains: []domain.Domain{domain.Creation}}
	rows = suggest.ProjectHistory(in)
	require.Len(t, rows, 2)
	assert.Equal(t, "e3", rows[0].ID)
	assert.Equal(t, "e1", rows[1].ID)

	in.Filters = suggest.Filters{Reasons: []string{"TOO_LONG"}}
	assert.Empty(t, suggest.ProjectHistory(in), "e5 is outside the window")

	assert.Equal(t, eventsBefore, events)
	assert.Equal(t, lookupBefore, lookup)
}

func TestProjectHistoryDerivesMissingIDsAndDays(t *testing.T) {
	rows := suggest.ProjectHistory(suggest.HistoryInput{
		Events: []domain.SuggestionEvent{
			{Type: domain.EventSuggestionIgnored, SuggestionID: "s9", AtISO: "2026-01-08T03:00:00Z"},
			{Type: domain.EventSuggestionDismissed, AtISO: "2026-01-08T12:00:00Z"},
		},
		NowDayKey: "2026-01-08",
		TimeZone:  "America/Chicago",
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "DISMISSED-1", rows[0].ID)
	assert.Equal(t, "2026-01-08", rows[0].DayKey)
	assert.True(t, rows[0].Archived)
	assert.Equal(t, "IGNORED-s9", rows[1].ID)
	assert.Equal(t, "2026-01-07", rows[1].DayKey, "03:00Z is the previous evening in Chicago")
}

func TestCorrectionSignals(t *testing.T) {
	events := []domain.SuggestionEvent{
		{Type: domain.EventSuggestionRejected, Reason: "OVERCOMMITTED", DayKey: "2026-01-08"},
		{Type: domain.EventSuggestionRejected, Reason: "OVERCOMMITTED", DayKey: "2026-01-02"},
		{Type: domain.EventSuggestionRejected, Reason: "TOO_LONG", DayKey: "2026-01-07"},
		{Type: domain.EventSuggestionRejected, Reason: "declined", DayKey: "2026-01-07"},
		{Type: domain.EventSuggestionRejected, Reason: "TOO_LONG", DayKey: "2025-12-01"},
		{Type: domain.EventSuggestionAccepted, DayKey: "2026-01-08"},
	}
	s := suggest.CorrectionSignals(events, "2026-01-08", 14, "UTC")
	assert.Equal(t, 3, s.TotalRejections)
	assert.Equal(t, 2, s.ByReason[suggest.ReasonOvercommitted])
	assert.InDelta(t, 2.0/3.0, s.Ratios.CapacityPressure, 1e-9)
	assert.InDelta(t, 1.0/3.0, s.Ratios.DurationMismatch, 1e-9)
	assert.Equal(t, 0.0, s.Ratios.PrereqDebt)
}
