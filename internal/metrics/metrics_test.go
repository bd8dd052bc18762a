package metrics_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jericho/internal/domain"
	"jericho/internal/metrics"
)

const tz = "America/Chicago"

func block(id, start, end, practice, status string) domain.Block {
	return domain.Block{ID: id, Start: start, End: end, Practice: practice, Status: status}
}

func TestNormalizeBlocks(t *testing.T) {
	in := []domain.Block{
		block("a", "2026-01-08T15:00:00Z", "2026-01-08T16:00:00Z", "Body", "completed"),
		{ID: "b", Start: "2026-01-08T16:00:00Z", End: "2026-01-08T16:30:00Z", Practice: "nonsense", Category: "creation", Status: "pending"},
		block("c", "2026-01-08T16:00:00Z", "2026-01-10T16:00:00Z", "", "complete"),
		block("d", "2026-01-08T16:00:00Z", "2026-01-08T15:00:00Z", "focus", "pending"),
		block("e", "garbage", "2026-01-08T15:00:00Z", "Focus", "pending"),
	}
	out, diags := metrics.NormalizeBlocks(in, tz)
	require.Len(t, out, 5)

	assert.Equal(t, 60.0, out[0].PlannedMinutes)
	assert.Equal(t, 60.0, out[0].CompletedMinutes)
	assert.Equal(t, metrics.PracticeBody, out[0].PracticeKey)
	assert.Equal(t, "2026-01-08", out[0].DayKey)

	assert.Equal(t, metrics.PracticeCreation, out[1].PracticeKey)
	assert.Equal(t, 0.0, out[1].CompletedMinutes)

	assert.Equal(t, 1440.0, out[2].DurationMinutes, "clamped to one day")
	assert.Equal(t, metrics.PracticeUnknown, out[2].PracticeKey)
	assert.Equal(t, 1440.0, out[2].CompletedMinutes)

	assert.Equal(t, 0.0, out[3].DurationMinutes, "negative durations clamp to zero")

	assert.Equal(t, "", out[4].DayKey)
	require.Len(t, diags, 1)
	assert.Equal(t, metrics.Diagnostic{BlockID: "e", Source: "block.start", Value: "garbage"}, diags[0])
}

func TestNormalizeBlocksIdempotent(t *testing.T) {
	in := []domain.Block{
		{ID: "a", Start: "2026-01-08T15:00:00Z", End: "2026-01-08T16:00:00Z", Category: "Resources", Status: "complete"},
		block("b", "2026-01-08T15:00:00Z", "2026-01-08T15:20:00Z", "body", "pending"),
		block("c", "2026-01-08T15:00:00Z", "2026-01-08T15:20:00Z", "", "pending"),
	}
	once, _ := metrics.NormalizeBlocks(in, tz)
	twice, _ := metrics.NormalizeBlocks(metrics.Blocks(once), tz)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("normalize not idempotent (-once +twice):\n%s", diff)
	}
}

func TestWindowFilterReasons(t *testing.T) {
	nbs, _ := metrics.NormalizeBlocks([]domain.Block{
		block("in", "2026-01-06T15:00:00Z", "2026-01-06T16:00:00Z", "Body", ""),
		block("out", "2026-01-13T15:00:00Z", "2026-01-13T16:00:00Z", "Body", ""),
		block("pad", "2026-01-07T15:00:00Z", "2026-01-07T16:00:00Z", "Body", ""),
		block("end", "2026-01-12T15:00:00Z", "2026-01-12T16:00:00Z", "Body", ""),
	}, tz)
	w := domain.Window{Start: "2026-01-05", EndExclusive: "2026-01-12"}
	assert.Equal(t, metrics.Decision{Included: true, Reason: metrics.InWindow}, metrics.WindowFilter(w, nbs[0]))
	assert.Equal(t, metrics.OutOfWindow, metrics.WindowFilter(w, nbs[1]).Reason)
	assert.Equal(t, metrics.OutOfWindow, metrics.WindowFilter(w, nbs[3]).Reason, "end day is exclusive")

	w.Include = []string{"2026-01-06"}
	assert.Equal(t, metrics.PaddedDayExcluded, metrics.WindowFilter(w, nbs[2]).Reason)
	assert.True(t, metrics.WindowFilter(w, nbs[0]).Included)
}

func TestComputeWindowMetricsSingleCompletedBlock(t *testing.T) {
	nbs, _ := metrics.NormalizeBlocks([]domain.Block{
		block("a", "2026-01-08T15:00:00Z", "2026-01-08T16:00:00Z", "Focus", "completed"),
	}, tz)
	m := metrics.ComputeWindowMetrics(metrics.WindowInput{
		Blocks: nbs,
		Window: domain.Window{Start: "2026-01-08", EndExclusive: "2026-01-09"},
	})
	assert.Equal(t, 60.0, m.PlannedMinutes)
	assert.Equal(t, 60.0, m.CompletedMinutes)
	assert.Equal(t, 1.0, m.CR)
	assert.Equal(t, []string{"a"}, m.Provenance.IncludedBlockIDs)
}

func TestComputeWindowMetricsTargetsOnlyWhenNothingScheduled(t *testing.T) {
	week := domain.Window{Start: "2026-01-05", EndExclusive: "2026-01-12"}
	targets := metrics.Targets{metrics.PracticeFocus: 60}

	m := metrics.ComputeWindowMetrics(metrics.WindowInput{
		Window:         week,
		PlanSource:     metrics.PlanTargets,
		PatternTargets: targets,
	})
	assert.Equal(t, 420.0, m.PlannedMinutes)
	assert.Equal(t, 0.0, m.CompletedMinutes)
	assert.Equal(t, 0.0, m.Provenance.ScheduledPlannedMinutes)

	nbs, _ := metrics.NormalizeBlocks([]domain.Block{
		block("a", "2026-01-06T15:00:00Z", "2026-01-06T15:30:00Z", "Focus", "pending"),
	}, tz)
	m = metrics.ComputeWindowMetrics(metrics.WindowInput{
		Blocks:         nbs,
		Window:         week,
		PlanSource:     metrics.PlanTargets,
		PatternTargets: targets,
	})
	assert.Equal(t, 30.0, m.PlannedMinutes, "scheduled truth wins")
}

func TestComputeWindowMetricsUnknownSummaryAndDeterminism(t *testing.T) {
	in := []domain.Block{
		block("a", "2026-01-08T15:00:00Z", "2026-01-08T16:00:00Z", "", "completed"),
		block("b", "2026-01-08T17:00:00Z", "2026-01-08T17:30:00Z", "Body", "pending"),
		block("c", "2026-01-20T17:00:00Z", "2026-01-20T17:30:00Z", "Body", "pending"),
	}
	run := func() []byte {
		nbs, _ := metrics.NormalizeBlocks(in, tz)
		m := metrics.ComputeWindowMetrics(metrics.WindowInput{
			Blocks: nbs,
			Window: domain.Window{Start: "2026-01-05", EndExclusive: "2026-01-12"},
		})
		data, err := json.Marshal(m)
		require.NoError(t, err)
		return data
	}
	first := run()
	assert.Equal(t, string(first), string(run()))

	var m metrics.WindowMetrics
	require.NoError(t, json.Unmarshal(first, &m))
	assert.Equal(t, 1, m.Provenance.Summary.Blocks)
	assert.Equal(t, 60.0, m.Provenance.Summary.PlannedMinutes)
	assert.Equal(t, []metrics.Exclusion{{ID: "c", Reason: metrics.OutOfWindow}}, m.Provenance.Excluded)
	assert.InDelta(t, 60.0/90.0, m.CR, 1e-9)
}

func TestComputeDayMetricsMap(t *testing.T) {
	nbs, _ := metrics.NormalizeBlocks([]domain.Block{
		block("a", "2026-01-07T15:00:00Z", "2026-01-07T16:00:00Z", "Body", "completed"),
		block("b", "2026-01-08T15:00:00Z", "2026-01-08T15:30:00Z", "Body", "pending"),
	}, tz)
	got := metrics.ComputeDayMetricsMap(nbs, []string{"2026-01-07", "2026-01-08", "2026-01-07"}, "")
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got["2026-01-07"].CR)
	assert.Equal(t, 30.0, got["2026-01-08"].PlannedMinutes)
	assert.Equal(t, metrics.PaddedDayExcluded, got["2026-01-08"].Provenance.Excluded[0].Reason)
}

func TestTodayInstrumentationSkipsOtherDaysAndUnknown(t *testing.T) {
	nbs, _ := metrics.NormalizeBlocks([]domain.Block{
		block("a", "2026-01-08T15:00:00Z", "2026-01-08T15:45:00Z", "Creation", "completed"),
		block("b", "2026-01-08T16:00:00Z", "2026-01-08T17:00:00Z", "Creation", "pending"),
		block("c", "2026-01-07T16:00:00Z", "2026-01-07T17:00:00Z", "Creation", "completed"),
		block("d", "2026-01-08T18:00:00Z", "2026-01-08T19:00:00Z", "", "completed"),
	}, tz)
	inst := metrics.ComputeTodayDomainInstrumentation("2026-01-08", nbs, metrics.Targets{
		metrics.PracticeCreation: 60,
		metrics.PracticeBody:     30,
	})
	require.Len(t, inst, 4)
	byPractice := map[metrics.Practice]metrics.DomainInstrumentation{}
	for _, r := range inst {
		byPractice[r.Practice] = r
	}
	assert.Equal(t, metrics.DomainInstrumentation{
		Practice: metrics.PracticeCreation, Domain: domain.Creation,
		Target: 60, Scheduled: 105, Completed: 45, Gap: 15,
	}, byPractice[metrics.PracticeCreation])
	assert.Equal(t, 30.0, byPractice[metrics.PracticeBody].Gap)
	assert.Equal(t, 0.0, byPractice[metrics.PracticeFocus].Scheduled)
	assert.Equal(t, 15.0, metrics.GapFor(inst, domain.Creation))
}

func TestGroupPracticeLoadAndDrift(t *testing.T) {
	nbs, _ := metrics.NormalizeBlocks([]domain.Block{
		block("a", "2026-01-08T15:00:00Z", "2026-01-08T16:00:00Z", "Body", "completed"),
		block("b", "2026-01-08T16:00:00Z", "2026-01-08T17:00:00Z", "Body", "pending"),
		block("c", "2026-01-08T18:00:00Z", "2026-01-08T19:00:00Z", "", "completed"),
	}, tz)
	load := metrics.GroupPracticeLoad(nbs, metrics.DefaultUnknownPolicy)
	assert.Equal(t, 120.0, load.Planned[metrics.PracticeBody])
	assert.Equal(t, 60.0, load.UnknownPlannedMinutes)
	assert.Equal(t, 60.0, load.UnknownCompletedMinutes)

	d := metrics.ComputeDrift(nbs, nil, metrics.DefaultUnknownPolicy)
	assert.InDelta(t, 1.5, d.Distance, 1e-9)
	assert.InDelta(t, 0.25, d.Score, 1e-9)
	assert.Equal(t, metrics.BandWeak, d.Band)
	require.Len(t, d.Deficits, 3)
	assert.Equal(t, 30, d.Deficits[0].GapMinutes)

	empty := metrics.ComputeDrift(nil, nil, metrics.DefaultUnknownPolicy)
	assert.Equal(t, 0.0, empty.Score)
	assert.Equal(t, metrics.BandWeak, empty.Band)
}
