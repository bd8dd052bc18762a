package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jericho/internal/config"
	"jericho/internal/db"
	"jericho/internal/domain"
	"jericho/internal/engine"
	"jericho/internal/migrate"
	"jericho/internal/nextmove"
	"jericho/internal/repo"
	"jericho/internal/suggest"
	"jericho/internal/truthpanel"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	now    *time.Time
}

func (env testEnv) advance(d time.Duration) {
	*env.now = env.now.Add(d)
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	cfg := config.Default()
	cfg.Planner.TimeZone = "UTC"
	eng := engine.New(conn, cfg)
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return now }
	env := testEnv{Engine: eng, Ctx: context.Background(), now: &now}

	_, err = eng.SetGoal(env.Ctx, engine.GoalOptions{ID: "g1", Text: "Ship the album", Deadline: "2026-03-01"})
	require.NoError(t, err)
	return env
}

func TestFirstGoalBecomesActive(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SetGoal(env.Ctx, engine.GoalOptions{ID: "g2", Text: "Run a marathon"})
	require.NoError(t, err)

	active, err := env.Engine.ActiveGoal(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, "g1", active.ID)
	assert.Equal(t, "2026-03-01", active.Deadline)

	_, err = env.Engine.ActivateGoal(env.Ctx, "g2")
	require.NoError(t, err)
	active, err = env.Engine.ActiveGoal(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, "g2", active.ID)

	_, err = env.Engine.ActivateGoal(env.Ctx, "missing")
	assert.True(t, errors.Is(err, repo.ErrNotFound))
	_, err = env.Engine.SetGoal(env.Ctx, engine.GoalOptions{})
	assert.True(t, errors.Is(err, engine.ErrInvalid))
}

func TestAddBlockValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		opts engine.BlockOptions
	}{
		{"bad start", engine.BlockOptions{Start: "soon", End: "2026-01-05T10:00:00Z"}},
		{"end before start", engine.BlockOptions{Start: "2026-01-05T10:00:00Z", End: "2026-01-05T09:00:00Z"}},
		{"bad status", engine.BlockOptions{Start: "2026-01-05T09:00:00Z", End: "2026-01-05T10:00:00Z", Status: "maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.AddBlock(env.Ctx, tc.opts)
			assert.True(t, errors.Is(err, engine.ErrInvalid), "got %v", err)
		})
	}

	b, err := env.Engine.AddBlock(env.Ctx, engine.BlockOptions{
		ID: "b1", GoalID: "g1", Start: "2026-01-05T09:00:00Z", End: "2026-01-05T10:00:00Z", Practice: "creation",
	})
	require.NoError(t, err)
	assert.Equal(t, "Creation", b.Practice)
	assert.Equal(t, domain.BlockPending, b.Status)

	b, err = env.Engine.ReclassifyBlock(env.Ctx, "b1", "body")
	require.NoError(t, err)
	assert.Equal(t, "Body", b.Practice)
	_, err = env.Engine.ReclassifyBlock(env.Ctx, "b1", "leisure")
	assert.True(t, errors.Is(err, engine.ErrInvalid))

	b, err = env.Engine.CompleteBlock(env.Ctx, "b1")
	require.NoError(t, err)
	assert.True(t, b.IsCompleted())
}

func TestWindowMetricsForOneCompletedBlock(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.AddBlock(env.Ctx, engine.BlockOptions{
		ID: "b1", Start: "2026-01-05T09:00:00Z", End: "2026-01-05T10:00:00Z", Practice: "Creation", Status: domain.BlockCompleted,
	})
	require.NoError(t, err)

	rep, err := env.Engine.WindowMetrics(env.Ctx, engine.WindowOptions{Mode: "day", Anchor: "2026-01-05"})
	require.NoError(t, err)
	assert.Equal(t, 60.0, rep.Metrics.PlannedMinutes)
	assert.Equal(t, 60.0, rep.Metrics.CompletedMinutes)
	assert.Equal(t, 1.0, rep.Metrics.CR)

	rep, err = env.Engine.WindowMetrics(env.Ctx, engine.WindowOptions{Mode: "day", Anchor: "2026-01-06"})
	require.NoError(t, err)
	assert.Zero(t, rep.Metrics.PlannedMinutes)

	_, err = env.Engine.WindowMetrics(env.Ctx, engine.WindowOptions{Mode: "fortnight"})
	assert.True(t, errors.Is(err, engine.ErrInvalid))
}

func TestSuggestionLifecyclePersists(t *testing.T) {
	env := newTestEnv(t)
	plan, err := env.Engine.PlanSuggestions(env.Ctx, "", 3, "2026-01-05")
	require.NoError(t, err)
	require.Len(t, plan.Suggestions, 6)
	assert.Equal(t, "sugg-g1-1", plan.Suggestions[0].ID)
	assert.Equal(t, "2026-01-05T09:00:00Z", plan.Suggestions[0].StartISO)
	assert.Equal(t, 6, plan.Preview.TotalBlocks)

	_, err = env.Engine.PlanSuggestions(env.Ctx, "g1", 3, "")
	assert.True(t, errors.Is(err, suggest.ErrAlreadyPlanned))

	env.advance(time.Hour)
	accepted, applied, err := env.Engine.AcceptSuggestion(env.Ctx, "sugg-g1-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.SuggestionAccepted, accepted.Status)
	block, err := env.Engine.Repo.GetBlock(env.Ctx, "sugg-g1-1")
	require.NoError(t, err)
	assert.Equal(t, accepted.Title, block.Label)

	_, applied, err = env.Engine.AcceptSuggestion(env.Ctx, "sugg-g1-1")
	require.NoError(t, err)
	assert.False(t, applied)

	env.advance(time.Hour)
	_, _, err = env.Engine.RejectSuggestion(env.Ctx, "sugg-g1-2", "BORED")
	assert.True(t, errors.Is(err, suggest.ErrInvalidReason))
	_, applied, err = env.Engine.RejectSuggestion(env.Ctx, "sugg-g1-2", "TOO_LONG")
	require.NoError(t, err)
	assert.True(t, applied)
	_, _, err = env.Engine.AcceptSuggestion(env.Ctx, "sugg-g1-2")
	assert.True(t, errors.Is(err, suggest.ErrInvalidTransition))
	_, _, err = env.Engine.DismissSuggestion(env.Ctx, "sugg-g1-99")
	assert.True(t, errors.Is(err, suggest.ErrUnknownSuggestion))

	plan, applied, err = env.Engine.Recalibrate(env.Ctx, "g1", 5)
	require.NoError(t, err)
	assert.True(t, applied)
	require.Len(t, plan.Suggestions, 10)
	assert.Equal(t, "sugg-g1-1", plan.Suggestions[0].ID)
	assert.Equal(t, domain.SuggestionRejected, plan.Suggestions[1].Status)
	assert.Equal(t, "sugg-g1-3", plan.Suggestions[2].ID)
	assert.Equal(t, "sugg-g1-10", plan.Suggestions[9].ID)
	assert.Equal(t, 8, plan.Preview.TotalBlocks)

	_, applied, err = env.Engine.Recalibrate(env.Ctx, "g1", 5)
	require.NoError(t, err)
	assert.False(t, applied)

	listed, err := env.Engine.ListSuggestions(env.Ctx, "g1")
	require.NoError(t, err)
	if diff := cmp.Diff(plan.Suggestions, listed.Suggestions); diff != "" {
		t.Fatalf("stored suggestions differ (-recalibrated +listed):\n%s", diff)
	}

	rows, err := env.Engine.SuggestionHistory(env.Ctx, engine.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, suggest.HistoryCreated, rows[0].Type)
	assert.Equal(t, suggest.HistoryRejected, rows[7].Type)

	rejected, err := env.Engine.SuggestionHistory(env.Ctx, engine.HistoryOptions{
		Filters: suggest.Filters{Types: []suggest.HistoryType{suggest.HistoryRejected}},
	})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "TOO_LONG", rejected[0].Reason)
	assert.False(t, rejected[0].Archived)

	signals, err := env.Engine.CorrectionSignals(env.Ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, signals.TotalRejections)
	assert.Equal(t, 1, signals.ByReason[suggest.ReasonTooLong])
}

func TestRecalibrateKeepsPlanStartDay(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.PlanSuggestions(env.Ctx, "g1", 3, "2026-01-05")
	require.NoError(t, err)
	_, _, err = env.Engine.AcceptSuggestion(env.Ctx, "sugg-g1-2")
	require.NoError(t, err)
	_, _, err = env.Engine.RejectSuggestion(env.Ctx, "sugg-g1-4", "WRONG_TIME")
	require.NoError(t, err)

	start, err := env.Engine.Repo.GetState(env.Ctx, repo.PlanStartKey("g1"))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-05", start)

	_, applied, err := env.Engine.Recalibrate(env.Ctx, "g1", 5)
	require.NoError(t, err)
	require.True(t, applied)
	plan, applied, err := env.Engine.Recalibrate(env.Ctx, "g1", 3)
	require.NoError(t, err)
	require.True(t, applied)

	days := map[string]string{}
	starts := map[string]string{}
	for _, s := range plan.Suggestions {
		days[s.ID] = s.DayKey
		starts[s.ID] = s.StartISO
	}
	want := map[string]string{
		"sugg-g1-2": "2026-01-06",
		"sugg-g1-4": "2026-01-08",
		"sugg-g1-1": "2026-01-05",
		"sugg-g1-3": "2026-01-06",
		"sugg-g1-5": "2026-01-07",
		"sugg-g1-6": "2026-01-08",
	}
	if diff := cmp.Diff(want, days); diff != "" {
		t.Fatalf("day keys after recalibrating twice (-want +got):\n%s", diff)
	}
	assert.Equal(t, "2026-01-05T09:00:00Z", starts["sugg-g1-1"])
}

func TestNextMoveRecordsDirectiveForTruthPanel(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.AddBlock(env.Ctx, engine.BlockOptions{
		ID: "b1", GoalID: "g1", Start: "2026-01-05T15:00:00Z", End: "2026-01-05T16:00:00Z", Practice: "Creation", Label: "Mix track 3",
	})
	require.NoError(t, err)

	res, err := env.Engine.NextMove(env.Ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "g1", res.GoalID)
	assert.Equal(t, "2026-01-05", res.Directive.DayKey)
	require.NotEqual(t, nextmove.KindNone, res.Directive.Kind)

	panel, err := env.Engine.TruthPanel(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, "g1", panel.GoalID)
	assert.True(t, panel.Sections.Guidance.HasDirective)
	assert.Equal(t, res.Directive.Title, panel.Sections.Guidance.Directive.Title)
	require.Len(t, panel.Errors, 1)
	assert.Equal(t, truthpanel.CodeMissingArtifact, panel.Errors[0].Code)
	assert.Len(t, panel.Errors[0].Fields, 3)
}

func TestImportArtifactsFile(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "artifacts.yml")
	bundle := `directive:
  goal_id: g1
  work_item_id: w-7
  title: Record vocals
feasibility:
  g1:
    status: REQUIRED
    remaining_blocks_total: 12
    workable_days_remaining: 6
    required_blocks_per_day: 2
    completed_blocks_today: 1
    reasons: [behind plan]
directive_eligibility:
  g1:
    allowed: false
    reasons: [feasibility required]
probability:
  g1:
    status: computed
    required_events: 4
    reasons: []
`
	require.NoError(t, os.WriteFile(path, []byte(bundle), 0o644))
	sum, err := env.Engine.ImportArtifactsFile(env.Ctx, path)
	require.NoError(t, err)
	assert.Equal(t, engine.ImportSummary{Feasibility: 1, Eligibility: 1, Probability: 1}, sum)

	panel, err := env.Engine.TruthPanel(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, panel.Errors)
	assert.Equal(t, "REQUIRED", panel.Sections.Feasibility.Status)
	require.NotNil(t, panel.Sections.Feasibility.RequiredBlocksPerDay)
	assert.Equal(t, 2.0, *panel.Sections.Feasibility.RequiredBlocksPerDay)
	require.NotNil(t, panel.Sections.Guidance.Enabled)
	assert.False(t, *panel.Sections.Guidance.Enabled)
	assert.Equal(t, []string{"feasibility required"}, panel.Sections.Guidance.Reasons)
	assert.Equal(t, "Record vocals", panel.Sections.Guidance.Directive.Title)
	assert.Equal(t, "eligible", panel.Sections.Probability.Status)

	require.NoError(t, os.WriteFile(path, []byte("feasibility: [1, 2"), 0o644))
	_, err = env.Engine.ImportArtifactsFile(env.Ctx, path)
	assert.True(t, errors.Is(err, engine.ErrInvalid))
}

func TestAdjustWeightsPersistsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SetRequirements(env.Ctx, "g1", []domain.CapabilityRequirement{
		{Domain: "Execution", Capability: "discipline", TargetLevel: 8, CurrentLevel: 4, Weight: 0.5},
		{Domain: "Planning", Capability: "time_blocking", TargetLevel: 6, CurrentLevel: 3, Weight: 0.5},
	})
	require.NoError(t, err)

	_, err = env.Engine.SetRequirements(env.Ctx, "g1", []domain.CapabilityRequirement{
		{Domain: "Execution", Capability: "discipline"}, {Domain: "execution", Capability: "Discipline"},
	})
	assert.True(t, errors.Is(err, engine.ErrInvalid))

	cycle, err := env.Engine.RecordCycle(env.Ctx, "g1", 80, []domain.CapabilityChange{
		{Domain: "Execution", Capability: "discipline", Delta: 0.5},
	})
	require.NoError(t, err)
	reqs, err := env.Engine.Requirements(env.Ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, reqs[0].CurrentLevel)
	assert.Equal(t, 3.0, reqs[1].CurrentLevel)

	env.advance(time.Minute)
	adj, err := env.Engine.AdjustWeights(env.Ctx, "g1", "")
	require.NoError(t, err)
	var sum float64
	for _, r := range adj.After {
		sum += r.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, adj.After[0].Weight, adj.After[1].Weight)
	assert.Equal(t, 80.0, adj.Snapshot.Integrity.Score)
	assert.Equal(t, "default", adj.Snapshot.UserID)

	fresh := engine.New(env.Engine.DB, env.Engine.Config)
	snaps, err := fresh.IdentitySnapshots(env.Ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, adj.Snapshot.ID, snaps[0].ID)

	panel, err := env.Engine.TruthPanel(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, "g1", panel.GoalID)
	active, err := env.Engine.Repo.GetState(env.Ctx, repo.StateActiveCycle)
	require.NoError(t, err)
	assert.Equal(t, cycle.ID, active)
}
