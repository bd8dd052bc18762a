package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"jericho/internal/daykey"
	"jericho/internal/domain"
	"jericho/internal/goalprofile"
	"jericho/internal/metrics"
	"jericho/internal/nextmove"
	"jericho/internal/repo"
)

// NextMoveResult is the directive together with the profile it came from.
type NextMoveResult struct {
	GoalID    string              `json:"goal_id"`
	Profile   goalprofile.Profile `json:"profile"`
	Directive nextmove.Directive  `json:"directive"`
}

// NextMove computes the day's directive for a goal and records it as the
// workspace's active directive.
func (e Engine) NextMove(ctx context.Context, goalID, day string) (NextMoveResult, error) {
	g, err := e.goalOrActive(ctx, goalID)
	if err != nil {
		return NextMoveResult{}, err
	}
	dayKey, err := e.dayOrToday(day)
	if err != nil {
		return NextMoveResult{}, err
	}
	profile, err := e.Profile(g, dayKey)
	if err != nil {
		return NextMoveResult{}, err
	}
	blocks, err := e.ListBlocks(ctx, BlockQuery{})
	if err != nil {
		return NextMoveResult{}, err
	}
	var history []metrics.NormalizedBlock
	for _, b := range blocks {
		if b.DayKey != "" && b.DayKey < dayKey {
			history = append(history, b)
		}
	}
	loc := e.location()
	gaps := map[domain.Domain]float64{}
	for _, row := range metrics.ComputeTodayDomainInstrumentation(dayKey, blocks, e.Config.Targets()) {
		gaps[row.Domain] = row.Gap
	}
	d := nextmove.Compute(nextmove.Context{
		DayKey:   dayKey,
		Location: loc,
		Blocks:   blocks,
		Profile:  profile,
		Stats:    nextmove.ComputeCompletionStats(history, loc),
		Gaps:     gaps,
		Now:      e.now(),
	})
	if d.Kind != nextmove.KindNone {
		gd := domain.GoalDirective{GoalID: g.ID, WorkItemID: d.BlockID, BlockID: d.BlockID, Title: d.Title}
		data, err := json.Marshal(gd)
		if err != nil {
			return NextMoveResult{}, err
		}
		if err := e.Repo.SetState(ctx, nil, repo.StateDirective, string(data)); err != nil {
			return NextMoveResult{}, fmt.Errorf("store directive: %w", err)
		}
	}
	e.log().Debug("next move", zap.String("goal_id", g.ID), zap.String("day", dayKey), zap.String("kind", string(d.Kind)), zap.Int("score", d.Score))
	return NextMoveResult{GoalID: g.ID, Profile: profile, Directive: d}, nil
}

// WindowOptions select the window for WindowMetrics. Padded month windows
// cover the whole calendar grid but only count days of the month.
type WindowOptions struct {
	Mode    string
	Anchor  string
	Padded  bool
	PerDay  bool
	Targets bool
}

type WindowReport struct {
	Span    daykey.Span                      `json:"span"`
	Metrics metrics.WindowMetrics            `json:"metrics"`
	Days    map[string]metrics.WindowMetrics `json:"days,omitempty"`
}

func (e Engine) window(opts WindowOptions) (daykey.Span, domain.Window, error) {
	if opts.Mode == "" {
		opts.Mode = string(daykey.ModeWeek)
	}
	mode, err := daykey.ParseMode(opts.Mode)
	if err != nil {
		return daykey.Span{}, domain.Window{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	anchor, err := e.dayOrToday(opts.Anchor)
	if err != nil {
		return daykey.Span{}, domain.Window{}, err
	}
	span, err := daykey.SpanFor(mode, anchor)
	if err != nil {
		return daykey.Span{}, domain.Window{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	w := domain.Window{Start: span.Start, EndExclusive: span.EndExclusive}
	if opts.Padded && mode == daykey.ModeMonth {
		grid, err := daykey.MonthGrid(anchor)
		if err != nil {
			return daykey.Span{}, domain.Window{}, err
		}
		include, err := daykey.Range(span.Start, span.EndExclusive)
		if err != nil {
			return daykey.Span{}, domain.Window{}, err
		}
		end, err := daykey.AddDays(grid[len(grid)-1], 1)
		if err != nil {
			return daykey.Span{}, domain.Window{}, err
		}
		w = domain.Window{Start: grid[0], EndExclusive: end, Include: include}
	}
	return span, w, nil
}

// WindowMetrics computes planned and completed minutes over a calendar span.
func (e Engine) WindowMetrics(ctx context.Context, opts WindowOptions) (WindowReport, error) {
	span, w, err := e.window(opts)
	if err != nil {
		return WindowReport{}, err
	}
	blocks, err := e.ListBlocks(ctx, BlockQuery{})
	if err != nil {
		return WindowReport{}, err
	}
	source := metrics.PlanSource(e.Config.Planner.PlanSource)
	if opts.Targets {
		source = metrics.PlanTargets
	}
	rep := WindowReport{
		Span: span,
		Metrics: metrics.ComputeWindowMetrics(metrics.WindowInput{
			Blocks:         blocks,
			Window:         w,
			Mode:           string(span.Mode),
			PlanSource:     source,
			PatternTargets: e.Config.Targets(),
		}),
	}
	if opts.PerDay {
		days, err := daykey.Range(span.Start, span.EndExclusive)
		if err != nil {
			return WindowReport{}, err
		}
		rep.Days = metrics.ComputeDayMetricsMap(blocks, days, string(span.Mode))
	}
	return rep, nil
}

// TodayInstrumentation reports per-domain target, scheduled, completed and
// gap minutes for one day.
func (e Engine) TodayInstrumentation(ctx context.Context, day string) ([]metrics.DomainInstrumentation, error) {
	dayKey, err := e.dayOrToday(day)
	if err != nil {
		return nil, err
	}
	blocks, err := e.ListBlocks(ctx, BlockQuery{DayKey: dayKey})
	if err != nil {
		return nil, err
	}
	return metrics.ComputeTodayDomainInstrumentation(dayKey, blocks, e.Config.Targets()), nil
}

// DriftReport is the practice mix drift of a span plus its practice load.
type DriftReport struct {
	Span  daykey.Span          `json:"span"`
	Drift metrics.Drift        `json:"drift"`
	Load  metrics.PracticeLoad `json:"load"`
}

// Drift compares the span's planned practice mix with the mix implied by
// the configured pattern targets.
func (e Engine) Drift(ctx context.Context, opts WindowOptions) (DriftReport, error) {
	span, w, err := e.window(opts)
	if err != nil {
		return DriftReport{}, err
	}
	blocks, err := e.ListBlocks(ctx, BlockQuery{})
	if err != nil {
		return DriftReport{}, err
	}
	var inWindow []metrics.NormalizedBlock
	for _, b := range blocks {
		if metrics.WindowFilter(w, b).Included {
			inWindow = append(inWindow, b)
		}
	}
	targets := e.Config.Targets()
	mix := map[metrics.Practice]float64{}
	if total := targets.PerDay(); total > 0 {
		for _, p := range metrics.PracticeKeys {
			mix[p] = targets[p] / total
		}
	}
	return DriftReport{
		Span:  span,
		Drift: metrics.ComputeDrift(inWindow, mix, metrics.DefaultUnknownPolicy),
		Load:  metrics.GroupPracticeLoad(inWindow, metrics.DefaultUnknownPolicy),
	}, nil
}
