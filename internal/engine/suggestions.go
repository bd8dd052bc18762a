package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"jericho/internal/daykey"
	"jericho/internal/domain"
	"jericho/internal/repo"
	"jericho/internal/suggest"
)

// SuggestionPlan is a goal's projected suggestions and a preview of the
// still-suggested set.
type SuggestionPlan struct {
	GoalID      string                  `json:"goal_id"`
	DaysPerWeek int                     `json:"days_per_week,omitempty"`
	Suggestions []domain.SuggestedBlock `json:"suggestions"`
	Preview     suggest.Preview         `json:"preview"`
}

func planOf(goalID string, l suggest.Ledger) SuggestionPlan {
	return SuggestionPlan{GoalID: goalID, Suggestions: l.Current(), Preview: l.Preview()}
}

func (e Engine) loadLedger(ctx context.Context, goalID string) (suggest.Ledger, error) {
	blocks, err := e.Repo.ListSuggestedBlocks(ctx, goalID)
	if err != nil {
		return suggest.Ledger{}, err
	}
	evts, err := e.Repo.ListSuggestionEvents(ctx, goalID)
	if err != nil {
		return suggest.Ledger{}, err
	}
	return suggest.Ledger{Blocks: blocks, Events: evts}, nil
}

// saveLedger stores next's base records and the events it added on top of
// prev. The log is only ever appended to. A non-empty start is recorded as
// the plan's start day.
func (e Engine) saveLedger(ctx context.Context, goalID string, prev, next suggest.Ledger, accepted *domain.SuggestedBlock, start string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceSuggestedBlocks(ctx, tx, goalID, next.Blocks); err != nil {
		return err
	}
	if err := e.Events.AppendAll(ctx, tx, next.Events[len(prev.Events):]); err != nil {
		return err
	}
	if start != "" {
		if err := e.Repo.SetState(ctx, tx, repo.PlanStartKey(goalID), start); err != nil {
			return err
		}
	}
	if accepted != nil {
		b := domain.Block{
			ID:       accepted.ID,
			GoalID:   goalID,
			Start:    accepted.StartISO,
			End:      accepted.EndISO,
			Practice: accepted.Domain.Title(),
			Status:   domain.BlockPending,
			Label:    accepted.Title,
		}
		if err := e.Repo.InsertBlock(ctx, tx, b, e.now().UTC().Format("2006-01-02T15:04:05Z07:00")); err != nil {
			return fmt.Errorf("schedule accepted suggestion: %w", err)
		}
	}
	return tx.Commit()
}

func (e Engine) stamp() suggest.Stamp {
	now := e.now()
	return suggest.Stamp{At: now, DayKey: daykey.FromTime(now, e.location())}
}

func (e Engine) planInput(ctx context.Context, g domain.Goal, daysPerWeek int, start string) (suggest.PlanInput, error) {
	startKey, err := e.dayOrToday(start)
	if err != nil {
		return suggest.PlanInput{}, err
	}
	profile, err := e.Profile(g, startKey)
	if err != nil {
		return suggest.PlanInput{}, err
	}
	return suggest.PlanInput{
		GoalID:        g.ID,
		GoalText:      g.Text,
		PrimaryDomain: profile.DominantDomain,
		StartDayKey:   startKey,
		DaysPerWeek:   daysPerWeek,
		Templates:     e.Config.Suggestions.Templates,
		Slots:         e.Config.Suggestions.Slots,
		Location:      e.location(),
	}, nil
}

// PlanSuggestions generates the first suggestion set for a goal starting on
// start (today when empty).
func (e Engine) PlanSuggestions(ctx context.Context, goalID string, daysPerWeek int, start string) (SuggestionPlan, error) {
	g, err := e.goalOrActive(ctx, goalID)
	if err != nil {
		return SuggestionPlan{}, err
	}
	in, err := e.planInput(ctx, g, daysPerWeek, start)
	if err != nil {
		return SuggestionPlan{}, err
	}
	prev, err := e.loadLedger(ctx, g.ID)
	if err != nil {
		return SuggestionPlan{}, err
	}
	next, err := prev.Plan(in, e.stamp())
	if err != nil {
		return SuggestionPlan{}, err
	}
	if err := e.saveLedger(ctx, g.ID, prev, next, nil, in.StartDayKey); err != nil {
		return SuggestionPlan{}, err
	}
	e.log().Info("suggestions planned", zap.String("goal_id", g.ID), zap.Int("days_per_week", daysPerWeek), zap.Int("count", len(next.Blocks)))
	plan := planOf(g.ID, next)
	plan.DaysPerWeek = daysPerWeek
	return plan, nil
}

// Recalibrate regenerates the still-suggested set for a new days-per-week
// value. Decided suggestions keep their ids and records.
func (e Engine) Recalibrate(ctx context.Context, goalID string, daysPerWeek int) (SuggestionPlan, bool, error) {
	g, err := e.goalOrActive(ctx, goalID)
	if err != nil {
		return SuggestionPlan{}, false, err
	}
	prev, err := e.loadLedger(ctx, g.ID)
	if err != nil {
		return SuggestionPlan{}, false, err
	}
	start, err := e.planStart(ctx, g.ID, prev)
	if err != nil {
		return SuggestionPlan{}, false, err
	}
	in, err := e.planInput(ctx, g, daysPerWeek, start)
	if err != nil {
		return SuggestionPlan{}, false, err
	}
	next, applied, err := prev.Recalibrate(in, e.stamp())
	if err != nil {
		return SuggestionPlan{}, false, err
	}
	if applied {
		if err := e.saveLedger(ctx, g.ID, prev, next, nil, ""); err != nil {
			return SuggestionPlan{}, false, err
		}
		e.log().Info("suggestions recalibrated", zap.String("goal_id", g.ID), zap.Int("days_per_week", daysPerWeek))
	}
	plan := planOf(g.ID, next)
	plan.DaysPerWeek = daysPerWeek
	return plan, applied, nil
}

// planStart is the day the goal's plan was first generated from. Ledgers
// stored without it fall back to their earliest suggestion day.
func (e Engine) planStart(ctx context.Context, goalID string, l suggest.Ledger) (string, error) {
	start, err := e.Repo.GetState(ctx, repo.PlanStartKey(goalID))
	if err == nil {
		return start, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}
	for _, b := range l.Blocks {
		if start == "" || b.DayKey < start {
			start = b.DayKey
		}
	}
	return start, nil
}

// transition applies one lifecycle command to the suggestion's ledger.
func (e Engine) transition(ctx context.Context, id string, apply func(suggest.Ledger, suggest.Stamp) (suggest.Ledger, bool, error)) (domain.SuggestedBlock, bool, error) {
	goalID, err := e.Repo.SuggestionGoal(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.SuggestedBlock{}, false, fmt.Errorf("%w: %s", suggest.ErrUnknownSuggestion, id)
	}
	if err != nil {
		return domain.SuggestedBlock{}, false, err
	}
	prev, err := e.loadLedger(ctx, goalID)
	if err != nil {
		return domain.SuggestedBlock{}, false, err
	}
	next, applied, err := apply(prev, e.stamp())
	if err != nil {
		return domain.SuggestedBlock{}, false, err
	}
	b, _ := next.Find(id)
	if !applied {
		return b, false, nil
	}
	var accepted *domain.SuggestedBlock
	if b.Status == domain.SuggestionAccepted {
		accepted = &b
	}
	if err := e.saveLedger(ctx, goalID, prev, next, accepted, ""); err != nil {
		return domain.SuggestedBlock{}, false, err
	}
	e.log().Info("suggestion "+string(b.Status), zap.String("goal_id", goalID), zap.String("suggestion_id", id))
	return b, true, nil
}

// AcceptSuggestion accepts a suggestion and schedules it as a block.
func (e Engine) AcceptSuggestion(ctx context.Context, id string) (domain.SuggestedBlock, bool, error) {
	return e.transition(ctx, id, func(l suggest.Ledger, at suggest.Stamp) (suggest.Ledger, bool, error) {
		return l.Accept(id, at)
	})
}

func (e Engine) RejectSuggestion(ctx context.Context, id, reason string) (domain.SuggestedBlock, bool, error) {
	r, err := suggest.ParseReason(reason)
	if err != nil {
		return domain.SuggestedBlock{}, false, err
	}
	return e.transition(ctx, id, func(l suggest.Ledger, at suggest.Stamp) (suggest.Ledger, bool, error) {
		return l.Reject(id, r, at)
	})
}

func (e Engine) IgnoreSuggestion(ctx context.Context, id string) (domain.SuggestedBlock, bool, error) {
	return e.transition(ctx, id, func(l suggest.Ledger, at suggest.Stamp) (suggest.Ledger, bool, error) {
		return l.Ignore(id, at)
	})
}

func (e Engine) DismissSuggestion(ctx context.Context, id string) (domain.SuggestedBlock, bool, error) {
	return e.transition(ctx, id, func(l suggest.Ledger, at suggest.Stamp) (suggest.Ledger, bool, error) {
		return l.Dismiss(id, at)
	})
}

// ListSuggestions returns a goal's suggestions with replayed status.
func (e Engine) ListSuggestions(ctx context.Context, goalID string) (SuggestionPlan, error) {
	g, err := e.goalOrActive(ctx, goalID)
	if err != nil {
		return SuggestionPlan{}, err
	}
	l, err := e.loadLedger(ctx, g.ID)
	if err != nil {
		return SuggestionPlan{}, err
	}
	return planOf(g.ID, l), nil
}

// HistoryOptions narrow SuggestionHistory. Days defaults to the configured
// history window and DayKey to today.
type HistoryOptions struct {
	Days    int
	DayKey  string
	Filters suggest.Filters
}

// SuggestionHistory projects the lifecycle log of every goal into display
// rows. Rows whose suggestion was regenerated away are archived.
func (e Engine) SuggestionHistory(ctx context.Context, opts HistoryOptions) ([]suggest.HistoryItem, error) {
	now, err := e.dayOrToday(opts.DayKey)
	if err != nil {
		return nil, err
	}
	days := opts.Days
	if days <= 0 {
		days = e.Config.Planner.HistoryWindowDays
	}
	l, err := e.loadLedger(ctx, "")
	if err != nil {
		return nil, err
	}
	return suggest.ProjectHistory(suggest.HistoryInput{
		Events:      l.Events,
		Suggestions: suggest.Lookup(l.Blocks),
		NowDayKey:   now,
		WindowDays:  days,
		Filters:     opts.Filters,
		TimeZone:    e.timeZone(),
	}), nil
}

// CorrectionSignals summarises rejection reasons over the trailing window.
func (e Engine) CorrectionSignals(ctx context.Context, days int) (suggest.Signals, error) {
	if days <= 0 {
		days = e.Config.Planner.HistoryWindowDays
	}
	evts, err := e.Repo.ListSuggestionEvents(ctx, "")
	if err != nil {
		return suggest.Signals{}, err
	}
	return suggest.CorrectionSignals(evts, e.Today(), days, e.timeZone()), nil
}
