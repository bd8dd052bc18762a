package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"jericho/internal/domain"
	"jericho/internal/repo"
	"jericho/internal/truthpanel"
)

// ArtifactBundle is an import file produced by the upstream planner.
// Maps are keyed by goal id. ActiveGoalID and Directive, when set, replace
// the workspace values.
type ArtifactBundle struct {
	ActiveGoalID  string                                 `json:"active_goal_id,omitempty" yaml:"active_goal_id,omitempty"`
	ActiveCycleID string                                 `json:"active_cycle_id,omitempty" yaml:"active_cycle_id,omitempty"`
	Directive     *domain.GoalDirective                  `json:"directive,omitempty" yaml:"directive,omitempty"`
	Feasibility   map[string]domain.FeasibilityArtifact  `json:"feasibility,omitempty" yaml:"feasibility,omitempty"`
	Eligibility   map[string]domain.DirectiveEligibility `json:"directive_eligibility,omitempty" yaml:"directive_eligibility,omitempty"`
	Probability   map[string]domain.ProbabilityArtifact  `json:"probability,omitempty" yaml:"probability,omitempty"`
}

// ImportSummary counts what an import stored.
type ImportSummary struct {
	Feasibility int `json:"feasibility"`
	Eligibility int `json:"directive_eligibility"`
	Probability int `json:"probability"`
}

// ImportArtifactsFile reads a YAML (or JSON, which YAML accepts) bundle.
func (e Engine) ImportArtifactsFile(ctx context.Context, path string) (ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportSummary{}, err
	}
	var b ArtifactBundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return ImportSummary{}, fmt.Errorf("%w: artifact bundle %s: %v", ErrInvalid, path, err)
	}
	return e.ImportArtifacts(ctx, b)
}

// ImportArtifacts upserts every artifact in the bundle in one transaction.
func (e Engine) ImportArtifacts(ctx context.Context, b ArtifactBundle) (ImportSummary, error) {
	now := e.now().UTC().Format(time.RFC3339)
	var directive string
	if b.Directive != nil {
		if b.Directive.GoalID == "" {
			return ImportSummary{}, invalid("directive needs a goal_id")
		}
		data, err := json.Marshal(b.Directive)
		if err != nil {
			return ImportSummary{}, err
		}
		directive = string(data)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ImportSummary{}, err
	}
	defer tx.Rollback()
	var sum ImportSummary
	for goalID, a := range b.Feasibility {
		if err := e.Repo.UpsertArtifact(ctx, tx, goalID, domain.ArtifactFeasibility, a, now); err != nil {
			return ImportSummary{}, err
		}
		sum.Feasibility++
	}
	for goalID, a := range b.Eligibility {
		if err := e.Repo.UpsertArtifact(ctx, tx, goalID, domain.ArtifactEligibility, a, now); err != nil {
			return ImportSummary{}, err
		}
		sum.Eligibility++
	}
	for goalID, a := range b.Probability {
		if err := e.Repo.UpsertArtifact(ctx, tx, goalID, domain.ArtifactProbability, a, now); err != nil {
			return ImportSummary{}, err
		}
		sum.Probability++
	}
	if b.ActiveGoalID != "" {
		if err := e.Repo.SetState(ctx, tx, repo.StateActiveGoal, b.ActiveGoalID); err != nil {
			return ImportSummary{}, err
		}
	}
	if b.ActiveCycleID != "" {
		if err := e.Repo.SetState(ctx, tx, repo.StateActiveCycle, b.ActiveCycleID); err != nil {
			return ImportSummary{}, err
		}
	}
	if directive != "" {
		if err := e.Repo.SetState(ctx, tx, repo.StateDirective, directive); err != nil {
			return ImportSummary{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return ImportSummary{}, err
	}
	e.log().Info("artifacts imported",
		zap.Int("feasibility", sum.Feasibility),
		zap.Int("directive_eligibility", sum.Eligibility),
		zap.Int("probability", sum.Probability))
	return sum, nil
}

// TruthPanel renders the truth panel for the workspace's resolved goal.
func (e Engine) TruthPanel(ctx context.Context) (truthpanel.Panel, error) {
	st, err := e.truthState(ctx)
	if err != nil {
		return truthpanel.Panel{}, err
	}
	return truthpanel.Render(st, e.now().UTC().Format(time.RFC3339)), nil
}

func (e Engine) truthState(ctx context.Context) (truthpanel.State, error) {
	var st truthpanel.State
	active, err := e.optionalState(ctx, repo.StateActiveGoal)
	if err != nil {
		return st, err
	}
	st.ActiveGoalID = active

	raw, err := e.optionalState(ctx, repo.StateDirective)
	if err != nil {
		return st, err
	}
	if raw != "" {
		var d domain.GoalDirective
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			e.log().Warn("stored directive unreadable", zap.Error(err))
		} else {
			st.Directive = &d
		}
	}

	cycle, err := e.optionalState(ctx, repo.StateActiveCycle)
	if err != nil {
		return st, err
	}
	if cycle != "" {
		st.ActiveCycleID = cycle
		goalID, err := e.Repo.CycleGoal(ctx, cycle)
		switch {
		case err == nil:
			st.CycleGoals = map[string]string{cycle: goalID}
		case !errors.Is(err, repo.ErrNotFound):
			return st, err
		}
	}

	a, err := e.Repo.LoadArtifacts(ctx)
	if err != nil {
		return st, err
	}
	st.Feasibility = a.Feasibility
	st.Eligibility = a.Eligibility
	st.Probability = a.Probability
	return st, nil
}

func (e Engine) optionalState(ctx context.Context, key string) (string, error) {
	v, err := e.Repo.GetState(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return "", nil
	}
	return v, err
}
