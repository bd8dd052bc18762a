package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jericho/internal/domain"
	"jericho/internal/repo"
	"jericho/internal/snapshot"
	"jericho/internal/valuescale"
)

const defaultUser = "default"

// SetRequirements replaces a goal's capability requirements. Weights are
// stored as given; AdjustWeights is what normalises them.
func (e Engine) SetRequirements(ctx context.Context, goalID string, reqs []domain.CapabilityRequirement) ([]domain.CapabilityRequirement, error) {
	g, err := e.goalOrActive(ctx, goalID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]domain.CapabilityRequirement, 0, len(reqs))
	for _, r := range reqs {
		if r.Domain == "" || r.Capability == "" {
			return nil, invalid("requirement needs a domain and a capability")
		}
		if r.Weight < 0 || r.TargetLevel < 0 {
			return nil, invalid("requirement %s:%s has a negative value", r.Domain, r.Capability)
		}
		k := valuescale.Key(r.Domain, r.Capability)
		if seen[k] {
			return nil, invalid("duplicate requirement %s:%s", r.Domain, r.Capability)
		}
		seen[k] = true
		r.GoalID = g.ID
		out = append(out, r)
	}
	if err := e.Repo.ReplaceRequirements(ctx, nil, g.ID, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Requirements lists a goal's capability requirements in stored order.
func (e Engine) Requirements(ctx context.Context, goalID string) ([]domain.CapabilityRequirement, error) {
	g, err := e.goalOrActive(ctx, goalID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListRequirements(ctx, g.ID)
}

// RecordCycle stores one round of capability changes, applies the deltas
// to the matching requirements' current levels and makes the cycle active.
func (e Engine) RecordCycle(ctx context.Context, goalID string, integrity float64, changes []domain.CapabilityChange) (domain.CapabilityCycle, error) {
	g, err := e.goalOrActive(ctx, goalID)
	if err != nil {
		return domain.CapabilityCycle{}, err
	}
	if integrity < 0 || integrity > 100 {
		return domain.CapabilityCycle{}, invalid("integrity %v outside [0, 100]", integrity)
	}
	reqs, err := e.Repo.ListRequirements(ctx, g.ID)
	if err != nil {
		return domain.CapabilityCycle{}, err
	}
	deltas := map[string]float64{}
	for _, c := range changes {
		deltas[valuescale.Key(c.Domain, c.Capability)] += c.Delta
	}
	for i, r := range reqs {
		reqs[i].CurrentLevel = r.CurrentLevel + deltas[valuescale.Key(r.Domain, r.Capability)]
	}

	at := e.now().UTC().Format(time.RFC3339Nano)
	cycle := domain.CapabilityCycle{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(g.ID+"|cycle|"+at)).String(),
		GoalID:    g.ID,
		AtISO:     at,
		Integrity: integrity,
		Changes:   append([]domain.CapabilityChange{}, changes...),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CapabilityCycle{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCycle(ctx, tx, cycle); err != nil {
		return domain.CapabilityCycle{}, fmt.Errorf("insert cycle: %w", err)
	}
	if err := e.Repo.ReplaceRequirements(ctx, tx, g.ID, reqs); err != nil {
		return domain.CapabilityCycle{}, err
	}
	if err := e.Repo.SetState(ctx, tx, repo.StateActiveCycle, cycle.ID); err != nil {
		return domain.CapabilityCycle{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CapabilityCycle{}, err
	}
	e.log().Info("capability cycle recorded", zap.String("goal_id", g.ID), zap.String("cycle_id", cycle.ID), zap.Int("changes", len(changes)))
	return cycle, nil
}

// WeightAdjustment is the before/after view of one AdjustWeights call.
type WeightAdjustment struct {
	GoalID   string                         `json:"goal_id"`
	Before   []domain.CapabilityRequirement `json:"before"`
	After    []domain.CapabilityRequirement `json:"after"`
	Snapshot snapshot.Snapshot              `json:"snapshot"`
}

// AdjustWeights rescales a goal's requirement weights from its cycle
// history, persists them and appends an identity snapshot for the user.
func (e Engine) AdjustWeights(ctx context.Context, goalID, userID string) (WeightAdjustment, error) {
	g, err := e.goalOrActive(ctx, goalID)
	if err != nil {
		return WeightAdjustment{}, err
	}
	if userID == "" {
		userID = defaultUser
	}
	before, err := e.Repo.ListRequirements(ctx, g.ID)
	if err != nil {
		return WeightAdjustment{}, err
	}
	if len(before) == 0 {
		return WeightAdjustment{}, invalid("goal %s has no capability requirements", g.ID)
	}
	history, err := e.Repo.ListCycles(ctx, g.ID)
	if err != nil {
		return WeightAdjustment{}, err
	}
	if err := e.warmSnapshots(ctx, userID); err != nil {
		return WeightAdjustment{}, err
	}

	after := valuescale.UpdateCapabilityWeights(before, history)
	var integrity float64
	if len(history) > 0 {
		integrity = history[len(history)-1].Integrity
	}
	snap := snapshot.Build(snapshot.BuildInput{
		UserID:       userID,
		GoalID:       g.ID,
		Capabilities: after,
		Integrity:    integrity,
		History:      history,
		Now:          e.now(),
	})

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return WeightAdjustment{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceRequirements(ctx, tx, g.ID, after); err != nil {
		return WeightAdjustment{}, err
	}
	if err := e.Repo.InsertSnapshot(ctx, tx, snap, e.Snapshots.Cap()); err != nil {
		return WeightAdjustment{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return WeightAdjustment{}, err
	}
	e.Snapshots.Append(snap)
	e.log().Info("capability weights adjusted",
		zap.String("goal_id", g.ID),
		zap.Int("requirements", len(after)),
		zap.Int("cycles", len(history)),
		zap.Float64("load_index", snap.LoadIndex))
	return WeightAdjustment{GoalID: g.ID, Before: before, After: after, Snapshot: snap}, nil
}

func (e Engine) warmSnapshots(ctx context.Context, userID string) error {
	if e.Snapshots.Len(userID) > 0 {
		return nil
	}
	stored, err := e.Repo.ListSnapshots(ctx, userID, e.Snapshots.Cap())
	if err != nil {
		return err
	}
	e.Snapshots.Warm(userID, stored)
	return nil
}

// IdentitySnapshots returns up to n of a user's newest identity snapshots, oldest
// first. n <= 0 returns the whole buffer.
func (e Engine) IdentitySnapshots(ctx context.Context, userID string, n int) ([]snapshot.Snapshot, error) {
	if userID == "" {
		userID = defaultUser
	}
	if err := e.warmSnapshots(ctx, userID); err != nil {
		return nil, err
	}
	return e.Snapshots.Recent(userID, n), nil
}
