package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"jericho/internal/domain"
	"jericho/internal/snapshot"
)

// ReplaceRequirements stores a goal's requirements in order.
func (r Repo) ReplaceRequirements(ctx context.Context, tx *sql.Tx, goalID string, reqs []domain.CapabilityRequirement) error {
	q := r.on(tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM capability_requirements WHERE goal_id=?`, goalID); err != nil {
		return err
	}
	for i, req := range reqs {
		_, err := q.ExecContext(ctx, `INSERT INTO capability_requirements(goal_id,position,domain,capability,target_level,current_level,weight) VALUES (?,?,?,?,?,?,?)`,
			goalID, i, req.Domain, req.Capability, req.TargetLevel, req.CurrentLevel, req.Weight)
		if err != nil {
			return fmt.Errorf("insert requirement %s:%s: %w", req.Domain, req.Capability, err)
		}
	}
	return nil
}

func (r Repo) ListRequirements(ctx context.Context, goalID string) ([]domain.CapabilityRequirement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT goal_id,domain,capability,target_level,current_level,weight FROM capability_requirements WHERE goal_id=? ORDER BY position`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CapabilityRequirement
	for rows.Next() {
		var req domain.CapabilityRequirement
		if err := rows.Scan(&req.GoalID, &req.Domain, &req.Capability, &req.TargetLevel, &req.CurrentLevel, &req.Weight); err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

func (r Repo) InsertCycle(ctx context.Context, tx *sql.Tx, c domain.CapabilityCycle) error {
	changes := c.Changes
	if changes == nil {
		changes = []domain.CapabilityChange{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	_, err = r.on(tx).ExecContext(ctx, `INSERT INTO capability_cycles(id,goal_id,at,integrity,changes_json) VALUES (?,?,?,?,?)`,
		c.ID, c.GoalID, c.AtISO, c.Integrity, string(data))
	return err
}

// ListCycles returns a goal's cycles oldest first.
func (r Repo) ListCycles(ctx context.Context, goalID string) ([]domain.CapabilityCycle, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,goal_id,at,integrity,changes_json FROM capability_cycles WHERE goal_id=? ORDER BY at, id`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CapabilityCycle
	for rows.Next() {
		var c domain.CapabilityCycle
		var raw string
		if err := rows.Scan(&c.ID, &c.GoalID, &c.AtISO, &c.Integrity, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &c.Changes); err != nil {
			return nil, fmt.Errorf("cycle %s changes: %w", c.ID, err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// CycleGoal returns the goal a cycle was recorded for.
func (r Repo) CycleGoal(ctx context.Context, cycleID string) (string, error) {
	var goalID string
	err := r.DB.QueryRowContext(ctx, `SELECT goal_id FROM capability_cycles WHERE id=?`, cycleID).Scan(&goalID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return goalID, err
}

// InsertSnapshot appends a snapshot and trims the user's rows to keep the
// newest limit entries.
func (r Repo) InsertSnapshot(ctx context.Context, tx *sql.Tx, s snapshot.Snapshot, limit int) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	q := r.on(tx)
	if _, err := q.ExecContext(ctx, `INSERT INTO identity_snapshots(id,user_id,goal_id,payload_json,created_at) VALUES (?,?,?,?,?)`,
		s.ID, s.UserID, nullable(s.GoalID), string(data), s.CreatedAt); err != nil {
		return err
	}
	if limit <= 0 {
		return nil
	}
	_, err = q.ExecContext(ctx, `DELETE FROM identity_snapshots WHERE user_id=? AND seq NOT IN (
  SELECT seq FROM identity_snapshots WHERE user_id=? ORDER BY seq DESC LIMIT ?)`, s.UserID, s.UserID, limit)
	return err
}

// ListSnapshots returns up to limit of the newest snapshots, oldest first.
func (r Repo) ListSnapshots(ctx context.Context, userID string, limit int) ([]snapshot.Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT payload_json FROM (
  SELECT seq,payload_json FROM identity_snapshots WHERE user_id=? ORDER BY seq DESC LIMIT ?) ORDER BY seq`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []snapshot.Snapshot
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var s snapshot.Snapshot
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
