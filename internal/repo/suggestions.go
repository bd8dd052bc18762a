package repo

import (
	"context"
	"database/sql"
	"fmt"

	"jericho/internal/domain"
	"jericho/internal/events"
)

// ReplaceSuggestedBlocks stores the base records of a goal's ledger in
// order. Status is never stored; it is replayed from the event log.
func (r Repo) ReplaceSuggestedBlocks(ctx context.Context, tx *sql.Tx, goalID string, blocks []domain.SuggestedBlock) error {
	q := r.on(tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM suggested_blocks WHERE goal_id=?`, goalID); err != nil {
		return err
	}
	for i, b := range blocks {
		_, err := q.ExecContext(ctx, `INSERT INTO suggested_blocks(goal_id,position,id,domain,title,duration_minutes,day_key,start_time,start_at,end_at,frequency,why_this,assumption)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			goalID, i, b.ID, string(b.Domain), b.Title, b.DurationMinutes, b.DayKey, b.StartTime, b.StartISO, b.EndISO,
			nullable(b.Frequency), nullable(b.WhyThis), nullable(b.Assumption))
		if err != nil {
			return fmt.Errorf("insert suggestion %s: %w", b.ID, err)
		}
	}
	return nil
}

// ListSuggestedBlocks returns base records; an empty goalID lists all goals.
func (r Repo) ListSuggestedBlocks(ctx context.Context, goalID string) ([]domain.SuggestedBlock, error) {
	query := `SELECT id,goal_id,domain,title,duration_minutes,day_key,start_time,start_at,end_at,COALESCE(frequency,''),COALESCE(why_this,''),COALESCE(assumption,'')
FROM suggested_blocks`
	var args []any
	if goalID != "" {
		query += ` WHERE goal_id=?`
		args = append(args, goalID)
	}
	query += ` ORDER BY goal_id, position`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SuggestedBlock
	for rows.Next() {
		var b domain.SuggestedBlock
		var d string
		if err := rows.Scan(&b.ID, &b.GoalID, &d, &b.Title, &b.DurationMinutes, &b.DayKey, &b.StartTime, &b.StartISO, &b.EndISO,
			&b.Frequency, &b.WhyThis, &b.Assumption); err != nil {
			return nil, err
		}
		b.Domain = domain.Domain(d)
		b.Status = domain.SuggestionSuggested
		res = append(res, b)
	}
	return res, rows.Err()
}

// ListSuggestionEvents returns the log in insertion order; an empty goalID
// lists all goals.
func (r Repo) ListSuggestionEvents(ctx context.Context, goalID string) ([]domain.SuggestionEvent, error) {
	query := `SELECT id,goal_id,type,COALESCE(suggestion_id,''),COALESCE(proposal_id,''),COALESCE(reason,''),COALESCE(day_key,''),at,payload_json
FROM suggestion_events`
	var args []any
	if goalID != "" {
		query += ` WHERE goal_id=?`
		args = append(args, goalID)
	}
	query += ` ORDER BY seq`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SuggestionEvent
	for rows.Next() {
		var e domain.SuggestionEvent
		var typ, payload string
		if err := rows.Scan(&e.ID, &e.GoalID, &typ, &e.SuggestionID, &e.ProposalID, &e.Reason, &e.DayKey, &e.AtISO, &payload); err != nil {
			return nil, err
		}
		e.Type = domain.SuggestionEventType(typ)
		if err := events.DecodePayload(payload, &e); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// SuggestionGoal finds which goal a suggestion id belongs to.
func (r Repo) SuggestionGoal(ctx context.Context, suggestionID string) (string, error) {
	var goalID string
	err := r.DB.QueryRowContext(ctx, `SELECT goal_id FROM suggested_blocks WHERE id=?`, suggestionID).Scan(&goalID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return goalID, err
}
