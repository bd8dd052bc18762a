package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"jericho/internal/domain"
)

// Writer appends suggestion lifecycle events. The log is append-only; seq
// order is replay order.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append inserts evt inside tx. A missing timestamp is filled from Now.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evt domain.SuggestionEvent) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	if evt.GoalID == "" {
		return fmt.Errorf("event %s has no goal", evt.ID)
	}
	at := evt.AtISO
	if at == "" {
		at = w.Now().UTC().Format(time.RFC3339)
	}
	payload := EventPayload{}
	if len(evt.PreviousIDs) > 0 || evt.Type == domain.EventSuggestionsRecomputed {
		payload["previous_ids"] = nonNil(evt.PreviousIDs)
		payload["next_ids"] = nonNil(evt.NextIDs)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO suggestion_events(id,goal_id,type,suggestion_id,proposal_id,reason,day_key,at,payload_json) VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.ID, evt.GoalID, string(evt.Type), nullable(evt.SuggestionID), nullable(evt.ProposalID), nullable(evt.Reason),
		nullable(evt.DayKey), at, string(data))
	return err
}

// AppendAll appends events in order.
func (w Writer) AppendAll(ctx context.Context, tx *sql.Tx, evts []domain.SuggestionEvent) error {
	for _, evt := range evts {
		if err := w.Append(ctx, tx, evt); err != nil {
			return fmt.Errorf("append %s: %w", evt.ID, err)
		}
	}
	return nil
}

// DecodePayload restores the id lists stored by Append.
func DecodePayload(raw string, evt *domain.SuggestionEvent) error {
	if raw == "" {
		return nil
	}
	var p struct {
		PreviousIDs []string `json:"previous_ids"`
		NextIDs     []string `json:"next_ids"`
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	evt.PreviousIDs = p.PreviousIDs
	evt.NextIDs = p.NextIDs
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
