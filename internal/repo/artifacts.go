package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"jericho/internal/domain"
)

// Artifacts are the upstream planner outputs keyed by goal id.
type Artifacts struct {
	Feasibility map[string]domain.FeasibilityArtifact  `json:"feasibility" yaml:"feasibility"`
	Eligibility map[string]domain.DirectiveEligibility `json:"directive_eligibility" yaml:"directive_eligibility"`
	Probability map[string]domain.ProbabilityArtifact  `json:"probability" yaml:"probability"`
}

func (r Repo) UpsertArtifact(ctx context.Context, tx *sql.Tx, goalID string, kind domain.ArtifactKind, payload any, updatedAt string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.on(tx).ExecContext(ctx, `INSERT INTO engine_artifacts(goal_id,kind,payload_json,updated_at) VALUES (?,?,?,?)
ON CONFLICT(goal_id,kind) DO UPDATE SET payload_json=excluded.payload_json, updated_at=excluded.updated_at`,
		goalID, string(kind), string(data), updatedAt)
	return err
}

// LoadArtifacts reads every stored artifact. A kind with no rows yields a
// nil map so callers can tell "never imported" from "imported, empty".
func (r Repo) LoadArtifacts(ctx context.Context) (Artifacts, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT goal_id,kind,payload_json FROM engine_artifacts ORDER BY goal_id, kind`)
	if err != nil {
		return Artifacts{}, err
	}
	defer rows.Close()
	var a Artifacts
	for rows.Next() {
		var goalID, kind, raw string
		if err := rows.Scan(&goalID, &kind, &raw); err != nil {
			return Artifacts{}, err
		}
		switch domain.ArtifactKind(kind) {
		case domain.ArtifactFeasibility:
			var v domain.FeasibilityArtifact
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return Artifacts{}, fmt.Errorf("%s %s: %w", kind, goalID, err)
			}
			if a.Feasibility == nil {
				a.Feasibility = map[string]domain.FeasibilityArtifact{}
			}
			a.Feasibility[goalID] = v
		case domain.ArtifactEligibility:
			var v domain.DirectiveEligibility
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return Artifacts{}, fmt.Errorf("%s %s: %w", kind, goalID, err)
			}
			if a.Eligibility == nil {
				a.Eligibility = map[string]domain.DirectiveEligibility{}
			}
			a.Eligibility[goalID] = v
		case domain.ArtifactProbability:
			var v domain.ProbabilityArtifact
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return Artifacts{}, fmt.Errorf("%s %s: %w", kind, goalID, err)
			}
			if a.Probability == nil {
				a.Probability = map[string]domain.ProbabilityArtifact{}
			}
			a.Probability[goalID] = v
		}
	}
	return a, rows.Err()
}
