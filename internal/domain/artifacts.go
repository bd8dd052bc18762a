package domain

// Engine artifacts are produced by an upstream planner and only read here.

type FeasibilityDelta struct {
	BlocksShort             *int     `json:"blocks_short,omitempty" yaml:"blocks_short,omitempty"`
	ExtraBlocksPerDayNeeded *float64 `json:"extra_blocks_per_day_needed,omitempty" yaml:"extra_blocks_per_day_needed,omitempty"`
}

type FeasibilityArtifact struct {
	Status                string           `json:"status" yaml:"status" enum:"FEASIBLE,REQUIRED,INFEASIBLE"`
	RemainingBlocksTotal  int              `json:"remaining_blocks_total" yaml:"remaining_blocks_total"`
	WorkableDaysRemaining int              `json:"workable_days_remaining" yaml:"workable_days_remaining"`
	RequiredBlocksPerDay  *float64         `json:"required_blocks_per_day" yaml:"required_blocks_per_day"`
	RequiredBlocksToday   *int             `json:"required_blocks_today" yaml:"required_blocks_today"`
	CompletedBlocksToday  int              `json:"completed_blocks_today" yaml:"completed_blocks_today"`
	Delta                 FeasibilityDelta `json:"delta" yaml:"delta"`
	Reasons               []string         `json:"reasons" yaml:"reasons"`
}

type DirectiveEligibility struct {
	Allowed bool     `json:"allowed" yaml:"allowed"`
	Reasons []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

type EvidenceSummary struct {
	TotalEvents    int `json:"total_events" yaml:"total_events"`
	CompletedCount int `json:"completed_count" yaml:"completed_count"`
	DaysCovered    int `json:"days_covered" yaml:"days_covered"`
}

type ProbabilityArtifact struct {
	Status          string           `json:"status" yaml:"status"`
	RequiredEvents  *int             `json:"required_events" yaml:"required_events"`
	EvidenceSummary *EvidenceSummary `json:"evidence_summary,omitempty" yaml:"evidence_summary,omitempty"`
	Reasons         []string         `json:"reasons" yaml:"reasons"`
}

// ArtifactKind names the map an artifact belongs to.
type ArtifactKind string

const (
	ArtifactFeasibility ArtifactKind = "feasibility"
	ArtifactEligibility ArtifactKind = "directive_eligibility"
	ArtifactProbability ArtifactKind = "probability"
)

// GoalDirective is the directive currently shown for a goal.
type GoalDirective struct {
	GoalID     string `json:"goal_id" yaml:"goal_id"`
	WorkItemID string `json:"work_item_id,omitempty" yaml:"work_item_id,omitempty"`
	BlockID    string `json:"block_id,omitempty" yaml:"block_id,omitempty"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
}
