// Package truthpanel reshapes upstream planner artifacts for one goal into
// the truth panel read model. It never recomputes feasibility.
package truthpanel

import (
	"sort"

	"jericho/internal/domain"
)

// Field names reported in MISSING_ENGINE_ARTIFACT errors.
const (
	FieldFeasibility = "feasibilityByGoal"
	FieldEligibility = "directiveEligibilityByGoal"
	FieldProbability = "probabilityStatusByGoal"
)

const (
	CodeMissingArtifact = "MISSING_ENGINE_ARTIFACT"
	CodeUnknownGoal     = "UNKNOWN_GOAL"
)

// State is everything the renderer reads. Maps are keyed by goal id;
// CycleGoals maps a cycle id to the goal its governance contract names.
type State struct {
	ActiveGoalID  string
	Directive     *domain.GoalDirective
	ActiveCycleID string
	CycleGoals    map[string]string
	Feasibility   map[string]domain.FeasibilityArtifact
	Eligibility   map[string]domain.DirectiveEligibility
	Probability   map[string]domain.ProbabilityArtifact
}

type Panel struct {
	GoalID   string       `json:"goal_id"`
	NowISO   string       `json:"now"`
	Sections Sections     `json:"sections"`
	Errors   []PanelError `json:"errors,omitempty"`
}

type Sections struct {
	Feasibility domain.FeasibilityArtifact `json:"feasibility"`
	Guidance    Guidance                   `json:"guidance"`
	Probability Probability                `json:"probability_eligibility"`
}

type DirectiveView struct {
	Title      string `json:"title"`
	WorkItemID string `json:"work_item_id"`
}

// Guidance.Enabled is nil when no eligibility artifact exists.
type Guidance struct {
	HasDirective bool           `json:"has_directive"`
	Directive    *DirectiveView `json:"directive,omitempty"`
	Enabled      *bool          `json:"enabled"`
	Reasons      []string       `json:"reasons"`
}

type Probability struct {
	Status          string                  `json:"status" enum:"disabled,insufficient_evidence,eligible"`
	RequiredEvents  *int                    `json:"required_events"`
	EvidenceSummary *domain.EvidenceSummary `json:"evidence_summary,omitempty"`
	Reasons         []string                `json:"reasons"`
}

type PanelError struct {
	Code   string   `json:"code" enum:"MISSING_ENGINE_ARTIFACT,UNKNOWN_GOAL"`
	Fields []string `json:"fields,omitempty"`
}

// Render builds the panel for the resolved goal. Missing artifacts are
// reported in Errors and replaced by empty sections.
func Render(st State, nowISO string) Panel {
	goalID := ResolveGoalID(st)
	if goalID == "" {
		return Panel{
			NowISO: nowISO,
			Sections: Sections{
				Feasibility: emptyFeasibility(),
				Guidance:    Guidance{Reasons: []string{}},
				Probability: emptyProbability(),
			},
			Errors: []PanelError{{Code: CodeUnknownGoal}},
		}
	}

	feas, hasFeas := st.Feasibility[goalID]
	elig, hasElig := st.Eligibility[goalID]
	prob, hasProb := st.Probability[goalID]

	var missing []string
	if !hasFeas {
		missing = append(missing, FieldFeasibility)
	}
	if !hasElig {
		missing = append(missing, FieldEligibility)
	}
	if !hasProb {
		missing = append(missing, FieldProbability)
	}

	p := Panel{GoalID: goalID, NowISO: nowISO}
	if len(missing) > 0 {
		p.Errors = []PanelError{{Code: CodeMissingArtifact, Fields: missing}}
	}

	p.Sections.Feasibility = emptyFeasibility()
	if hasFeas {
		p.Sections.Feasibility = copyFeasibility(feas)
	}

	p.Sections.Guidance = Guidance{Reasons: []string{}}
	if d := st.Directive; d != nil && d.GoalID == goalID {
		g := Guidance{
			HasDirective: true,
			Directive: &DirectiveView{
				Title:      firstNonEmpty(d.Title, d.WorkItemID, d.BlockID, "Directive"),
				WorkItemID: firstNonEmpty(d.WorkItemID, d.BlockID, d.Title),
			},
			Reasons: []string{},
		}
		if hasElig {
			allowed := elig.Allowed
			g.Enabled = &allowed
			if !allowed {
				g.Reasons = copyStrings(elig.Reasons)
			}
		}
		p.Sections.Guidance = g
	}

	p.Sections.Probability = emptyProbability()
	if hasProb {
		status := prob.Status
		if status == "computed" {
			status = "eligible"
		}
		out := Probability{Status: status, Reasons: copyStrings(prob.Reasons)}
		if prob.RequiredEvents != nil {
			n := *prob.RequiredEvents
			out.RequiredEvents = &n
		}
		if prob.EvidenceSummary != nil {
			ev := *prob.EvidenceSummary
			out.EvidenceSummary = &ev
		}
		p.Sections.Probability = out
	}
	return p
}

// ResolveGoalID picks the goal in priority order: explicit active goal,
// directive goal, active cycle's contract goal, then the smallest
// feasibility key.
func ResolveGoalID(st State) string {
	if st.ActiveGoalID != "" {
		return st.ActiveGoalID
	}
	if st.Directive != nil && st.Directive.GoalID != "" {
		return st.Directive.GoalID
	}
	if st.ActiveCycleID != "" {
		if g := st.CycleGoals[st.ActiveCycleID]; g != "" {
			return g
		}
	}
	if len(st.Feasibility) == 0 {
		return ""
	}
	keys := make([]string, 0, len(st.Feasibility))
	for k := range st.Feasibility {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

func emptyFeasibility() domain.FeasibilityArtifact {
	return domain.FeasibilityArtifact{Status: "INFEASIBLE", Reasons: []string{}}
}

func emptyProbability() Probability {
	return Probability{Status: "disabled", Reasons: []string{}}
}

func copyFeasibility(f domain.FeasibilityArtifact) domain.FeasibilityArtifact {
	out := f
	out.Reasons = copyStrings(f.Reasons)
	if f.RequiredBlocksPerDay != nil {
		v := *f.RequiredBlocksPerDay
		out.RequiredBlocksPerDay = &v
	}
	if f.RequiredBlocksToday != nil {
		v := *f.RequiredBlocksToday
		out.RequiredBlocksToday = &v
	}
	if f.Delta.BlocksShort != nil {
		v := *f.Delta.BlocksShort
		out.Delta.BlocksShort = &v
	}
	if f.Delta.ExtraBlocksPerDayNeeded != nil {
		v := *f.Delta.ExtraBlocksPerDayNeeded
		out.Delta.ExtraBlocksPerDayNeeded = &v
	}
	return out
}

func copyStrings(in []string) []string {
	return append([]string{}, in...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
