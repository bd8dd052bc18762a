package server

import (
	"jericho/internal/domain"
	"jericho/internal/engine"
	"jericho/internal/metrics"
	"jericho/internal/snapshot"
	"jericho/internal/suggest"
	"jericho/internal/truthpanel"
)

// Request payloads

type RejectSuggestionRequest struct {
	Reason string `json:"reason" enum:"TOO_LONG,WRONG_TIME,LOW_ENERGY,NOT_RELEVANT,MISSING_PREREQ,OVERCOMMITTED"`
}

type PlanSuggestionsRequest struct {
	DaysPerWeek int    `json:"days_per_week" minimum:"3" maximum:"7"`
	StartDay    string `json:"start_day,omitempty" example:"2026-01-05"`
}

type RecalibrateRequest struct {
	DaysPerWeek int `json:"days_per_week" minimum:"3" maximum:"7"`
}

type AdjustWeightsRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// Response payloads

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

type SuggestionResponse struct {
	Suggestion domain.SuggestedBlock `json:"suggestion"`
	Applied    bool                  `json:"applied"`
}

type RecalibrateResponse struct {
	engine.SuggestionPlan
	Applied bool `json:"applied"`
}

type InstrumentationResponse struct {
	DayKey  string                          `json:"day_key"`
	Domains []metrics.DomainInstrumentation `json:"domains"`
}

type HistoryResponse struct {
	Items []suggest.HistoryItem `json:"items"`
}

type SnapshotsResponse struct {
	Items []snapshot.Snapshot `json:"items"`
}

// Output wrappers

type nextMoveOutput struct {
	Body engine.NextMoveResult `json:"body"`
}

type windowOutput struct {
	Body engine.WindowReport `json:"body"`
}

type driftOutput struct {
	Body engine.DriftReport `json:"body"`
}

type instrumentationOutput struct {
	Body InstrumentationResponse `json:"body"`
}

type planOutput struct {
	Body engine.SuggestionPlan `json:"body"`
}

type recalibrateOutput struct {
	Body RecalibrateResponse `json:"body"`
}

type suggestionOutput struct {
	Body SuggestionResponse `json:"body"`
}

type historyOutput struct {
	Body HistoryResponse `json:"body"`
}

type signalsOutput struct {
	Body suggest.Signals `json:"body"`
}

type truthPanelOutput struct {
	Body truthpanel.Panel `json:"body"`
}

type weightsOutput struct {
	Body engine.WeightAdjustment `json:"body"`
}

type snapshotsOutput struct {
	Body SnapshotsResponse `json:"body"`
}

func nonNilItems[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
