package suggest

import (
	"jericho/internal/daykey"
	"jericho/internal/domain"
)

// Signals are rejection-reason ratios over a trailing window.
type Signals struct {
	WindowDays      int                     `json:"window_days"`
	TotalRejections int                     `json:"total_rejections"`
	ByReason        map[RejectionReason]int `json:"by_reason"`
	Ratios          SignalRatios            `json:"signals"`
}

type SignalRatios struct {
	CapacityPressure  float64 `json:"capacity_pressure"`
	DurationMismatch  float64 `json:"duration_mismatch"`
	TimingMismatch    float64 `json:"timing_mismatch"`
	EnergyMismatch    float64 `json:"energy_mismatch"`
	RelevanceMismatch float64 `json:"relevance_mismatch"`
	PrereqDebt        float64 `json:"prereq_debt"`
}

// CorrectionSignals counts rejections by reason in the inclusive window
// ending at nowDayKey. Events with unknown reasons are ignored.
func CorrectionSignals(events []domain.SuggestionEvent, nowDayKey string, windowDays int, tz string) Signals {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	s := Signals{WindowDays: windowDays, ByReason: map[RejectionReason]int{}}
	for _, r := range RejectionReasons {
		s.ByReason[r] = 0
	}
	startKey, err := daykey.AddDays(nowDayKey, -(windowDays - 1))
	if err != nil {
		return s
	}
	for _, e := range events {
		if e.Type != domain.EventSuggestionRejected {
			continue
		}
		k := e.DayKey
		if k == "" {
			k, _ = daykey.FromISO(e.AtISO, tz)
		}
		if k == "" || k < startKey || k > nowDayKey {
			continue
		}
		r, err := ParseReason(e.Reason)
		if err != nil {
			continue
		}
		s.ByReason[r]++
		s.TotalRejections++
	}
	ratio := func(r RejectionReason) float64 {
		if s.TotalRejections == 0 {
			return 0
		}
		return float64(s.ByReason[r]) / float64(s.TotalRejections)
	}
	s.Ratios = SignalRatios{
		CapacityPressure:  ratio(ReasonOvercommitted),
		DurationMismatch:  ratio(ReasonTooLong),
		TimingMismatch:    ratio(ReasonWrongTime),
		EnergyMismatch:    ratio(ReasonLowEnergy),
		RelevanceMismatch: ratio(ReasonNotRelevant),
		PrereqDebt:        ratio(ReasonMissingPrereq),
	}
	return s
}
