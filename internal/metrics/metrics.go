// Package metrics computes planned and completed minutes over day key
// windows. Every function here is pure: identical inputs give identical
// outputs, including provenance ordering.
package metrics

import (
	"math"

	"jericho/internal/daykey"
	"jericho/internal/domain"
)

// Practice is a practice key: the title form of a domain, or Unknown.
type Practice string

const (
	PracticeBody      Practice = "Body"
	PracticeResources Practice = "Resources"
	PracticeCreation  Practice = "Creation"
	PracticeFocus     Practice = "Focus"
	PracticeUnknown   Practice = "Unknown"
)

// PracticeKeys is the fixed taxonomy in canonical order.
var PracticeKeys = []Practice{PracticeBody, PracticeResources, PracticeCreation, PracticeFocus}

// Domain maps a practice back to its domain. Unknown maps to "".
func (p Practice) Domain() domain.Domain {
	if p == PracticeUnknown || p == "" {
		return ""
	}
	return domain.NormalizeDomain(string(p))
}

// PracticeOf classifies a raw practice or domain label.
func PracticeOf(s string) Practice {
	d, ok := domain.ParseDomain(s)
	if !ok {
		return PracticeUnknown
	}
	return Practice(d.Title())
}

// PlanSource selects where planned minutes come from.
type PlanSource string

const (
	PlanScheduled PlanSource = "scheduled"
	PlanTargets   PlanSource = "targets"
)

// UnknownPolicy describes how blocks without a practice are counted.
type UnknownPolicy struct {
	IncludeInOverall      bool   `json:"include_in_overall"`
	IncludeInPracticeLoad bool   `json:"include_in_practice_load"`
	IncludeInDrift        bool   `json:"include_in_drift"`
	Label                 string `json:"label"`
}

var DefaultUnknownPolicy = UnknownPolicy{
	IncludeInOverall:      true,
	IncludeInPracticeLoad: false,
	IncludeInDrift:        false,
	Label:                 "Unclassified",
}

const (
	minutesPerDay = 1440
	maxWindowMins = 31 * minutesPerDay
)

// Targets are per-practice daily minute targets.
type Targets map[Practice]float64

// PerDay sums the targets of the four practices, ignoring bad values.
func (t Targets) PerDay() float64 {
	var sum float64
	for _, p := range PracticeKeys {
		sum += finite(t[p])
	}
	return sum
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Min(hi, math.Max(lo, v))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Diagnostic records an input that could not be parsed. The block is still
// returned, with zero duration or an empty day key.
type Diagnostic struct {
	BlockID string `json:"block_id"`
	Source  string `json:"source"`
	Value   string `json:"value"`
}

// NormalizedBlock is a block with its derived minutes and practice key.
type NormalizedBlock struct {
	domain.Block
	DayKey           string   `json:"day_key"`
	DurationMinutes  float64  `json:"duration_minutes"`
	PracticeKey      Practice `json:"practice_key"`
	PlannedMinutes   float64  `json:"planned_minutes"`
	CompletedMinutes float64  `json:"completed_minutes"`
}

// NormalizeBlocks computes clamped durations, day keys in tz and practice
// keys. Practice wins over category. Classified blocks carry the canonical
// practice key in Practice so normalizing again is a no-op.
func NormalizeBlocks(blocks []domain.Block, tz string) ([]NormalizedBlock, []Diagnostic) {
	loc, err := daykey.Location(tz)
	if err != nil {
		loc, _ = daykey.Location("")
	}
	out := make([]NormalizedBlock, 0, len(blocks))
	var diags []Diagnostic
	for _, b := range blocks {
		nb := NormalizedBlock{Block: b}
		start, serr := daykey.ParseInstant(b.Start, loc)
		end, eerr := daykey.ParseInstant(b.End, loc)
		if serr != nil {
			diags = append(diags, Diagnostic{BlockID: b.ID, Source: "block.start", Value: b.Start})
		} else {
			nb.DayKey = daykey.FromTime(start, loc)
		}
		if eerr != nil {
			diags = append(diags, Diagnostic{BlockID: b.ID, Source: "block.end", Value: b.End})
		}
		if serr == nil && eerr == nil {
			nb.DurationMinutes = clamp(end.Sub(start).Minutes(), 0, minutesPerDay)
		}
		nb.PracticeKey = PracticeOf(b.Practice)
		if nb.PracticeKey == PracticeUnknown {
			nb.PracticeKey = PracticeOf(b.Category)
		}
		if nb.PracticeKey != PracticeUnknown {
			nb.Block.Practice = string(nb.PracticeKey)
		}
		if b.IsCompleted() {
			nb.Block.Status = domain.BlockCompleted
		}
		nb.PlannedMinutes = nb.DurationMinutes
		if nb.Block.IsCompleted() {
			nb.CompletedMinutes = nb.PlannedMinutes
		}
		out = append(out, nb)
	}
	return out, diags
}

// Blocks strips the derived fields.
func Blocks(nbs []NormalizedBlock) []domain.Block {
	out := make([]domain.Block, len(nbs))
	for i, nb := range nbs {
		out[i] = nb.Block
	}
	return out
}

type Reason string

const (
	InWindow          Reason = "IN_WINDOW"
	OutOfWindow       Reason = "OUT_OF_WINDOW"
	PaddedDayExcluded Reason = "PADDED_DAY_EXCLUDED"
)

// Decision is the outcome of WindowFilter.
type Decision struct {
	Included bool   `json:"included"`
	Reason   Reason `json:"reason"`
}

// WindowFilter decides whether a block belongs to w. A block whose day key is
// in range but not in an explicit include set is PADDED_DAY_EXCLUDED.
func WindowFilter(w domain.Window, b NormalizedBlock) Decision {
	k := b.DayKey
	inRange := k != "" &&
		(w.Start == "" || k >= w.Start) &&
		(w.EndExclusive == "" || k < w.EndExclusive)
	inList := len(w.Include) == 0 || contains(w.Include, k)
	switch {
	case inRange && inList:
		return Decision{Included: true, Reason: InWindow}
	case len(w.Include) > 0 && !inList:
		return Decision{Reason: PaddedDayExcluded}
	}
	return Decision{Reason: OutOfWindow}
}

func contains(keys []string, k string) bool {
	for _, v := range keys {
		if v == k {
			return true
		}
	}
	return false
}

// DayCount is the number of day keys in [w.Start, w.EndExclusive).
func DayCount(w domain.Window) int {
	n, err := daykey.Diff(w.Start, w.EndExclusive)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
