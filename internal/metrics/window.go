package metrics

import (
	"math"
	"sort"

	"jericho/internal/daykey"
	"jericho/internal/domain"
)

type WindowInput struct {
	Blocks         []NormalizedBlock
	Window         domain.Window
	Mode           string
	PlanSource     PlanSource
	PatternTargets Targets
}

type Exclusion struct {
	ID     string `json:"id"`
	Reason Reason `json:"reason"`
}

type UnknownSummary struct {
	Blocks           int     `json:"unknown_blocks"`
	PlannedMinutes   float64 `json:"unknown_planned_minutes"`
	CompletedMinutes float64 `json:"unknown_completed_minutes"`
}

// Provenance records which blocks fed a metric and why others did not.
type Provenance struct {
	Window                  domain.Window  `json:"window"`
	IncludedBlockIDs        []string       `json:"included_block_ids"`
	Excluded                []Exclusion    `json:"excluded"`
	Mode                    string         `json:"mode"`
	PlanSource              PlanSource     `json:"plan_source"`
	ScheduledPlannedMinutes float64        `json:"scheduled_planned_minutes"`
	Summary                 UnknownSummary `json:"summary"`
}

type WindowMetrics struct {
	PlannedMinutes   float64    `json:"planned_minutes"`
	CompletedMinutes float64    `json:"completed_minutes"`
	CR               float64    `json:"cr"`
	DayKeys          []string   `json:"day_keys"`
	Provenance       Provenance `json:"provenance"`
}

// ComputeWindowMetrics sums planned and completed minutes of the blocks in
// the window. With PlanTargets and no scheduled minutes at all, planned
// minutes are projected from the pattern targets; scheduled minutes always
// win otherwise.
func ComputeWindowMetrics(in WindowInput) WindowMetrics {
	if in.Mode == "" {
		in.Mode = "calendar"
	}
	if in.PlanSource == "" {
		in.PlanSource = PlanScheduled
	}
	prov := Provenance{
		Window:           in.Window,
		IncludedBlockIDs: []string{},
		Excluded:         []Exclusion{},
		Mode:             in.Mode,
		PlanSource:       in.PlanSource,
	}
	dayKeys := []string{}
	var planned, completed float64
	for _, b := range in.Blocks {
		d := WindowFilter(in.Window, b)
		if !d.Included {
			prov.Excluded = append(prov.Excluded, Exclusion{ID: b.ID, Reason: d.Reason})
			continue
		}
		prov.IncludedBlockIDs = append(prov.IncludedBlockIDs, b.ID)
		dayKeys = append(dayKeys, b.DayKey)
		planned += finite(b.PlannedMinutes)
		completed += finite(b.CompletedMinutes)
		if b.PracticeKey == PracticeUnknown {
			prov.Summary.Blocks++
			prov.Summary.PlannedMinutes += finite(b.PlannedMinutes)
			prov.Summary.CompletedMinutes += finite(b.CompletedMinutes)
		}
	}
	prov.ScheduledPlannedMinutes = planned

	if in.PlanSource == PlanTargets && planned == 0 && in.PatternTargets != nil &&
		in.Window.Start != "" && in.Window.EndExclusive != "" {
		planned = clamp(in.PatternTargets.PerDay()*float64(DayCount(in.Window)), 0, maxWindowMins)
	}

	planned = clamp(planned, 0, maxWindowMins)
	completed = clamp(completed, 0, planned)
	var cr float64
	if planned > 0 {
		cr = clamp(completed/planned, 0, 1)
	}
	return WindowMetrics{
		PlannedMinutes:   planned,
		CompletedMinutes: completed,
		CR:               cr,
		DayKeys:          dayKeys,
		Provenance:       prov,
	}
}

// ComputeDayMetricsMap computes one single-day window per distinct day key.
func ComputeDayMetricsMap(blocks []NormalizedBlock, dayKeys []string, mode string) map[string]WindowMetrics {
	out := make(map[string]WindowMetrics, len(dayKeys))
	for _, k := range dayKeys {
		if _, ok := out[k]; ok {
			continue
		}
		end := nextDay(k)
		out[k] = ComputeWindowMetrics(WindowInput{
			Blocks: blocks,
			Window: domain.Window{Start: k, EndExclusive: end, Include: []string{k}},
			Mode:   mode,
		})
	}
	return out
}

// DomainInstrumentation is today's load for one practice.
type DomainInstrumentation struct {
	Practice  Practice      `json:"practice"`
	Domain    domain.Domain `json:"domain"`
	Target    float64       `json:"target"`
	Scheduled float64       `json:"scheduled"`
	Completed float64       `json:"completed"`
	Gap       float64       `json:"gap"`
}

// ComputeTodayDomainInstrumentation reports target, scheduled, completed and
// gap = max(0, target - completed) per practice for one day. Blocks on other
// days or without a practice are skipped.
func ComputeTodayDomainInstrumentation(dayKey string, blocks []NormalizedBlock, targets Targets) []DomainInstrumentation {
	out := make([]DomainInstrumentation, len(PracticeKeys))
	idx := make(map[Practice]int, len(PracticeKeys))
	for i, p := range PracticeKeys {
		out[i] = DomainInstrumentation{Practice: p, Domain: p.Domain(), Target: finite(targets[p])}
		idx[p] = i
	}
	for _, b := range blocks {
		if b.DayKey != dayKey {
			continue
		}
		i, ok := idx[b.PracticeKey]
		if !ok {
			continue
		}
		out[i].Scheduled += finite(b.PlannedMinutes)
		out[i].Completed += finite(b.CompletedMinutes)
	}
	for i := range out {
		out[i].Gap = math.Max(0, out[i].Target-out[i].Completed)
	}
	return out
}

// GapFor returns the gap minutes of d in an instrumentation slice.
func GapFor(inst []DomainInstrumentation, d domain.Domain) float64 {
	for _, r := range inst {
		if r.Domain == d {
			return r.Gap
		}
	}
	return 0
}

// PracticeLoad is planned minutes per practice. Unknown minutes are kept
// apart unless the policy includes them.
type PracticeLoad struct {
	Planned                 map[Practice]float64 `json:"planned"`
	UnknownPlannedMinutes   float64              `json:"unknown_planned_minutes"`
	UnknownCompletedMinutes float64              `json:"unknown_completed_minutes"`
}

func GroupPracticeLoad(blocks []NormalizedBlock, policy UnknownPolicy) PracticeLoad {
	load := PracticeLoad{Planned: map[Practice]float64{}}
	for _, b := range blocks {
		if b.PracticeKey == PracticeUnknown && !policy.IncludeInPracticeLoad {
			load.UnknownPlannedMinutes += finite(b.PlannedMinutes)
			load.UnknownCompletedMinutes += finite(b.CompletedMinutes)
			continue
		}
		load.Planned[b.PracticeKey] += finite(b.PlannedMinutes)
	}
	return load
}

type Band string

const (
	BandStrong   Band = "Strong"
	BandModerate Band = "Moderate"
	BandWeak     Band = "Weak"
)

func BandFromScore(s float64) Band {
	switch {
	case s >= 0.7:
		return BandStrong
	case s >= 0.4:
		return BandModerate
	}
	return BandWeak
}

type Deficit struct {
	Practice   Practice `json:"practice"`
	GapMinutes int      `json:"gap_minutes"`
}

type Drift struct {
	Score        float64              `json:"score"`
	Band         Band                 `json:"band"`
	Distance     float64              `json:"distance"`
	PlannedTotal float64              `json:"planned_total"`
	Mix          map[Practice]float64 `json:"mix"`
	Deficits     []Deficit            `json:"deficits"`
}

// ComputeDrift compares the planned practice mix with a target mix by L1
// distance. Unknown minutes are excluded unless the policy says otherwise.
// A nil target mix weights the four practices equally.
func ComputeDrift(blocks []NormalizedBlock, target map[Practice]float64, policy UnknownPolicy) Drift {
	if len(target) == 0 {
		target = make(map[Practice]float64, len(PracticeKeys))
		for _, p := range PracticeKeys {
			target[p] = 1 / float64(len(PracticeKeys))
		}
	}
	plannedBy := map[Practice]float64{}
	var total float64
	for _, b := range blocks {
		if b.PracticeKey == PracticeUnknown && !policy.IncludeInDrift {
			continue
		}
		plannedBy[b.PracticeKey] += finite(b.PlannedMinutes)
		total += finite(b.PlannedMinutes)
	}
	d := Drift{Mix: map[Practice]float64{}, Deficits: []Deficit{}, PlannedTotal: total, Distance: 2}
	for _, p := range PracticeKeys {
		d.Mix[p] = 0
	}
	if total <= 0 {
		d.Band = BandFromScore(0)
		return d
	}
	var dist float64
	for _, p := range PracticeKeys {
		share := plannedBy[p] / total
		d.Mix[p] = share
		dist += math.Abs(share - target[p])
	}
	d.Distance = dist
	d.Score = clamp(1-dist/2, 0, 1)
	d.Band = BandFromScore(d.Score)
	for _, p := range PracticeKeys {
		gap := target[p]*total - plannedBy[p]
		if gap > 0 {
			d.Deficits = append(d.Deficits, Deficit{Practice: p, GapMinutes: int(math.Round(gap))})
		}
	}
	sort.SliceStable(d.Deficits, func(i, j int) bool { return d.Deficits[i].GapMinutes > d.Deficits[j].GapMinutes })
	return d
}

func nextDay(k string) string {
	n, err := daykey.AddDays(k, 1)
	if err != nil {
		return ""
	}
	return n
}
