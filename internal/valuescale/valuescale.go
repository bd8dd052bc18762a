// Package valuescale re-weights capability requirements from the history of
// capability change cycles.
package valuescale

import (
	"math"
	"strings"

	"jericho/internal/domain"
)

const (
	MaxDelta  = 0.1
	MinWeight = 0.05
	MaxWeight = 1.0
)

// Stats summarise how often a capability changed and how well.
type Stats struct {
	CyclesTouched int     `json:"cycles_touched"`
	TotalDelta    float64 `json:"total_delta"`
	AvgDelta      float64 `json:"avg_delta"`
	AvgIntegrity  float64 `json:"avg_integrity"`
}

// Key identifies a capability case-insensitively.
func Key(domainName, capability string) string {
	return strings.ToLower(domainName + ":" + capability)
}

// BuildStats folds every change of every cycle into per-capability stats.
func BuildStats(history []domain.CapabilityCycle) map[string]Stats {
	out := map[string]Stats{}
	for _, cycle := range history {
		for _, ch := range cycle.Changes {
			k := Key(ch.Domain, ch.Capability)
			s := out[k]
			prev := float64(s.CyclesTouched)
			s.CyclesTouched++
			s.TotalDelta += finite(ch.Delta)
			s.AvgDelta = s.TotalDelta / float64(s.CyclesTouched)
			s.AvgIntegrity = (s.AvgIntegrity*prev + finite(cycle.Integrity)) / float64(s.CyclesTouched)
			out[k] = s
		}
	}
	return out
}

// Adjustment is the raw weight change for one capability before clamping.
func Adjustment(s Stats) float64 {
	var d float64
	highIntegrity := s.AvgIntegrity >= 70
	if s.AvgDelta > 0.2 && highIntegrity {
		d += 0.05
	}
	if math.Abs(s.AvgDelta) <= 0.1 && highIntegrity {
		d += 0.03
	}
	// regressions get more emphasis, not less
	if s.AvgDelta < -0.1 {
		d += 0.04
	}
	if s.CyclesTouched == 0 {
		d -= 0.03
	}
	return clamp(d, -MaxDelta, MaxDelta)
}

// UpdateCapabilityWeights returns new requirements whose weights are
// adjusted, clamped to [MinWeight, MaxWeight] and normalised to sum to 1.
// When the adjusted sum is not positive, unchanged copies are returned.
// The input slice is never modified.
func UpdateCapabilityWeights(reqs []domain.CapabilityRequirement, history []domain.CapabilityCycle) []domain.CapabilityRequirement {
	stats := BuildStats(history)
	adjusted := make([]domain.CapabilityRequirement, len(reqs))
	var sum float64
	for i, r := range reqs {
		w := clamp(finite(r.Weight)+Adjustment(stats[Key(r.Domain, r.Capability)]), MinWeight, MaxWeight)
		r.Weight = w
		adjusted[i] = r
		sum += w
	}
	if sum <= 0 {
		return append([]domain.CapabilityRequirement{}, reqs...)
	}
	for i := range adjusted {
		adjusted[i].Weight /= sum
	}
	return adjusted
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
