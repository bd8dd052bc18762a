package nextmove

import (
	"math"
	"time"

	"jericho/internal/daykey"
	"jericho/internal/domain"
	"jericho/internal/metrics"
)

type TimeBucket string

const (
	Morning   TimeBucket = "morning"
	Afternoon TimeBucket = "afternoon"
	Evening   TimeBucket = "evening"
	Night     TimeBucket = "night"
)

// DurationBuckets are upper bounds in minutes; anything longer lands in 120.
var DurationBuckets = []int{15, 30, 60, 90, 120}

func timeBucketOf(hour int) TimeBucket {
	switch {
	case hour < 12:
		return Morning
	case hour < 17:
		return Afternoon
	case hour < 21:
		return Evening
	}
	return Night
}

func durationBucketOf(minutes int) int {
	for _, b := range DurationBuckets[:len(DurationBuckets)-1] {
		if minutes <= b {
			return b
		}
	}
	return DurationBuckets[len(DurationBuckets)-1]
}

// CompletionStats are historical success rates used by the goal type
// scheme's feasibility factor.
type CompletionStats struct {
	RateByTimeBucket     map[TimeBucket]float64    `json:"rate_by_time_bucket"`
	RateByDurationBucket map[int]float64           `json:"rate_by_duration_bucket"`
	RateByDomain         map[domain.Domain]float64 `json:"rate_by_domain"`
}

type tally struct{ success, total int }

func (t tally) rate() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.success) / float64(t.total)
}

// ComputeCompletionStats buckets past blocks by local start hour, duration
// and domain. Blocks with no parseable start count as morning.
func ComputeCompletionStats(history []metrics.NormalizedBlock, loc *time.Location) CompletionStats {
	byTime := map[TimeBucket]*tally{Morning: {}, Afternoon: {}, Evening: {}, Night: {}}
	byDur := map[int]*tally{}
	for _, b := range DurationBuckets {
		byDur[b] = &tally{}
	}
	byDomain := map[domain.Domain]*tally{}

	for _, b := range history {
		ok := b.IsCompleted()
		tb := Morning
		if h, parsed := daykey.HourOf(b.Start, loc); parsed {
			tb = timeBucketOf(h)
		}
		db := durationBucketOf(int(math.Round(b.DurationMinutes)))
		d := blockDomain(b)
		if byDomain[d] == nil {
			byDomain[d] = &tally{}
		}
		for _, t := range []*tally{byTime[tb], byDur[db], byDomain[d]} {
			t.total++
			if ok {
				t.success++
			}
		}
	}

	stats := CompletionStats{
		RateByTimeBucket:     map[TimeBucket]float64{},
		RateByDurationBucket: map[int]float64{},
		RateByDomain:         map[domain.Domain]float64{},
	}
	for k, t := range byTime {
		stats.RateByTimeBucket[k] = t.rate()
	}
	for k, t := range byDur {
		stats.RateByDurationBucket[k] = t.rate()
	}
	for k, t := range byDomain {
		stats.RateByDomain[k] = t.rate()
	}
	return stats
}

// RecommendDuration picks the duration bucket with the best success rate,
// first bucket winning ties. Without any successes it falls back to 60
// minutes under pressure above 0.6 and 30 otherwise. The result is clamped
// to [15, 120].
func RecommendDuration(pressure float64, stats CompletionStats) int {
	best := 30
	if pressure > 0.6 {
		best = 60
	}
	bestRate := 0.0
	for _, b := range DurationBuckets {
		if r := stats.RateByDurationBucket[b]; r > bestRate {
			best, bestRate = b, r
		}
	}
	return min(120, max(15, best))
}

func blockDomain(b metrics.NormalizedBlock) domain.Domain {
	if d := b.PracticeKey.Domain(); d != "" {
		return d
	}
	return domain.Focus
}
