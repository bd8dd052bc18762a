package nextmove

import (
	"fmt"
	"math"
	"strings"

	"jericho/internal/daykey"
	"jericho/internal/domain"
	"jericho/internal/goalprofile"
)

// GoalTypeCandidates lists pending blocks of the day as EXECUTE_EXISTING.
// With nothing pending it proposes one SCHEDULE_NEW block sized by
// RecommendDuration.
func GoalTypeCandidates(c Context) []Candidate {
	var out []Candidate
	for _, b := range c.today() {
		if !isPending(b) {
			continue
		}
		out = append(out, Candidate{
			Kind:            KindExecuteExisting,
			Domain:          blockDomain(b),
			DurationMinutes: estimateDuration(b),
			StartISO:        b.Start,
			BlockID:         b.ID,
			Title:           blockTitle(b),
			Status:          domain.BlockPending,
		})
	}
	if len(out) > 0 {
		return out
	}
	dur := RecommendDuration(c.Profile.Pressure, c.Stats)
	if !c.fits(dur) {
		return nil
	}
	return []Candidate{{
		Kind:            KindScheduleNew,
		Domain:          c.Profile.DominantDomain,
		DurationMinutes: dur,
		Title:           "Goal-aligned work",
	}}
}

// ScoreGoalType is leverage (domain match 40 + token overlap up to 20) +
// deadline fit (up to 20) + feasibility (up to 20) - stability penalty
// (up to 10).
func ScoreGoalType(cand Candidate, c Context) Scored {
	p := c.Profile
	domainMatch := 0
	if cand.Domain == p.DominantDomain {
		domainMatch = 40
	}
	hits := 0
	for _, w := range goalprofile.Tokenize(cand.Title) {
		if p.HasToken(w) {
			hits++
		}
	}
	overlap := min(20, hits*5)
	deadlineFit := int(math.Round(20 * p.Pressure))
	feasibility := feasibilityScore(cand, c)
	penalty := stabilityPenalty(c.Gaps[cand.Domain])
	return Scored{
		Candidate: cand,
		Score:     domainMatch + overlap + deadlineFit + feasibility - penalty,
		Rationale: whyParts(cand, c),
	}
}

func feasibilityScore(cand Candidate, c Context) int {
	hour := 9
	if h, ok := daykey.HourOf(cand.StartISO, c.Location); cand.StartISO != "" && ok {
		hour = h
	}
	dur := cand.DurationMinutes
	if dur <= 0 {
		dur = newBlockMinutes
	}
	timeRate := c.Stats.RateByTimeBucket[timeBucketOf(hour)]
	durRate := c.Stats.RateByDurationBucket[durationBucketOf(dur)]
	return int(math.Round((timeRate + durRate) / 2 * 20))
}

func stabilityPenalty(gap float64) int {
	if gap <= 0 || math.IsNaN(gap) {
		return 0
	}
	return min(10, int(math.Round(gap/30)))
}

func whyParts(cand Candidate, c Context) []string {
	var parts []string
	if c.Profile.Pressure > 0 {
		parts = append(parts, fmt.Sprintf("Deadline pressure %.0f%%", c.Profile.Pressure*100))
	}
	if cand.Domain == c.Profile.DominantDomain {
		parts = append(parts, "Matches dominant domain "+string(c.Profile.DominantDomain))
	}
	if gap := c.Gaps[cand.Domain]; gap > 0 {
		parts = append(parts, fmt.Sprintf("Closes %sm gap in %s", formatMinutes(gap), cand.Domain))
	}
	if len(parts) == 0 {
		parts = append(parts, "Aligned with goal tokens")
	}
	return parts
}

func formatMinutes(m float64) string {
	if m == math.Trunc(m) {
		return fmt.Sprintf("%d", int(m))
	}
	return fmt.Sprintf("%.1f", m)
}

// GoalType picks the day's directive under the goal type scheme. Ties on
// score and start go to the longer candidate.
func GoalType(c Context) Directive {
	cands := GoalTypeCandidates(c)
	scored := make([]Scored, 0, len(cands))
	for _, cand := range cands {
		scored = append(scored, ScoreGoalType(cand, c))
	}
	top, ok := Select(scored, LongerFirst, c.Location)
	if !ok {
		return None(c.DayKey)
	}
	d := Directive{
		Kind:            top.Kind,
		DayKey:          c.DayKey,
		Domain:          top.Domain,
		Title:           top.Title,
		DurationMinutes: top.DurationMinutes,
		BlockID:         top.BlockID,
		StartISO:        top.StartISO,
		Score:           top.Score,
		Rationale:       limit(top.Rationale, 3),
		Why:             strings.Join(top.Rationale, "; "),
	}
	if top.Kind == KindExecuteExisting {
		d.Type = DirectiveExecute
		d.DoneWhen = fmt.Sprintf("Done when block \"%s\" is completed.", top.Title)
	} else {
		d.Type = DirectiveSchedule
		d.DoneWhen = fmt.Sprintf("Done when the block is scheduled today with duration %dm.", top.DurationMinutes)
	}
	return d
}
