package nextmove

import (
	"jericho/internal/domain"
	"jericho/internal/goalprofile"
)

const newBlockMinutes = 30

// KeywordCandidates turns every block of the day into a scheduled_block
// candidate, adds a gap_fill when the dominant domain has no block and a
// first_move when the day is empty.
func KeywordCandidates(c Context) []Candidate {
	today := c.today()
	var out []Candidate
	hasDominant := false
	for _, b := range today {
		d := blockDomain(b)
		if d == c.Profile.DominantDomain {
			hasDominant = true
		}
		out = append(out, Candidate{
			Kind:            KindScheduledBlock,
			Domain:          d,
			DurationMinutes: estimateDuration(b),
			StartISO:        b.Start,
			BlockID:         b.ID,
			Title:           blockTitle(b),
			Status:          b.Status,
		})
	}
	if !hasDominant && c.fits(newBlockMinutes) {
		out = append(out, Candidate{
			Kind:            KindGapFill,
			Domain:          c.Profile.DominantDomain,
			DurationMinutes: newBlockMinutes,
			Title:           "Goal-aligned " + lowerDomain(c.Profile.DominantDomain) + " block",
		})
	}
	if len(today) == 0 && c.fits(newBlockMinutes) {
		out = append(out, Candidate{
			Kind:            KindFirstMove,
			Domain:          c.Profile.DominantDomain,
			DurationMinutes: newBlockMinutes,
			Title:           "First move toward goal",
		})
	}
	return out
}

// ScoreKeyword applies the additive keyword scheme.
func ScoreKeyword(cand Candidate, p goalprofile.Profile) Scored {
	s := Scored{Candidate: cand, Rationale: []string{}}
	if cand.Domain == p.DominantDomain {
		s.Score += 40
		s.Rationale = append(s.Rationale, "Domain matches goal")
		if p.Urgency == goalprofile.UrgencyHigh {
			s.Score += 25
			s.Rationale = append(s.Rationale, "High urgency")
		}
	}
	if cand.Kind == KindScheduledBlock {
		switch cand.Status {
		case "", domain.BlockPending:
			s.Score += 15
			s.Rationale = append(s.Rationale, "Pending block ready to execute")
		case domain.BlockCompleted:
			s.Score -= 10
			s.Rationale = append(s.Rationale, "Already completed")
		}
	}
	if cand.DurationMinutes >= 15 && cand.DurationMinutes <= 90 {
		s.Score += 10
		s.Rationale = append(s.Rationale, "Duration in sweet spot")
	}
	if cand.DurationMinutes > 180 {
		s.Score -= 20
		s.Rationale = append(s.Rationale, "Duration too long")
	}
	return s
}

// Keyword picks the day's directive under the keyword scheme. Ties on
// score and start go to the shorter candidate.
func Keyword(c Context) Directive {
	cands := KeywordCandidates(c)
	scored := make([]Scored, 0, len(cands))
	for _, cand := range cands {
		scored = append(scored, ScoreKeyword(cand, c.Profile))
	}
	top, ok := Select(scored, ShorterFirst, c.Location)
	if !ok {
		return None(c.DayKey)
	}
	d := Directive{
		Kind:      top.Kind,
		DayKey:    c.DayKey,
		Domain:    top.Domain,
		Title:     top.Title,
		Score:     top.Score,
		Rationale: limit(top.Rationale, 3),
	}
	if top.Kind == KindScheduledBlock {
		d.Type = DirectiveExecute
		d.DurationMinutes = top.DurationMinutes
		d.BlockID = top.BlockID
		d.StartISO = top.StartISO
		d.DoneWhen = "When the referenced block is completed today."
		return d
	}
	d.Type = DirectiveSchedule
	d.DurationMinutes = newBlockMinutes
	d.DoneWhen = "When a block of this domain and duration is completed today."
	return d
}
