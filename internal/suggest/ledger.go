// Package suggest manages suggested blocks as an event-sourced ledger: base
// records plus an append-only event log, with status always derived by
// replaying the log. Nothing here mutates its inputs.
package suggest

import (
	"errors"
	"fmt"
	"time"

	"jericho/internal/domain"
)

var (
	ErrUnknownSuggestion  = errors.New("unknown suggestion")
	ErrInvalidTransition  = errors.New("invalid suggestion transition")
	ErrInvalidReason      = errors.New("invalid rejection reason")
	ErrInvalidDaysPerWeek = errors.New("days per week out of range")
	ErrAlreadyPlanned     = errors.New("suggestions already planned; recalibrate instead")
)

type RejectionReason string

const (
	ReasonTooLong       RejectionReason = "TOO_LONG"
	ReasonWrongTime     RejectionReason = "WRONG_TIME"
	ReasonLowEnergy     RejectionReason = "LOW_ENERGY"
	ReasonNotRelevant   RejectionReason = "NOT_RELEVANT"
	ReasonMissingPrereq RejectionReason = "MISSING_PREREQ"
	ReasonOvercommitted RejectionReason = "OVERCOMMITTED"
)

var RejectionReasons = []RejectionReason{
	ReasonTooLong, ReasonWrongTime, ReasonLowEnergy, ReasonNotRelevant, ReasonMissingPrereq, ReasonOvercommitted,
}

func ParseReason(s string) (RejectionReason, error) {
	for _, r := range RejectionReasons {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReason, s)
}

// Ledger holds one goal's suggestions. Blocks carry the generated records
// in placement order; their Status field is ignored in favour of Events.
type Ledger struct {
	Blocks []domain.SuggestedBlock
	Events []domain.SuggestionEvent
}

// Stamp is when, and on which local day, a command happens.
type Stamp struct {
	At     time.Time
	DayKey string
}

func (s Stamp) iso() string {
	return s.At.UTC().Format(time.RFC3339)
}

var statusByEvent = map[domain.SuggestionEventType]domain.SuggestionStatus{
	domain.EventSuggestionAccepted:  domain.SuggestionAccepted,
	domain.EventSuggestionRejected:  domain.SuggestionRejected,
	domain.EventSuggestionIgnored:   domain.SuggestionIgnored,
	domain.EventSuggestionDismissed: domain.SuggestionDismissed,
}

// Statuses replays the log into the current status of every touched id.
func (l Ledger) Statuses() map[string]domain.SuggestionStatus {
	out := map[string]domain.SuggestionStatus{}
	for _, e := range l.Events {
		if st, ok := statusByEvent[e.Type]; ok {
			out[e.Subject()] = st
		}
	}
	return out
}

// Current projects the blocks with their replayed status.
func (l Ledger) Current() []domain.SuggestedBlock {
	statuses := l.Statuses()
	out := make([]domain.SuggestedBlock, len(l.Blocks))
	for i, b := range l.Blocks {
		b.Status = domain.SuggestionSuggested
		if st, ok := statuses[b.ID]; ok {
			b.Status = st
		}
		out[i] = b
	}
	return out
}

// Find returns the projected block with id.
func (l Ledger) Find(id string) (domain.SuggestedBlock, bool) {
	for _, b := range l.Current() {
		if b.ID == id {
			return b, true
		}
	}
	return domain.SuggestedBlock{}, false
}

// Suggested lists the ids still in the suggested state, in order.
func (l Ledger) Suggested() []string {
	ids := []string{}
	for _, b := range l.Current() {
		if b.Status == domain.SuggestionSuggested {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func (l Ledger) with(blocks []domain.SuggestedBlock, events ...domain.SuggestionEvent) Ledger {
	next := Ledger{
		Blocks: append([]domain.SuggestedBlock(nil), blocks...),
		Events: make([]domain.SuggestionEvent, 0, len(l.Events)+len(events)),
	}
	next.Events = append(next.Events, l.Events...)
	next.Events = append(next.Events, events...)
	return next
}

// transition moves id from suggested to target. Re-applying the same
// transition returns the ledger unchanged with applied=false.
func (l Ledger) transition(id string, target domain.SuggestionStatus, evt domain.SuggestionEvent) (Ledger, bool, error) {
	b, ok := l.Find(id)
	if !ok {
		return l, false, fmt.Errorf("%w: %s", ErrUnknownSuggestion, id)
	}
	if b.Status == target {
		return l, false, nil
	}
	if b.Status != domain.SuggestionSuggested {
		return l, false, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, b.Status)
	}
	evt.GoalID = b.GoalID
	return l.with(l.Blocks, evt), true, nil
}

// Accept marks a suggestion accepted.
func (l Ledger) Accept(id string, at Stamp) (Ledger, bool, error) {
	return l.transition(id, domain.SuggestionAccepted, domain.SuggestionEvent{
		ID:         "sev-" + id + "-accepted",
		Type:       domain.EventSuggestionAccepted,
		ProposalID: id,
		DayKey:     at.DayKey,
		AtISO:      at.iso(),
	})
}

// Reject marks a suggestion rejected with one of the fixed reasons.
func (l Ledger) Reject(id string, reason RejectionReason, at Stamp) (Ledger, bool, error) {
	if _, err := ParseReason(string(reason)); err != nil {
		return l, false, err
	}
	return l.transition(id, domain.SuggestionRejected, domain.SuggestionEvent{
		ID:           "sev-" + id + "-rejected",
		Type:         domain.EventSuggestionRejected,
		SuggestionID: id,
		Reason:       string(reason),
		DayKey:       at.DayKey,
		AtISO:        at.iso(),
	})
}

func (l Ledger) Ignore(id string, at Stamp) (Ledger, bool, error) {
	return l.transition(id, domain.SuggestionIgnored, domain.SuggestionEvent{
		ID:           "sev-" + id + "-ignored",
		Type:         domain.EventSuggestionIgnored,
		SuggestionID: id,
		DayKey:       at.DayKey,
		AtISO:        at.iso(),
	})
}

func (l Ledger) Dismiss(id string, at Stamp) (Ledger, bool, error) {
	return l.transition(id, domain.SuggestionDismissed, domain.SuggestionEvent{
		ID:           "sev-" + id + "-dismissed",
		Type:         domain.EventSuggestionDismissed,
		SuggestionID: id,
		DayKey:       at.DayKey,
		AtISO:        at.iso(),
	})
}

// PlanInput parameterises Plan and Recalibrate.
type PlanInput struct {
	GoalID        string
	GoalText      string
	PrimaryDomain domain.Domain
	StartDayKey   string
	DaysPerWeek   int
	Templates     []Template
	Slots         []string
	Location      *time.Location
}

func (in PlanInput) generate(reserved map[string]bool, count int) []domain.SuggestedBlock {
	return Generate(GenerateInput{
		GoalID:        in.GoalID,
		GoalText:      in.GoalText,
		PrimaryDomain: in.PrimaryDomain,
		StartDayKey:   in.StartDayKey,
		BlocksPerWeek: count,
		DaysPerWeek:   in.DaysPerWeek,
		Templates:     in.Templates,
		Slots:         in.Slots,
		Reserved:      reserved,
		Location:      in.Location,
	})
}

func checkDays(d int) error {
	if d < MinDaysPerWeek || d > MaxDaysPerWeek {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDaysPerWeek, d, MinDaysPerWeek, MaxDaysPerWeek)
	}
	return nil
}

// Plan generates the first set of suggestions for an empty ledger and logs
// one created event per suggestion.
func (l Ledger) Plan(in PlanInput, at Stamp) (Ledger, error) {
	if len(l.Blocks) > 0 {
		return l, ErrAlreadyPlanned
	}
	if err := checkDays(in.DaysPerWeek); err != nil {
		return l, err
	}
	blocks := in.generate(nil, BlocksPerWeek(in.DaysPerWeek))
	events := make([]domain.SuggestionEvent, 0, len(blocks))
	for _, b := range blocks {
		events = append(events, domain.SuggestionEvent{
			ID:         "sev-" + b.ID,
			Type:       domain.EventSuggestionCreated,
			GoalID:     b.GoalID,
			ProposalID: b.ID,
			DayKey:     at.DayKey,
			AtISO:      at.iso(),
		})
	}
	return l.with(blocks, events...), nil
}

// Recalibrate regenerates the still-suggested set for a new days-per-week
// value. Every suggestion that left the suggested state keeps its id,
// record and position; only the suggested tail changes. A
// suggestions_recomputed event records the old and new suggested ids.
func (l Ledger) Recalibrate(in PlanInput, at Stamp) (Ledger, bool, error) {
	if err := checkDays(in.DaysPerWeek); err != nil {
		return l, false, err
	}
	var preserved []domain.SuggestedBlock
	reserved := map[string]bool{}
	statuses := l.Statuses()
	for _, b := range l.Blocks {
		if st, ok := statuses[b.ID]; ok && st != domain.SuggestionSuggested {
			preserved = append(preserved, b)
			reserved[b.ID] = true
		}
	}
	target := max(0, BlocksPerWeek(in.DaysPerWeek)-len(preserved))
	fresh := in.generate(reserved, target)

	prev := l.Suggested()
	next := make([]string, len(fresh))
	for i, b := range fresh {
		next[i] = b.ID
	}
	if equalIDs(prev, next) && sameRecords(l.Blocks, preserved, fresh) {
		return l, false, nil
	}
	blocks := append(append([]domain.SuggestedBlock(nil), preserved...), fresh...)
	evt := domain.SuggestionEvent{
		ID:          fmt.Sprintf("sev-recompute-%s-%d", in.GoalID, len(l.Events)+1),
		Type:        domain.EventSuggestionsRecomputed,
		GoalID:      in.GoalID,
		Reason:      fmt.Sprintf("days_per_week=%d", in.DaysPerWeek),
		DayKey:      at.DayKey,
		AtISO:       at.iso(),
		PreviousIDs: prev,
		NextIDs:     next,
	}
	return l.with(blocks, evt), true, nil
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameRecords(current, preserved, fresh []domain.SuggestedBlock) bool {
	if len(current) != len(preserved)+len(fresh) {
		return false
	}
	for i, b := range append(append([]domain.SuggestedBlock(nil), preserved...), fresh...) {
		if current[i] != b {
			return false
		}
	}
	return true
}

// Preview summarises the still-suggested set.
type Preview struct {
	TotalBlocks  int `json:"total_blocks"`
	TotalMinutes int `json:"total_minutes"`
}

func (l Ledger) Preview() Preview {
	var p Preview
	for _, b := range l.Current() {
		if b.Status == domain.SuggestionSuggested {
			p.TotalBlocks++
			p.TotalMinutes += b.DurationMinutes
		}
	}
	return p
}
