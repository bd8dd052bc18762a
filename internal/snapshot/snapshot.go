// Package snapshot builds identity snapshots and keeps a bounded, per-user
// buffer of them.
package snapshot

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"jericho/internal/domain"
)

const DefaultCap = 50

type Capability struct {
	ID            string  `json:"id"`
	Domain        string  `json:"domain"`
	Capability    string  `json:"capability"`
	CurrentLevel  float64 `json:"current_level"`
	TargetLevel   float64 `json:"target_level"`
	DriftRatio    float64 `json:"drift_ratio"`
	PressureScore float64 `json:"pressure_score"`
}

type Integrity struct {
	Score float64 `json:"score"`
	Slope float64 `json:"slope"`
}

type Snapshot struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	GoalID       string       `json:"goal_id,omitempty"`
	Capabilities []Capability `json:"capabilities"`
	Integrity    Integrity    `json:"integrity"`
	LoadIndex    float64      `json:"load_index"`
	CreatedAt    string       `json:"created_at" format:"date-time"`
}

type BuildInput struct {
	UserID       string
	GoalID       string
	Capabilities []domain.CapabilityRequirement
	Integrity    float64
	History      []domain.CapabilityCycle
	Now          time.Time
}

// Build derives per-capability drift and pressure, the integrity slope over
// the last three cycles, and loadIndex = mean pressure × integrity.
func Build(in BuildInput) Snapshot {
	user := in.UserID
	if user == "" {
		user = "default"
	}
	caps := make([]Capability, 0, len(in.Capabilities))
	var pressure float64
	for _, r := range in.Capabilities {
		cur, target := finite(r.CurrentLevel), finite(r.TargetLevel)
		var drift float64
		if target > 0 {
			drift = math.Min(1, cur/target)
		}
		c := Capability{
			ID:            capabilityID(r),
			Domain:        r.Domain,
			Capability:    r.Capability,
			CurrentLevel:  cur,
			TargetLevel:   target,
			DriftRatio:    drift,
			PressureScore: 1 - drift,
		}
		pressure += c.PressureScore
		caps = append(caps, c)
	}
	if len(caps) > 0 {
		pressure /= float64(len(caps))
	}

	recent := in.History
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var slope float64
	if len(recent) >= 2 {
		slope = finite(recent[len(recent)-1].Integrity) - finite(recent[0].Integrity)
	}

	created := in.Now.UTC().Format(time.RFC3339Nano)
	score := finite(in.Integrity)
	return Snapshot{
		ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte(user+"|"+in.GoalID+"|"+created)).String(),
		UserID:       user,
		GoalID:       in.GoalID,
		Capabilities: caps,
		Integrity:    Integrity{Score: score, Slope: slope},
		LoadIndex:    pressure * score,
		CreatedAt:    created,
	}
}

func capabilityID(r domain.CapabilityRequirement) string {
	d, c := r.Domain, r.Capability
	if d == "" {
		d = "domain"
	}
	if c == "" {
		c = "cap"
	}
	return d + "." + c
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Store is an append-only buffer per user, trimmed to Cap entries with the
// oldest evicted first. Each user's list has its own lock.
type Store struct {
	cap   int
	mu    sync.Mutex
	users map[string]*buffer
}

type buffer struct {
	mu    sync.Mutex
	items []Snapshot
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{cap: capacity, users: map[string]*buffer{}}
}

func (s *Store) Cap() int { return s.cap }

func (s *Store) buffer(user string) *buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.users[user]
	if !ok {
		b = &buffer{}
		s.users[user] = b
	}
	return b
}

func (s *Store) Append(snap Snapshot) {
	b := s.buffer(snap.UserID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, snap)
	if over := len(b.items) - s.cap; over > 0 {
		b.items = append([]Snapshot(nil), b.items[over:]...)
	}
}

// Warm seeds an empty buffer, e.g. from persisted rows. It does nothing if
// the user already has entries.
func (s *Store) Warm(user string, snaps []Snapshot) {
	b := s.buffer(user)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) > 0 {
		return
	}
	if over := len(snaps) - s.cap; over > 0 {
		snaps = snaps[over:]
	}
	b.items = append([]Snapshot(nil), snaps...)
}

// Recent returns up to n of the newest snapshots, oldest first.
func (s *Store) Recent(user string, n int) []Snapshot {
	b := s.buffer(user)
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.items) {
		n = len(b.items)
	}
	return append([]Snapshot{}, b.items[len(b.items)-n:]...)
}

// Current returns the newest snapshot.
func (s *Store) Current(user string) (Snapshot, bool) {
	b := s.buffer(user)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return Snapshot{}, false
	}
	return b.items[len(b.items)-1], true
}

func (s *Store) Len(user string) int {
	b := s.buffer(user)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
