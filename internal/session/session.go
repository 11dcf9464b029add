package session

import (
	"sync"
	"time"
)

// Phase is the lifecycle phase of a guidance session.
type Phase string

const (
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
)

// Session is one farmer's traversal of the capture sequence. All
// mutable fields are guarded by the session's own mutex so that
// operations on the same session never interleave their mutations,
// while different sessions proceed in parallel. The lock is held only
// for in-memory mutation, never across network calls.
type Session struct {
	mu sync.Mutex

	ID               string
	FarmerID         string
	Language         string
	CurrentStepIndex int
	CapturedSteps    []string
	SkippedSteps     []string
	StartedAt        time.Time
	LastActivityAt   time.Time
	Phase            Phase
}

// Lock acquires the per-session mutex for a step transition.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session mutex.
func (s *Session) Unlock() { s.mu.Unlock() }

// AddCaptured records a captured step id. Adding an id that is already
// present is a no-op, so a second capture of the same step keeps the
// set free of duplicates. Callers must hold the session lock.
func (s *Session) AddCaptured(stepID string) {
	for _, id := range s.CapturedSteps {
		if id == stepID {
			return
		}
	}
	s.CapturedSteps = append(s.CapturedSteps, stepID)
}

// AddSkipped records a skipped step id, idempotently. A step may appear
// in both the captured and skipped sets; skip-then-capture keeps both
// facts. Callers must hold the session lock.
func (s *Session) AddSkipped(stepID string) {
	for _, id := range s.SkippedSteps {
		if id == stepID {
			return
		}
	}
	s.SkippedSteps = append(s.SkippedSteps, stepID)
}

// CapturedSet returns the captured step ids as a lookup set. Callers
// must hold the session lock.
func (s *Session) CapturedSet() map[string]bool {
	set := make(map[string]bool, len(s.CapturedSteps))
	for _, id := range s.CapturedSteps {
		set[id] = true
	}
	return set
}

// Snapshot is a read-only copy of a session's state for status queries.
type Snapshot struct {
	ID               string    `json:"sessionId"`
	FarmerID         string    `json:"farmerId"`
	Language         string    `json:"language"`
	CurrentStepIndex int       `json:"currentStepIndex"`
	CapturedSteps    []string  `json:"capturedSteps"`
	SkippedSteps     []string  `json:"skippedSteps"`
	StartedAt        time.Time `json:"startedAt"`
	LastActivityAt   time.Time `json:"lastActivityAt"`
	Phase            Phase     `json:"phase"`
}

// Snapshot copies the session state. Safe to call concurrently with
// step transitions.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	captured := make([]string, len(s.CapturedSteps))
	copy(captured, s.CapturedSteps)
	skipped := make([]string, len(s.SkippedSteps))
	copy(skipped, s.SkippedSteps)

	return Snapshot{
		ID:               s.ID,
		FarmerID:         s.FarmerID,
		Language:         s.Language,
		CurrentStepIndex: s.CurrentStepIndex,
		CapturedSteps:    captured,
		SkippedSteps:     skipped,
		StartedAt:        s.StartedAt,
		LastActivityAt:   s.LastActivityAt,
		Phase:            s.Phase,
	}
}
