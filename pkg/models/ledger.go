package models

import "time"

// SnapshotVersion is the current ledger snapshot format version.
// External tooling uses it to migrate exported snapshots.
const SnapshotVersion = 1

// LedgerSnapshot is the compact, resumable record of an objective's
// cycle state. Exactly one live snapshot exists per active objective;
// it is overwritten at each phase boundary and deleted when the
// objective reaches a terminal status.
type LedgerSnapshot struct {
	// Version is the snapshot format version.
	Version int `json:"version" yaml:"version"`
	// ObjectiveID keys the snapshot.
	ObjectiveID string `json:"objective_id" yaml:"objective_id"`
	// LastCompletedPhase is the most recent phase committed to
	// memory. Empty before the first phase completes. It never
	// regresses except through an explicit replan rollback.
	LastCompletedPhase Phase `json:"last_completed_phase" yaml:"last_completed_phase"`
	// MemoryCursor is the Seq of the last committed memory entry for
	// this objective. A resume replays memory from here forward.
	MemoryCursor int64 `json:"memory_cursor" yaml:"memory_cursor"`
	// OpenQuestions carries unresolved questions across context loss,
	// in the order they were raised.
	OpenQuestions []string `json:"open_questions,omitempty" yaml:"open_questions,omitempty"`
	// NextActionHint tells a resumed cycle what was about to happen.
	NextActionHint string `json:"next_action_hint,omitempty" yaml:"next_action_hint,omitempty"`
	// UpdatedAt is when the snapshot was last written.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NextPhase returns the phase a resumed cycle should run next.
func (s *LedgerSnapshot) NextPhase() Phase {
	if s.LastCompletedPhase == "" {
		return PhaseObserve
	}
	return s.LastCompletedPhase.Next()
}
