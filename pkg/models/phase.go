// Package models defines the shared value types for the ARC kernel:
// objectives, capabilities, memory entries, tool invocations, and
// ledger snapshots.
package models

// Phase represents one stage of the observe-orient-decide-act cycle.
type Phase string

const (
	// PhaseObserve ingests the objective and relevant context.
	PhaseObserve Phase = "OBSERVE"
	// PhaseOrient builds a rationale and surfaces open questions.
	PhaseOrient Phase = "ORIENT"
	// PhaseDecide selects the next action or signals completion.
	PhaseDecide Phase = "DECIDE"
	// PhaseAct executes the decided action through the tool gateway.
	PhaseAct Phase = "ACT"
)

// Valid returns true if the phase is a known value.
func (p Phase) Valid() bool {
	switch p {
	case PhaseObserve, PhaseOrient, PhaseDecide, PhaseAct:
		return true
	default:
		return false
	}
}

// Next returns the phase that follows p in cycle order.
// PhaseAct wraps around to PhaseObserve for the next cycle.
func (p Phase) Next() Phase {
	switch p {
	case PhaseObserve:
		return PhaseOrient
	case PhaseOrient:
		return PhaseDecide
	case PhaseDecide:
		return PhaseAct
	default:
		return PhaseObserve
	}
}

// Outcome records how a phase closed.
type Outcome string

const (
	// OutcomeSuccess indicates the phase completed normally.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeFailure indicates the phase failed.
	OutcomeFailure Outcome = "FAILURE"
	// OutcomePending indicates the phase result is not yet known.
	OutcomePending Outcome = "PENDING"
)

// Valid returns true if the outcome is a known value.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomePending:
		return true
	default:
		return false
	}
}
