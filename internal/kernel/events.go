package kernel

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/recursive-core/arc/pkg/models"
)

// EventType represents the type of kernel event.
type EventType string

const (
	// EventObjectiveSubmitted indicates an objective entered the kernel.
	EventObjectiveSubmitted EventType = "objective_submitted"
	// EventObjectiveRouted indicates routing assigned a capability.
	EventObjectiveRouted EventType = "objective_routed"
	// EventObjectiveBlocked indicates an objective cannot proceed.
	EventObjectiveBlocked EventType = "objective_blocked"
	// EventPhaseCompleted indicates a phase committed to memory.
	EventPhaseCompleted EventType = "phase_completed"
	// EventPhaseRetrying indicates a failed phase will be retried.
	EventPhaseRetrying EventType = "phase_retrying"
	// EventObjectiveDone indicates an objective completed successfully.
	EventObjectiveDone EventType = "objective_done"
	// EventObjectiveFailed indicates an objective failed permanently.
	EventObjectiveFailed EventType = "objective_failed"
	// EventObjectiveResumed indicates a cycle restarted from the ledger.
	EventObjectiveResumed EventType = "objective_resumed"
)

// Event is emitted by the kernel at every objective state change.
// The TUI and watch command consume these.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// ObjectiveID is the affected objective.
	ObjectiveID string
	// Phase is the related cycle phase, if applicable.
	Phase models.Phase
	// Cycle is the current observe-act cycle number, if applicable.
	Cycle int
	// Capability is the assigned handler, if applicable.
	Capability string
	// Message provides additional context about the event.
	Message string
	// Err contains failure details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// eventEmitter provides thread-safe, non-blocking event emission.
type eventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

func newEventEmitter(bufferSize int) *eventEmitter {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &eventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// emit sends an event without ever blocking the cycle. A full channel
// drops the event after a short grace period.
func (e *eventEmitter) emit(event Event) {
	event.Timestamp = time.Now()

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[kernel] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// Events returns the kernel's event stream.
func (k *Kernel) Events() <-chan Event {
	return k.emitter.events
}

// DroppedEvents returns how many events were dropped due to a full
// channel.
func (k *Kernel) DroppedEvents() uint64 {
	return k.emitter.droppedCount.Load()
}
