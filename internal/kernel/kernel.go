// Package kernel drives bounded observe-orient-decide-act cycles over
// objectives. It owns the state machine: routing, phase sequencing,
// retries, iteration ceilings, and the durable commit of every phase
// to the memory store and continuity ledger.
package kernel

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/recursive-core/arc/internal/gateway"
	"github.com/recursive-core/arc/internal/handler"
	"github.com/recursive-core/arc/internal/router"
	"github.com/recursive-core/arc/internal/state"
	"github.com/recursive-core/arc/pkg/models"
)

// Config holds cycle controller settings.
type Config struct {
	// MaxCycles is the observe-act iteration ceiling per objective.
	MaxCycles int
	// RetryCeiling is how many consecutive failures a phase tolerates
	// before the objective fails.
	RetryCeiling int
	// ContextWindow is how many recent memory entries a handler sees.
	ContextWindow int
	// EventBuffer is the capacity of the event channel.
	EventBuffer int
}

// DefaultConfig returns the stock kernel settings.
func DefaultConfig() Config {
	return Config{
		MaxCycles:     20,
		RetryCeiling:  3,
		ContextWindow: 10,
		EventBuffer:   100,
	}
}

// Kernel is the cycle controller. Objectives are independent: each has
// its own cycle position, retry counts, and ledger snapshot, and
// distinct objectives may advance concurrently.
type Kernel struct {
	config  Config
	db      *state.DB
	router  *router.Router
	gateway *gateway.Gateway
	emitter *eventEmitter

	// summarize compresses memory that ages out of the context
	// window. Optional; nil keeps overflow unsummarized.
	summarize state.Summarizer

	mu       sync.Mutex
	handlers map[string]handler.Handler
	fallback handler.Handler
	handles  map[string]*objectiveHandle
}

// objectiveHandle serializes phase transitions for one objective and
// tracks its volatile retry state.
type objectiveHandle struct {
	mu sync.Mutex
	// retries counts consecutive failures per phase. Reset on success.
	retries map[models.Phase]int
	// replanReason is set when an act failure rolled the cycle back.
	replanReason string
}

// New creates a kernel over the given store, router, and gateway.
// The router must already be frozen.
func New(config Config, db *state.DB, r *router.Router, g *gateway.Gateway) *Kernel {
	if config.MaxCycles <= 0 {
		config.MaxCycles = 20
	}
	if config.RetryCeiling <= 0 {
		config.RetryCeiling = 3
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = 10
	}
	return &Kernel{
		config:   config,
		db:       db,
		router:   r,
		gateway:  g,
		emitter:  newEventEmitter(config.EventBuffer),
		handlers: make(map[string]handler.Handler),
		handles:  make(map[string]*objectiveHandle),
	}
}

// RegisterHandler binds a handler to a capability name. Objectives
// routed to that capability are driven through this handler.
func (k *Kernel) RegisterHandler(capability string, h handler.Handler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.handlers[capability] = h
}

// SetFallbackHandler sets the handler used for capabilities with no
// dedicated registration.
func (k *Kernel) SetFallbackHandler(h handler.Handler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.fallback = h
}

// SetSummarizer installs the memory compression function.
func (k *Kernel) SetSummarizer(s state.Summarizer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.summarize = s
}

// handlerFor resolves the handler for a capability.
func (k *Kernel) handlerFor(capability string) (handler.Handler, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if h, ok := k.handlers[capability]; ok {
		return h, nil
	}
	if k.fallback != nil {
		return k.fallback, nil
	}
	return nil, fmt.Errorf("no handler registered for capability %s", capability)
}

// handleFor returns the per-objective handle, creating it on first use.
func (k *Kernel) handleFor(objectiveID string) *objectiveHandle {
	k.mu.Lock()
	defer k.mu.Unlock()
	h, ok := k.handles[objectiveID]
	if !ok {
		h = &objectiveHandle{retries: make(map[models.Phase]int)}
		k.handles[objectiveID] = h
	}
	return h
}

// releaseHandle drops the volatile state for a finished objective.
func (k *Kernel) releaseHandle(objectiveID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.handles, objectiveID)
}

// Submit records a new objective in the queued state.
func (k *Kernel) Submit(description string, priority int) (*models.Objective, error) {
	if description == "" {
		return nil, fmt.Errorf("objective description is empty")
	}

	obj := &models.Objective{
		Description: description,
		Priority:    priority,
		Status:      models.StatusQueued,
	}
	if err := k.db.CreateObjective(obj); err != nil {
		return nil, fmt.Errorf("submit objective: %w", err)
	}

	log.Printf("[kernel] objective %s submitted: %s", obj.ID, obj.Description)
	k.emitter.emit(Event{
		Type:        EventObjectiveSubmitted,
		ObjectiveID: obj.ID,
		Message:     obj.Description,
	})
	return obj, nil
}

// Run advances an objective until it reaches a terminal or blocked
// status, or the context is cancelled. Cancellation lands exactly on
// a phase boundary: the phase in flight commits, then the run stops
// with the ledger resumable.
func (k *Kernel) Run(ctx context.Context, objectiveID string) error {
	for {
		result, err := k.Advance(ctx, objectiveID)
		if err != nil {
			return err
		}
		if result.Status.Terminal() || result.Status == models.StatusBlocked {
			return nil
		}
		select {
		case <-ctx.Done():
			log.Printf("[kernel] objective %s paused at phase boundary: %v", objectiveID, ctx.Err())
			return ctx.Err()
		default:
		}
	}
}

// Resume restarts a blocked or interrupted objective from its ledger
// snapshot. Terminal objectives cannot be resumed.
func (k *Kernel) Resume(ctx context.Context, objectiveID string) error {
	obj, err := k.db.GetObjective(objectiveID)
	if err != nil {
		return err
	}
	if obj.Status.Terminal() {
		return fmt.Errorf("objective %s is %s, cannot resume", objectiveID, obj.Status)
	}

	snap, err := k.db.GetSnapshot(objectiveID)
	if err != nil {
		return err
	}

	if obj.Status == models.StatusBlocked {
		// A blocked objective re-enters through routing so a changed
		// registry gets another chance at it.
		if err := k.db.UpdateObjectiveStatus(objectiveID, models.StatusQueued, ""); err != nil {
			return err
		}
	}

	next := models.PhaseObserve
	if snap != nil {
		next = snap.NextPhase()
	}
	log.Printf("[kernel] resuming objective %s at %s", objectiveID, next)
	k.emitter.emit(Event{
		Type:        EventObjectiveResumed,
		ObjectiveID: objectiveID,
		Phase:       next,
		Message:     fmt.Sprintf("resuming at %s", next),
	})

	return k.Run(ctx, objectiveID)
}

// Terminate stops an objective from outside the cycle. The
// termination is recorded in memory, the snapshot is removed, and the
// objective fails with the given reason.
func (k *Kernel) Terminate(objectiveID, reason string) error {
	obj, err := k.db.GetObjective(objectiveID)
	if err != nil {
		return err
	}
	if obj.Status.Terminal() {
		return fmt.Errorf("objective %s is already %s", objectiveID, obj.Status)
	}

	h := k.handleFor(objectiveID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if reason == "" {
		reason = "terminated by operator"
	}

	payload, err := models.MarshalPayload(models.OrientPayload{
		Rationale: "terminated: " + reason,
	})
	if err != nil {
		return err
	}
	entry := &models.MemoryEntry{
		Subject: objectiveID,
		Phase:   models.PhaseOrient,
		Payload: payload,
		Outcome: models.OutcomeFailure,
	}
	if err := k.db.AppendEntry(entry); err != nil {
		return fmt.Errorf("record termination: %w", err)
	}

	if err := k.db.DeleteSnapshot(objectiveID); err != nil {
		return err
	}
	if err := k.db.UpdateObjectiveStatus(objectiveID, models.StatusFailed, reason); err != nil {
		return err
	}

	log.Printf("[kernel] objective %s terminated: %s", objectiveID, reason)
	k.emitter.emit(Event{
		Type:        EventObjectiveFailed,
		ObjectiveID: objectiveID,
		Message:     reason,
	})
	k.releaseHandle(objectiveID)
	return nil
}
