package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/recursive-core/arc/internal/handler"
	"github.com/recursive-core/arc/internal/state"
	"github.com/recursive-core/arc/pkg/models"
)

// PhaseResult describes one Advance step.
type PhaseResult struct {
	// ObjectiveID is the objective that advanced.
	ObjectiveID string
	// Phase is the phase that ran, empty for a routing step.
	Phase models.Phase
	// Cycle is the observe-act cycle the step belonged to.
	Cycle int
	// Status is the objective status after the step.
	Status models.ObjectiveStatus
	// Retrying is true when the phase failed but will run again.
	Retrying bool
	// Err carries the failure that was absorbed by the step, if any.
	Err error
}

// Advance moves an objective exactly one step: a queued objective is
// routed, an active one runs its next phase. Each call commits at most
// one memory entry, so external drivers can single-step the cycle.
func (k *Kernel) Advance(ctx context.Context, objectiveID string) (*PhaseResult, error) {
	h := k.handleFor(objectiveID)
	h.mu.Lock()
	defer h.mu.Unlock()

	obj, err := k.db.GetObjective(objectiveID)
	if err != nil {
		return nil, err
	}

	switch obj.Status {
	case models.StatusQueued:
		return k.route(obj)
	case models.StatusActive:
		return k.runPhase(ctx, obj, h)
	default:
		return nil, fmt.Errorf("objective %s is %s, cannot advance", objectiveID, obj.Status)
	}
}

// route assigns a capability to a queued objective. An objective no
// capability matches becomes blocked, never silently dropped.
func (k *Kernel) route(obj *models.Objective) (*PhaseResult, error) {
	if err := k.db.UpdateObjectiveStatus(obj.ID, models.StatusRouting, ""); err != nil {
		return nil, err
	}

	capability, err := k.router.Route(obj)
	if err != nil {
		if models.KindOf(err) != models.KindUnrouted {
			return nil, err
		}
		if dbErr := k.db.UpdateObjectiveStatus(obj.ID, models.StatusBlocked, err.Error()); dbErr != nil {
			return nil, dbErr
		}
		log.Printf("[kernel] objective %s blocked: %v", obj.ID, err)
		k.emitter.emit(Event{
			Type:        EventObjectiveBlocked,
			ObjectiveID: obj.ID,
			Message:     "no capability matched",
			Err:         err,
		})
		return &PhaseResult{ObjectiveID: obj.ID, Status: models.StatusBlocked, Err: err}, nil
	}

	if err := k.db.AssignHandler(obj.ID, capability.Name); err != nil {
		return nil, err
	}
	if err := k.db.UpdateObjectiveStatus(obj.ID, models.StatusActive, ""); err != nil {
		return nil, err
	}

	// Seed the ledger so a crash right after routing still resumes.
	snap, err := k.db.GetSnapshot(obj.ID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = &models.LedgerSnapshot{
			ObjectiveID:    obj.ID,
			NextActionHint: "begin first observation",
		}
		if err := k.db.SaveSnapshot(snap); err != nil {
			return nil, err
		}
	}

	log.Printf("[kernel] objective %s routed to %s", obj.ID, capability.Name)
	k.emitter.emit(Event{
		Type:        EventObjectiveRouted,
		ObjectiveID: obj.ID,
		Capability:  capability.Name,
		Message:     fmt.Sprintf("routed to %s", capability.Name),
	})
	return &PhaseResult{ObjectiveID: obj.ID, Status: models.StatusActive}, nil
}

// runPhase executes the objective's next phase per its snapshot.
func (k *Kernel) runPhase(ctx context.Context, obj *models.Objective, h *objectiveHandle) (*PhaseResult, error) {
	snap, err := k.db.GetSnapshot(obj.ID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("active objective %s has no ledger snapshot", obj.ID)
	}

	capability, err := k.router.Get(obj.AssignedHandler)
	if err != nil {
		return nil, err
	}
	hdl, err := k.handlerFor(capability.Name)
	if err != nil {
		return nil, err
	}

	phase := snap.NextPhase()
	cycle, err := k.cycleNumber(obj.ID, phase)
	if err != nil {
		return nil, err
	}

	// The ceiling is checked as a new cycle opens, before any work.
	if phase == models.PhaseObserve && cycle > k.config.MaxCycles {
		ceilingErr := &models.KernelError{
			Kind:        models.KindIterationCeiling,
			ObjectiveID: obj.ID,
			Phase:       phase,
			Message:     fmt.Sprintf("cycle %d exceeds ceiling of %d", cycle, k.config.MaxCycles),
		}
		return k.failObjective(obj, phase, cycle, ceilingErr)
	}

	// A restart empties the handle, but an act-failure rollback is
	// still visible in memory: the newest committed entry is a failed
	// act while the ledger already points back at orientation. Rebuild
	// the replan context from it so the resumed orientation sees the
	// failure.
	if phase == models.PhaseOrient && h.replanReason == "" {
		reason, err := k.recoverReplanReason(obj.ID)
		if err != nil {
			return nil, err
		}
		h.replanReason = reason
	}

	turn, err := k.buildTurn(obj, capability, cycle, h)
	if err != nil {
		return nil, err
	}

	switch phase {
	case models.PhaseObserve:
		return k.observe(ctx, obj, snap, hdl, turn, h)
	case models.PhaseOrient:
		return k.orient(ctx, obj, snap, hdl, turn, h)
	case models.PhaseDecide:
		return k.decide(ctx, obj, snap, hdl, turn, h)
	case models.PhaseAct:
		return k.act(ctx, obj, snap, capability, hdl, turn, h)
	default:
		return nil, fmt.Errorf("objective %s: unknown next phase %q", obj.ID, phase)
	}
}

// cycleNumber derives the current cycle from committed observations.
func (k *Kernel) cycleNumber(objectiveID string, phase models.Phase) (int, error) {
	observations, err := k.db.QueryEntries(state.EntryFilter{
		Subject: objectiveID,
		Phase:   models.PhaseObserve,
	})
	if err != nil {
		return 0, err
	}
	if phase == models.PhaseObserve {
		return len(observations) + 1, nil
	}
	if len(observations) == 0 {
		return 1, nil
	}
	return len(observations), nil
}

// buildTurn assembles the handler's view of the objective.
func (k *Kernel) buildTurn(obj *models.Objective, capability *models.Capability, cycle int, h *objectiveHandle) (*handler.Turn, error) {
	summary, recent, err := k.db.ContextWindow(obj.ID, k.config.ContextWindow, k.summarize)
	if err != nil {
		return nil, err
	}

	turn := &handler.Turn{
		Objective:    obj,
		Capability:   capability,
		Cycle:        cycle,
		Summary:      summary,
		Recent:       recent,
		ReplanReason: h.replanReason,
	}

	for _, inv := range k.gateway.History() {
		if inv.Subject == obj.ID {
			turn.LastInvocation = inv
		}
	}
	return turn, nil
}

func (k *Kernel) observe(ctx context.Context, obj *models.Objective, snap *models.LedgerSnapshot, hdl handler.Handler, turn *handler.Turn, h *objectiveHandle) (*PhaseResult, error) {
	payload, err := hdl.Observe(ctx, turn)
	if err != nil {
		return k.phaseFailed(obj, models.PhaseObserve, turn.Cycle, err, h)
	}
	payload.Cycle = turn.Cycle

	raw, err := models.MarshalPayload(payload)
	if err != nil {
		return nil, err
	}

	snap.LastCompletedPhase = models.PhaseObserve
	snap.NextActionHint = "orient on the gathered context"
	return k.commitPhase(obj, models.PhaseObserve, turn.Cycle, raw, snap, h)
}

func (k *Kernel) orient(ctx context.Context, obj *models.Objective, snap *models.LedgerSnapshot, hdl handler.Handler, turn *handler.Turn, h *objectiveHandle) (*PhaseResult, error) {
	payload, err := hdl.Orient(ctx, turn)
	if err != nil {
		return k.phaseFailed(obj, models.PhaseOrient, turn.Cycle, err, h)
	}

	raw, err := models.MarshalPayload(payload)
	if err != nil {
		return nil, err
	}

	// Orientation consumed the replan context.
	h.replanReason = ""

	snap.LastCompletedPhase = models.PhaseOrient
	snap.OpenQuestions = payload.OpenQuestions
	snap.NextActionHint = "decide on the next action"
	return k.commitPhase(obj, models.PhaseOrient, turn.Cycle, raw, snap, h)
}

func (k *Kernel) decide(ctx context.Context, obj *models.Objective, snap *models.LedgerSnapshot, hdl handler.Handler, turn *handler.Turn, h *objectiveHandle) (*PhaseResult, error) {
	payload, err := hdl.Decide(ctx, turn)
	if err != nil {
		return k.phaseFailed(obj, models.PhaseDecide, turn.Cycle, err, h)
	}
	if !payload.Done && payload.ToolID == "" && payload.Rationale == "" {
		return k.phaseFailed(obj, models.PhaseDecide, turn.Cycle,
			models.NewError(models.KindValidation, "decision selects no action and no completion"), h)
	}

	raw, err := models.MarshalPayload(payload)
	if err != nil {
		return nil, err
	}

	snap.LastCompletedPhase = models.PhaseDecide
	if payload.Done {
		snap.NextActionHint = "finalize the objective"
	} else if payload.ToolID != "" {
		snap.NextActionHint = "invoke " + payload.ToolID
	} else {
		snap.NextActionHint = "record the final answer"
	}
	return k.commitPhase(obj, models.PhaseDecide, turn.Cycle, raw, snap, h)
}

func (k *Kernel) act(ctx context.Context, obj *models.Objective, snap *models.LedgerSnapshot, capability *models.Capability, hdl handler.Handler, turn *handler.Turn, h *objectiveHandle) (*PhaseResult, error) {
	decision, err := k.latestDecision(obj.ID)
	if err != nil {
		return nil, err
	}

	// A done decision or a final answer closes the objective.
	if decision.Done || decision.ToolID == "" {
		raw, err := models.MarshalPayload(models.ActPayload{
			Response:   decision.Rationale,
			Reflection: "objective complete",
		})
		if err != nil {
			return nil, err
		}
		snap.LastCompletedPhase = models.PhaseAct
		snap.NextActionHint = ""
		result, err := k.commitPhase(obj, models.PhaseAct, turn.Cycle, raw, snap, h)
		if err != nil {
			return nil, err
		}
		return k.completeObjective(obj, result)
	}

	inv := k.gateway.Invoke(ctx, obj.ID, capability, models.ToolRequest{
		ToolID: decision.ToolID,
		Args:   decision.Args,
	})

	reflection := hdl.Reflect(ctx, turn, inv)

	if inv.Failed() {
		h.retries[models.PhaseAct]++
		failure := &models.KernelError{
			Kind:        inv.Result.FailureKind,
			ObjectiveID: obj.ID,
			Phase:       models.PhaseAct,
			Message:     inv.Result.Message,
		}

		raw, err := models.MarshalPayload(models.ActPayload{
			ToolID:       decision.ToolID,
			InvocationID: inv.ID,
			Response:     inv.Result.Message,
			Reflection:   reflection,
			DurationMS:   inv.Duration.Milliseconds(),
		})
		if err != nil {
			return nil, err
		}

		if !failure.Kind.Recoverable() || h.retries[models.PhaseAct] >= k.config.RetryCeiling {
			return k.failObjective(obj, models.PhaseAct, turn.Cycle, failure)
		}

		// Explicit rollback: the next phase is a fresh orientation
		// over the failure, not a blind retry of the same call.
		h.replanReason = inv.Result.Message
		snap.LastCompletedPhase = models.PhaseObserve
		snap.NextActionHint = "replan after failed " + decision.ToolID
		entry := &models.MemoryEntry{
			Subject: obj.ID,
			Phase:   models.PhaseAct,
			Payload: raw,
			Outcome: models.OutcomeFailure,
		}
		if err := k.db.CommitPhase(entry, snap); err != nil {
			return nil, err
		}

		log.Printf("[kernel] objective %s act failed (%s), replanning (attempt %d/%d)",
			obj.ID, failure.Kind, h.retries[models.PhaseAct], k.config.RetryCeiling)
		k.emitter.emit(Event{
			Type:        EventPhaseRetrying,
			ObjectiveID: obj.ID,
			Phase:       models.PhaseAct,
			Cycle:       turn.Cycle,
			Message:     fmt.Sprintf("replanning after %s", failure.Kind),
			Err:         failure,
		})
		return &PhaseResult{
			ObjectiveID: obj.ID,
			Phase:       models.PhaseAct,
			Cycle:       turn.Cycle,
			Status:      models.StatusActive,
			Retrying:    true,
			Err:         failure,
		}, nil
	}

	h.retries[models.PhaseAct] = 0
	h.replanReason = ""

	raw, err := models.MarshalPayload(models.ActPayload{
		ToolID:       decision.ToolID,
		InvocationID: inv.ID,
		Response:     string(inv.Result.Payload),
		Reflection:   reflection,
		DurationMS:   inv.Duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	snap.LastCompletedPhase = models.PhaseAct
	snap.NextActionHint = "observe the action's effect"
	return k.commitPhase(obj, models.PhaseAct, turn.Cycle, raw, snap, h)
}

// recoverReplanReason rebuilds the replan context for an orientation
// from the memory store. Empty when the subject's newest entry is not
// a failed act.
func (k *Kernel) recoverReplanReason(objectiveID string) (string, error) {
	last, err := k.db.LastEntry(objectiveID)
	if err != nil {
		return "", err
	}
	if last == nil || last.Phase != models.PhaseAct || last.Outcome != models.OutcomeFailure {
		return "", nil
	}
	var act models.ActPayload
	if err := json.Unmarshal(last.Payload, &act); err != nil {
		return "", fmt.Errorf("parse act payload: %w", err)
	}
	if act.Response == "" {
		return "previous action failed", nil
	}
	return act.Response, nil
}

// latestDecision loads the most recent committed decision.
func (k *Kernel) latestDecision(objectiveID string) (*models.DecidePayload, error) {
	entry, err := k.db.LatestEntry(objectiveID, models.PhaseDecide)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("objective %s reached act with no decision", objectiveID)
	}
	var decision models.DecidePayload
	if err := json.Unmarshal(entry.Payload, &decision); err != nil {
		return nil, fmt.Errorf("parse decision payload: %w", err)
	}
	return &decision, nil
}

// commitPhase durably records a successful phase and resets its retry
// count.
func (k *Kernel) commitPhase(obj *models.Objective, phase models.Phase, cycle int, raw json.RawMessage, snap *models.LedgerSnapshot, h *objectiveHandle) (*PhaseResult, error) {
	entry := &models.MemoryEntry{
		Subject: obj.ID,
		Phase:   phase,
		Payload: raw,
		Outcome: models.OutcomeSuccess,
	}
	if err := k.db.CommitPhase(entry, snap); err != nil {
		return nil, err
	}
	h.retries[phase] = 0

	k.emitter.emit(Event{
		Type:        EventPhaseCompleted,
		ObjectiveID: obj.ID,
		Phase:       phase,
		Cycle:       cycle,
		Capability:  obj.AssignedHandler,
	})
	return &PhaseResult{
		ObjectiveID: obj.ID,
		Phase:       phase,
		Cycle:       cycle,
		Status:      models.StatusActive,
	}, nil
}

// phaseFailed applies retry policy to a failed observe, orient, or
// decide phase. Recoverable failures under the ceiling leave the
// ledger untouched so the same phase runs again.
func (k *Kernel) phaseFailed(obj *models.Objective, phase models.Phase, cycle int, cause error, h *objectiveHandle) (*PhaseResult, error) {
	kind := models.KindOf(cause)
	h.retries[phase]++

	if !kind.Recoverable() || h.retries[phase] >= k.config.RetryCeiling {
		return k.failObjective(obj, phase, cycle, cause)
	}

	log.Printf("[kernel] objective %s %s failed (%s), will retry (attempt %d/%d): %v",
		obj.ID, phase, kind, h.retries[phase], k.config.RetryCeiling, cause)
	k.emitter.emit(Event{
		Type:        EventPhaseRetrying,
		ObjectiveID: obj.ID,
		Phase:       phase,
		Cycle:       cycle,
		Message:     fmt.Sprintf("retrying after %s", kind),
		Err:         cause,
	})
	return &PhaseResult{
		ObjectiveID: obj.ID,
		Phase:       phase,
		Cycle:       cycle,
		Status:      models.StatusActive,
		Retrying:    true,
		Err:         cause,
	}, nil
}

// failObjective permanently fails an objective: the failure is
// committed to memory, the snapshot is removed, and the status set.
func (k *Kernel) failObjective(obj *models.Objective, phase models.Phase, cycle int, cause error) (*PhaseResult, error) {
	raw, err := failurePayload(obj, phase, cycle, cause)
	if err != nil {
		return nil, err
	}
	entry := &models.MemoryEntry{
		Subject: obj.ID,
		Phase:   phase,
		Payload: raw,
		Outcome: models.OutcomeFailure,
	}
	if err := k.db.AppendEntry(entry); err != nil {
		return nil, err
	}
	if err := k.db.DeleteSnapshot(obj.ID); err != nil {
		return nil, err
	}
	if err := k.db.UpdateObjectiveStatus(obj.ID, models.StatusFailed, cause.Error()); err != nil {
		return nil, err
	}

	log.Printf("[kernel] objective %s failed at %s: %v", obj.ID, phase, cause)
	k.emitter.emit(Event{
		Type:        EventObjectiveFailed,
		ObjectiveID: obj.ID,
		Phase:       phase,
		Cycle:       cycle,
		Err:         cause,
	})
	k.releaseHandle(obj.ID)
	return &PhaseResult{
		ObjectiveID: obj.ID,
		Phase:       phase,
		Cycle:       cycle,
		Status:      models.StatusFailed,
		Err:         cause,
	}, nil
}

// completeObjective finishes a done objective after its final act
// entry committed.
func (k *Kernel) completeObjective(obj *models.Objective, result *PhaseResult) (*PhaseResult, error) {
	if err := k.db.DeleteSnapshot(obj.ID); err != nil {
		return nil, err
	}
	if err := k.db.UpdateObjectiveStatus(obj.ID, models.StatusDone, ""); err != nil {
		return nil, err
	}

	log.Printf("[kernel] objective %s done", obj.ID)
	k.emitter.emit(Event{
		Type:        EventObjectiveDone,
		ObjectiveID: obj.ID,
		Cycle:       result.Cycle,
	})
	k.releaseHandle(obj.ID)
	result.Status = models.StatusDone
	return result, nil
}

// failurePayload builds a schema-valid memory payload for a failed
// phase.
func failurePayload(obj *models.Objective, phase models.Phase, cycle int, cause error) (json.RawMessage, error) {
	switch phase {
	case models.PhaseObserve:
		return models.MarshalPayload(models.ObservePayload{
			Task:    obj.Description,
			Context: []string{"failed: " + cause.Error()},
			Cycle:   cycle,
		})
	case models.PhaseOrient:
		return models.MarshalPayload(models.OrientPayload{
			Rationale: "failed: " + cause.Error(),
		})
	case models.PhaseDecide:
		return models.MarshalPayload(models.DecidePayload{
			Rationale: "failed: " + cause.Error(),
		})
	default:
		return models.MarshalPayload(models.ActPayload{
			Response:   cause.Error(),
			Reflection: "phase failed permanently",
		})
	}
}
