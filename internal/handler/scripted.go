package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/recursive-core/arc/pkg/models"
)

// Step is one scripted decision. The scripted handler emits its steps
// in order, one per decide phase.
type Step struct {
	// ToolID names the tool to call, empty for a final answer.
	ToolID string
	// Args is the tool argument object.
	Args json.RawMessage
	// Done marks the objective complete instead of acting.
	Done bool
	// Rationale is recorded with the decision.
	Rationale string
}

// Scripted is a deterministic handler that replays a fixed list of
// steps. It backs tests and offline runs where no model is available.
type Scripted struct {
	name  string
	steps []Step

	mu   sync.Mutex
	next map[string]int
}

// NewScripted creates a scripted handler that replays steps in order,
// tracking position per objective.
func NewScripted(name string, steps []Step) *Scripted {
	return &Scripted{
		name:  name,
		steps: steps,
		next:  make(map[string]int),
	}
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Observe(ctx context.Context, turn *Turn) (*models.ObservePayload, error) {
	facts := []string{fmt.Sprintf("capability: %s", turn.Capability.Name)}
	if turn.Summary != "" {
		facts = append(facts, "summary: "+turn.Summary)
	}
	for _, entry := range turn.Recent {
		facts = append(facts, fmt.Sprintf("%s entry at seq %d", entry.Phase, entry.Seq))
	}
	return &models.ObservePayload{
		Task:    turn.Objective.Description,
		Context: facts,
		Cycle:   turn.Cycle,
	}, nil
}

func (s *Scripted) Orient(ctx context.Context, turn *Turn) (*models.OrientPayload, error) {
	payload := &models.OrientPayload{
		Rationale: fmt.Sprintf("cycle %d of scripted run for %q", turn.Cycle, turn.Objective.Description),
	}
	if turn.ReplanReason != "" {
		payload.Replan = true
		payload.Rationale = "replanning after failure: " + turn.ReplanReason
		payload.OpenQuestions = []string{"why did the previous action fail?"}
	}
	return payload, nil
}

func (s *Scripted) Decide(ctx context.Context, turn *Turn) (*models.DecidePayload, error) {
	s.mu.Lock()
	idx := s.next[turn.Objective.ID]
	s.next[turn.Objective.ID] = idx + 1
	s.mu.Unlock()

	if idx >= len(s.steps) {
		return &models.DecidePayload{
			Done:      true,
			Rationale: "script exhausted",
		}, nil
	}

	step := s.steps[idx]
	return &models.DecidePayload{
		Done:      step.Done,
		ToolID:    step.ToolID,
		Args:      step.Args,
		Rationale: step.Rationale,
	}, nil
}

func (s *Scripted) Reflect(ctx context.Context, turn *Turn, inv *models.ToolInvocation) string {
	if inv == nil {
		return "no action taken"
	}
	if inv.Failed() {
		return fmt.Sprintf("%s failed: %s", inv.Request.ToolID, inv.Result.Message)
	}
	return fmt.Sprintf("%s succeeded in %s", inv.Request.ToolID, inv.Duration)
}
