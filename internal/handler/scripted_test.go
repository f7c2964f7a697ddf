package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/recursive-core/arc/pkg/models"
)

func testTurn(objectiveID string) *Turn {
	return &Turn{
		Objective:  &models.Objective{ID: objectiveID, Description: "fix the parser"},
		Capability: &models.Capability{Name: "coder"},
		Cycle:      1,
	}
}

func TestScriptedObserve(t *testing.T) {
	h := NewScripted("test", nil)
	turn := testTurn("obj-1")
	turn.Summary = "earlier work summarized"
	turn.Recent = []*models.MemoryEntry{{Phase: models.PhaseObserve, Seq: 3}}

	payload, err := h.Observe(context.Background(), turn)
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if payload.Task != "fix the parser" {
		t.Errorf("unexpected task: %q", payload.Task)
	}
	if payload.Cycle != 1 {
		t.Errorf("unexpected cycle: %d", payload.Cycle)
	}
	if len(payload.Context) != 3 {
		t.Errorf("expected 3 context facts, got %v", payload.Context)
	}
}

func TestScriptedOrientReplan(t *testing.T) {
	h := NewScripted("test", nil)

	turn := testTurn("obj-1")
	payload, err := h.Orient(context.Background(), turn)
	if err != nil {
		t.Fatalf("orient failed: %v", err)
	}
	if payload.Replan {
		t.Error("expected no replan on clean cycle")
	}

	turn.ReplanReason = "tool timed out"
	payload, err = h.Orient(context.Background(), turn)
	if err != nil {
		t.Fatalf("orient failed: %v", err)
	}
	if !payload.Replan {
		t.Error("expected replan flag after failure")
	}
	if len(payload.OpenQuestions) == 0 {
		t.Error("expected open questions on replan")
	}
}

func TestScriptedDecideReplaysSteps(t *testing.T) {
	steps := []Step{
		{ToolID: "file_read", Args: json.RawMessage(`{"path": "a.go"}`), Rationale: "read it"},
		{Done: true, Rationale: "all set"},
	}
	h := NewScripted("test", steps)
	turn := testTurn("obj-1")

	first, err := h.Decide(context.Background(), turn)
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if first.ToolID != "file_read" || first.Done {
		t.Errorf("unexpected first decision: %+v", first)
	}

	second, err := h.Decide(context.Background(), turn)
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if !second.Done {
		t.Errorf("expected done, got %+v", second)
	}

	// Past the script's end every decision is done.
	third, _ := h.Decide(context.Background(), turn)
	if !third.Done {
		t.Errorf("expected done after exhaustion, got %+v", third)
	}
}

func TestScriptedDecideTracksObjectivesSeparately(t *testing.T) {
	steps := []Step{{ToolID: "shell", Rationale: "run"}}
	h := NewScripted("test", steps)

	a, _ := h.Decide(context.Background(), testTurn("obj-a"))
	b, _ := h.Decide(context.Background(), testTurn("obj-b"))

	if a.ToolID != "shell" || b.ToolID != "shell" {
		t.Errorf("each objective should start at step 0: %+v, %+v", a, b)
	}
}

func TestScriptedReflect(t *testing.T) {
	h := NewScripted("test", nil)
	turn := testTurn("obj-1")

	if got := h.Reflect(context.Background(), turn, nil); got != "no action taken" {
		t.Errorf("unexpected reflection: %q", got)
	}

	ok := &models.ToolInvocation{
		Request:  models.ToolRequest{ToolID: "shell"},
		Result:   models.ToolResult{OK: true},
		Duration: time.Second,
	}
	if got := h.Reflect(context.Background(), turn, ok); got == "" {
		t.Error("expected reflection for success")
	}

	failed := &models.ToolInvocation{
		Request: models.ToolRequest{ToolID: "shell"},
		Result:  models.ToolResult{OK: false, Message: "exit 1"},
	}
	if got := h.Reflect(context.Background(), turn, failed); got != "shell failed: exit 1" {
		t.Errorf("unexpected failure reflection: %q", got)
	}
}
