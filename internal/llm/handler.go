package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/recursive-core/arc/internal/handler"
	"github.com/recursive-core/arc/pkg/models"
)

// Handler drives the observe, orient, and decide phases through a
// Completer. Observation is mechanical context assembly; orientation
// and decision are model calls.
type Handler struct {
	name      string
	completer Completer
	// tools maps tool IDs to their descriptions for the decide prompt.
	tools map[string]string
}

// NewHandler creates a model-backed handler. The tools map describes
// the available tool set for decision prompts.
func NewHandler(name string, completer Completer, tools map[string]string) *Handler {
	return &Handler{
		name:      name,
		completer: completer,
		tools:     tools,
	}
}

func (h *Handler) Name() string { return h.name }

// Observe assembles the working context without a model call.
func (h *Handler) Observe(ctx context.Context, turn *handler.Turn) (*models.ObservePayload, error) {
	facts := []string{fmt.Sprintf("acting as %s", turn.Capability.Name)}
	if turn.Summary != "" {
		facts = append(facts, "history summary: "+turn.Summary)
	}
	for _, entry := range turn.Recent {
		facts = append(facts, fmt.Sprintf("prior %s (%s) at seq %d", entry.Phase, entry.Outcome, entry.Seq))
	}
	if turn.LastInvocation != nil {
		inv := turn.LastInvocation
		if inv.Failed() {
			facts = append(facts, fmt.Sprintf("last tool %s failed: %s", inv.Request.ToolID, inv.Result.Message))
		} else {
			facts = append(facts, fmt.Sprintf("last tool %s succeeded", inv.Request.ToolID))
		}
	}
	return &models.ObservePayload{
		Task:    turn.Objective.Description,
		Context: facts,
		Cycle:   turn.Cycle,
	}, nil
}

// Orient asks the model for a rationale and open questions.
func (h *Handler) Orient(ctx context.Context, turn *handler.Turn) (*models.OrientPayload, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Objective: %s\n", turn.Objective.Description)
	fmt.Fprintf(&prompt, "Cycle: %d\n", turn.Cycle)
	if turn.Summary != "" {
		fmt.Fprintf(&prompt, "Earlier progress: %s\n", turn.Summary)
	}
	for _, entry := range turn.Recent {
		fmt.Fprintf(&prompt, "History: %s phase, outcome %s\n", entry.Phase, entry.Outcome)
	}
	if turn.ReplanReason != "" {
		fmt.Fprintf(&prompt, "The previous action failed: %s. Build a different plan.\n", turn.ReplanReason)
	}
	prompt.WriteString("\nExplain your current understanding and plan in a short paragraph. ")
	prompt.WriteString("If anything is unresolved, add lines starting with QUESTION: for each open question.")

	resp, err := h.completer.Complete(ctx, h.systemPrompt(turn), prompt.String())
	if err != nil {
		return nil, fmt.Errorf("orient completion: %w", err)
	}

	payload := &models.OrientPayload{Replan: turn.ReplanReason != ""}
	var rationale []string
	for _, line := range strings.Split(resp, "\n") {
		trimmed := strings.TrimSpace(line)
		if q, ok := strings.CutPrefix(trimmed, "QUESTION:"); ok {
			payload.OpenQuestions = append(payload.OpenQuestions, strings.TrimSpace(q))
			continue
		}
		if trimmed != "" {
			rationale = append(rationale, trimmed)
		}
	}
	payload.Rationale = strings.Join(rationale, " ")
	if payload.Rationale == "" {
		return nil, models.NewError(models.KindValidation, "model returned no rationale")
	}
	return payload, nil
}

// Decide asks the model for the next action as a JSON object.
func (h *Handler) Decide(ctx context.Context, turn *handler.Turn) (*models.DecidePayload, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Objective: %s\n", turn.Objective.Description)
	fmt.Fprintf(&prompt, "Cycle: %d of the work loop.\n\n", turn.Cycle)
	prompt.WriteString("Available tools:\n")
	for _, id := range turn.Capability.ToolPermissions {
		desc := h.tools[id]
		if desc == "" {
			desc = "no description"
		}
		fmt.Fprintf(&prompt, "- %s: %s\n", id, desc)
	}
	prompt.WriteString("\nDecide the next step. Respond with exactly one JSON object:\n")
	prompt.WriteString(`{"tool_id": "<id>", "args": {...}, "rationale": "<why>"} to act, or` + "\n")
	prompt.WriteString(`{"done": true, "rationale": "<result>"} when the objective is complete.`)

	resp, err := h.completer.Complete(ctx, h.systemPrompt(turn), prompt.String())
	if err != nil {
		return nil, fmt.Errorf("decide completion: %w", err)
	}

	decision, err := extractDecision(resp)
	if err != nil {
		return nil, err
	}
	if !decision.Done && decision.ToolID != "" && !turn.Capability.Permits(decision.ToolID) {
		return nil, models.NewError(models.KindValidation,
			"model chose tool %s outside the capability's permissions", decision.ToolID)
	}
	return decision, nil
}

// Reflect asks the model for a one-line outcome audit, falling back
// to a mechanical note when the call fails.
func (h *Handler) Reflect(ctx context.Context, turn *handler.Turn, inv *models.ToolInvocation) string {
	if inv == nil {
		return "no action taken"
	}

	status := "succeeded"
	detail := string(inv.Result.Payload)
	if inv.Failed() {
		status = "failed"
		detail = inv.Result.Message
	}
	if len(detail) > 2000 {
		detail = detail[:2000]
	}

	prompt := fmt.Sprintf("Tool %s %s.\nOutput: %s\n\nIn one sentence: what does this mean for the objective %q?",
		inv.Request.ToolID, status, detail, turn.Objective.Description)

	resp, err := h.completer.Complete(ctx, h.systemPrompt(turn), prompt)
	if err != nil || strings.TrimSpace(resp) == "" {
		return fmt.Sprintf("%s %s", inv.Request.ToolID, status)
	}
	return strings.TrimSpace(resp)
}

func (h *Handler) systemPrompt(turn *handler.Turn) string {
	return fmt.Sprintf("You are the %s capability of an autonomous engineering agent. Be concise and concrete.",
		turn.Capability.Name)
}

// extractDecision finds and parses the first JSON object in a model
// response, tolerating surrounding prose and code fences.
func extractDecision(resp string) (*models.DecidePayload, error) {
	raw, err := firstJSONObject(resp)
	if err != nil {
		return nil, models.NewError(models.KindValidation, "model response has no decision object: %v", err)
	}

	var decision models.DecidePayload
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil, models.NewError(models.KindValidation, "model decision is not valid JSON: %v", err)
	}
	if !decision.Done && decision.ToolID == "" && decision.Rationale == "" {
		return nil, models.NewError(models.KindValidation, "model decision selects nothing")
	}
	return &decision, nil
}

// firstJSONObject scans for a balanced top-level JSON object.
func firstJSONObject(s string) (json.RawMessage, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return json.RawMessage(s[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced object")
}
