package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Phase payload schemas. Each phase commits exactly one of these as the
// memory entry payload; the store rejects appends whose payload does
// not match the phase's schema.

// ObservePayload records what the cycle ingested.
type ObservePayload struct {
	// Task restates the objective being worked.
	Task string `json:"task"`
	// Context lists the memory and environment facts gathered.
	Context []string `json:"context,omitempty"`
	// Cycle is the 1-indexed cycle number this observation opens.
	Cycle int `json:"cycle"`
}

// OrientPayload records the rationale built before deciding.
type OrientPayload struct {
	// Rationale explains the current understanding and plan.
	Rationale string `json:"rationale"`
	// OpenQuestions lists unresolved questions, in order raised.
	OpenQuestions []string `json:"open_questions,omitempty"`
	// Replan is true when this orientation follows an act failure.
	Replan bool `json:"replan,omitempty"`
}

// DecidePayload records the selected action. A decision with Done set
// ends the objective at the next act phase without a tool call.
type DecidePayload struct {
	// Done signals the handler considers the objective complete.
	Done bool `json:"done,omitempty"`
	// ToolID names the tool to invoke. Empty when Done is set or the
	// decision is a final answer.
	ToolID string `json:"tool_id,omitempty"`
	// Args is the argument object for the tool.
	Args json.RawMessage `json:"args,omitempty"`
	// Rationale explains why this action was chosen.
	Rationale string `json:"rationale"`
}

// ActPayload records the action outcome and the post-act reflection.
type ActPayload struct {
	// ToolID names the tool that ran, if any.
	ToolID string `json:"tool_id,omitempty"`
	// InvocationID references the gateway record for the call.
	InvocationID string `json:"invocation_id,omitempty"`
	// Response is the tool output or the final answer text.
	Response string `json:"response,omitempty"`
	// Reflection is the outcome audit: what worked or why it failed.
	Reflection string `json:"reflection,omitempty"`
	// DurationMS is the tool call duration in milliseconds.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// ValidatePayload checks that raw matches the schema for the phase.
// Unknown fields and malformed JSON are rejected.
func ValidatePayload(phase Phase, raw json.RawMessage) error {
	if len(raw) == 0 {
		return NewError(KindValidation, "empty payload for phase %s", phase)
	}

	var target any
	switch phase {
	case PhaseObserve:
		target = &ObservePayload{}
	case PhaseOrient:
		target = &OrientPayload{}
	case PhaseDecide:
		target = &DecidePayload{}
	case PhaseAct:
		target = &ActPayload{}
	default:
		return NewError(KindValidation, "unknown phase %q", phase)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return &KernelError{
			Kind:    KindValidation,
			Phase:   phase,
			Message: fmt.Sprintf("payload does not match %s schema: %v", phase, err),
			Err:     err,
		}
	}
	return nil
}

// MarshalPayload encodes a phase payload for storage.
func MarshalPayload(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, nil
}
