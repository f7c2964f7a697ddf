package models

import (
	"encoding/json"
	"time"
)

// ToolRequest identifies a tool call and its typed arguments.
type ToolRequest struct {
	// ToolID names the tool to invoke.
	ToolID string `json:"tool_id"`
	// Args is the raw JSON argument object for the tool.
	Args json.RawMessage `json:"args,omitempty"`
}

// ToolResult is the tagged outcome of a tool call. Exactly one of the
// success payload or the failure kind is meaningful.
type ToolResult struct {
	// OK is true when the tool completed without error.
	OK bool `json:"ok"`
	// Payload is the tool's output on success.
	Payload json.RawMessage `json:"payload,omitempty"`
	// FailureKind classifies the failure when OK is false.
	FailureKind ErrorKind `json:"failure_kind,omitempty"`
	// Message is the failure detail when OK is false.
	Message string `json:"message,omitempty"`
}

// ToolInvocation is one request/response pair recorded by the gateway.
// Results are immutable once recorded; retry policy belongs to the
// caller, never to the gateway.
type ToolInvocation struct {
	// ID is the unique identifier for this invocation.
	ID string `json:"id"`
	// Subject is the objective on whose behalf the call was made.
	Subject string `json:"subject,omitempty"`
	// Capability is the name of the capability that made the call.
	Capability string `json:"capability,omitempty"`
	// Request is the tool call as issued.
	Request ToolRequest `json:"request"`
	// Result is the tagged outcome.
	Result ToolResult `json:"result"`
	// StartedAt is when the gateway dispatched the call.
	StartedAt time.Time `json:"started_at"`
	// Duration is how long the call took, including timeouts.
	Duration time.Duration `json:"duration"`
}

// Failed returns true if the invocation did not succeed.
func (inv *ToolInvocation) Failed() bool {
	return !inv.Result.OK
}
