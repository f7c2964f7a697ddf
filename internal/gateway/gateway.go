// Package gateway is the single path for tool execution. Every call a
// handler makes goes through it: permissions are checked against the
// calling capability, a deadline is enforced, panics are contained,
// and the outcome is recorded as an immutable invocation, success or
// not. The gateway never retries; retry policy belongs to the kernel.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recursive-core/arc/pkg/models"
)

// Tool is one executable action available through the gateway.
type Tool interface {
	// ID is the stable identifier capabilities grant permissions on.
	ID() string
	// Description explains what the tool does, for prompts and listings.
	Description() string
	// Invoke runs the tool. The context carries the gateway deadline.
	Invoke(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// Config holds gateway settings.
type Config struct {
	// ToolTimeout is the per-invocation deadline. Zero disables it.
	ToolTimeout time.Duration
}

// Gateway dispatches tool calls and records their outcomes.
type Gateway struct {
	config Config

	mu    sync.RWMutex
	tools map[string]Tool

	recordMu sync.Mutex
	records  []*models.ToolInvocation
}

// New creates a gateway with no registered tools.
func New(config Config) *Gateway {
	return &Gateway{
		config: config,
		tools:  make(map[string]Tool),
	}
}

// RegisterTool makes a tool available for dispatch.
func (g *Gateway) RegisterTool(tool Tool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := tool.ID()
	if id == "" {
		return fmt.Errorf("tool has no ID")
	}
	if _, exists := g.tools[id]; exists {
		return fmt.Errorf("tool %q already registered", id)
	}
	g.tools[id] = tool
	return nil
}

// Tools returns the IDs of all registered tools.
func (g *Gateway) Tools() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.tools))
	for id := range g.tools {
		ids = append(ids, id)
	}
	return ids
}

// Lookup returns a registered tool by ID.
func (g *Gateway) Lookup(id string) (Tool, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	tool, ok := g.tools[id]
	return tool, ok
}

// Invoke runs a tool on behalf of a capability. It always returns an
// invocation record: permission failures, unknown tools, timeouts,
// panics, and tool errors all come back as recorded failures, never
// as Go errors. The caller decides what a failure means.
func (g *Gateway) Invoke(ctx context.Context, subject string, capability *models.Capability, req models.ToolRequest) *models.ToolInvocation {
	inv := &models.ToolInvocation{
		ID:        uuid.New().String(),
		Subject:   subject,
		Request:   req,
		StartedAt: time.Now(),
	}
	if capability != nil {
		inv.Capability = capability.Name
	}

	defer func() {
		inv.Duration = time.Since(inv.StartedAt)
		g.record(inv)
	}()

	if capability == nil || !capability.Permits(req.ToolID) {
		inv.Result = models.ToolResult{
			OK:          false,
			FailureKind: models.KindPermissionDenied,
			Message:     fmt.Sprintf("capability %s may not invoke %s", inv.Capability, req.ToolID),
		}
		log.Printf("[gateway] denied %s for capability %s", req.ToolID, inv.Capability)
		return inv
	}

	tool, ok := g.Lookup(req.ToolID)
	if !ok {
		inv.Result = models.ToolResult{
			OK:          false,
			FailureKind: models.KindToolFailure,
			Message:     fmt.Sprintf("unknown tool: %s", req.ToolID),
		}
		return inv
	}

	if g.config.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.ToolTimeout)
		defer cancel()
	}

	payload, err := g.run(ctx, tool, req.Args)
	if err != nil {
		kind := models.KindToolFailure
		if ctx.Err() == context.DeadlineExceeded {
			kind = models.KindTimeout
		}
		inv.Result = models.ToolResult{
			OK:          false,
			FailureKind: kind,
			Message:     err.Error(),
		}
		log.Printf("[gateway] tool %s failed (%s): %v", req.ToolID, kind, err)
		return inv
	}

	inv.Result = models.ToolResult{OK: true, Payload: payload}
	return inv
}

// run executes the tool with panic containment. A panicking tool must
// not take the kernel down with it.
func (g *Gateway) run(ctx context.Context, tool Tool, args json.RawMessage) (payload json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("tool %s panicked: %v", tool.ID(), r)
		}
	}()

	type result struct {
		payload json.RawMessage
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("tool %s panicked: %v", tool.ID(), r)}
			}
		}()
		out, runErr := tool.Invoke(ctx, args)
		done <- result{payload: out, err: runErr}
	}()

	select {
	case res := <-done:
		return res.payload, res.err
	case <-ctx.Done():
		// The goroutine is abandoned; a well-behaved tool observes
		// ctx and returns shortly after.
		return nil, fmt.Errorf("tool %s: %w", tool.ID(), ctx.Err())
	}
}

// record appends an invocation to the in-memory audit trail.
func (g *Gateway) record(inv *models.ToolInvocation) {
	g.recordMu.Lock()
	defer g.recordMu.Unlock()
	g.records = append(g.records, inv)
}

// History returns all recorded invocations in dispatch order.
func (g *Gateway) History() []*models.ToolInvocation {
	g.recordMu.Lock()
	defer g.recordMu.Unlock()
	return append([]*models.ToolInvocation(nil), g.records...)
}
