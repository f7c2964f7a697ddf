// Package handler defines the contract the kernel drives during the
// observe, orient, and decide phases. A handler supplies the
// phase-level reasoning; the kernel owns the cycle, the memory
// commits, and the act phase.
package handler

import (
	"context"

	"github.com/recursive-core/arc/pkg/models"
)

// Turn is everything a handler sees when asked for a phase: the
// objective, the capability it runs under, and the working context
// assembled from memory.
type Turn struct {
	// Objective is the unit of work being cycled.
	Objective *models.Objective
	// Capability is the persona this objective routed to.
	Capability *models.Capability
	// Cycle is the 1-indexed observe-act cycle number.
	Cycle int
	// Summary compresses history that aged out of the context window.
	Summary string
	// Recent holds the context window's memory entries, oldest first.
	Recent []*models.MemoryEntry
	// LastInvocation is the most recent gateway record for this
	// objective, nil before the first act.
	LastInvocation *models.ToolInvocation
	// ReplanReason is set when the previous act failed and the cycle
	// rolled back to orient.
	ReplanReason string
}

// Handler produces the reasoning for the observe, orient, and decide
// phases of one objective.
type Handler interface {
	// Name identifies the handler implementation in logs and events.
	Name() string
	// Observe ingests the objective and current context.
	Observe(ctx context.Context, turn *Turn) (*models.ObservePayload, error)
	// Orient builds a rationale and surfaces open questions.
	Orient(ctx context.Context, turn *Turn) (*models.OrientPayload, error)
	// Decide selects the next tool call, a final answer, or done.
	Decide(ctx context.Context, turn *Turn) (*models.DecidePayload, error)
	// Reflect audits an act outcome for the memory record.
	Reflect(ctx context.Context, turn *Turn, inv *models.ToolInvocation) string
}
