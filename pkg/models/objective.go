package models

import "time"

// ObjectiveStatus represents the current state of an objective.
type ObjectiveStatus string

const (
	// StatusQueued indicates the objective has not been routed yet.
	StatusQueued ObjectiveStatus = "queued"
	// StatusRouting indicates a capability is being selected.
	StatusRouting ObjectiveStatus = "routing"
	// StatusActive indicates the objective is cycling through phases.
	StatusActive ObjectiveStatus = "active"
	// StatusBlocked indicates the objective cannot proceed without
	// outside intervention (for example, no capability matched).
	StatusBlocked ObjectiveStatus = "blocked"
	// StatusDone indicates the objective completed successfully.
	StatusDone ObjectiveStatus = "done"
	// StatusFailed indicates the objective failed permanently.
	StatusFailed ObjectiveStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s ObjectiveStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRouting, StatusActive, StatusBlocked, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status ends the objective's lifecycle.
// Blocked objectives are not terminal: they can be resumed manually.
func (s ObjectiveStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Objective is one unit of work submitted to the kernel.
type Objective struct {
	// ID is the unique identifier for this objective.
	ID string `json:"id"`
	// Description is the free-form statement of the work to do.
	Description string `json:"description"`
	// Priority orders objectives for external schedulers. Higher wins.
	Priority int `json:"priority,omitempty"`
	// Status is the current lifecycle state.
	Status ObjectiveStatus `json:"status"`
	// AssignedHandler names the capability routed to this objective.
	// Empty until routing completes. Reassignment requires the
	// objective to pass through StatusRouting again.
	AssignedHandler string `json:"assigned_handler,omitempty"`
	// CreatedAt is when the objective was submitted.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the objective reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error holds the failure detail for blocked or failed objectives.
	Error string `json:"error,omitempty"`
}
