package models

import (
	"encoding/json"
	"time"
)

// MemoryEntry is one immutable record in the kernel's durable memory.
// Entries are created by the cycle controller at the close of each
// phase and never mutated afterward.
type MemoryEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// Seq is the store-assigned insertion order. It breaks timestamp
	// ties in queries and serves as the ledger's memory cursor.
	Seq int64 `json:"seq"`
	// Timestamp is when the entry was committed.
	Timestamp time.Time `json:"timestamp"`
	// Phase is the cycle phase this entry closes.
	Phase Phase `json:"phase"`
	// Subject is the objective this entry belongs to.
	Subject string `json:"subject"`
	// Payload is the phase's structured record. Its schema depends on
	// the phase and is validated on append.
	Payload json.RawMessage `json:"payload"`
	// Outcome records how the phase closed.
	Outcome Outcome `json:"outcome"`
}
