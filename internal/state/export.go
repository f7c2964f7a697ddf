package state

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ExportSnapshot writes an objective's live snapshot as YAML, the
// hand-off format for external tooling and operators. The snapshot
// version field lets consumers migrate old exports.
func (db *DB) ExportSnapshot(objectiveID string, w io.Writer) error {
	snap, err := db.GetSnapshot(objectiveID)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no snapshot for objective: %s", objectiveID)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// ExportAllSnapshots writes every live snapshot as a YAML document
// stream, most recently updated first.
func (db *DB) ExportAllSnapshots(w io.Writer) error {
	snapshots, err := db.ListSnapshots()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, snap := range snapshots {
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode snapshot %s: %w", snap.ObjectiveID, err)
		}
	}
	return enc.Close()
}
