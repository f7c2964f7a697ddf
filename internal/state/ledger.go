package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/recursive-core/arc/pkg/models"
)

// SaveSnapshot writes or overwrites the live snapshot for an
// objective. At most one live snapshot exists per objective.
func (db *DB) SaveSnapshot(snap *models.LedgerSnapshot) error {
	if snap.ObjectiveID == "" {
		return fmt.Errorf("snapshot has no objective id")
	}
	if snap.Version == 0 {
		snap.Version = models.SnapshotVersion
	}
	snap.UpdatedAt = time.Now()

	questions, err := marshalQuestions(snap.OpenQuestions)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO ledger_snapshots (objective_id, version, last_completed_phase, memory_cursor, open_questions, next_action_hint, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(objective_id) DO UPDATE SET
			version = excluded.version,
			last_completed_phase = excluded.last_completed_phase,
			memory_cursor = excluded.memory_cursor,
			open_questions = excluded.open_questions,
			next_action_hint = excluded.next_action_hint,
			updated_at = excluded.updated_at
	`, snap.ObjectiveID, snap.Version, string(snap.LastCompletedPhase),
		snap.MemoryCursor, questions, nullString(snap.NextActionHint),
		formatTime(snap.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save ledger snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the live snapshot for an objective, or nil if
// the objective has none.
func (db *DB) GetSnapshot(objectiveID string) (*models.LedgerSnapshot, error) {
	row := db.QueryRow(`
		SELECT objective_id, version, last_completed_phase, memory_cursor, open_questions, next_action_hint, updated_at
		FROM ledger_snapshots WHERE objective_id = ?
	`, objectiveID)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger snapshot: %w", err)
	}
	return snap, nil
}

// DeleteSnapshot removes the live snapshot for an objective. Called
// when the objective reaches a terminal status.
func (db *DB) DeleteSnapshot(objectiveID string) error {
	if _, err := db.Exec("DELETE FROM ledger_snapshots WHERE objective_id = ?", objectiveID); err != nil {
		return fmt.Errorf("delete ledger snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns all live snapshots, most recently updated
// first. These are the objectives that can be resumed.
func (db *DB) ListSnapshots() ([]*models.LedgerSnapshot, error) {
	rows, err := db.Query(`
		SELECT objective_id, version, last_completed_phase, memory_cursor, open_questions, next_action_hint, updated_at
		FROM ledger_snapshots ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list ledger snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.LedgerSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// CommitPhase appends a memory entry and updates the objective's
// ledger snapshot in one transaction. Either both land or neither
// does: a crash between phases never leaves the ledger pointing past
// memory or memory ahead of the ledger.
func (db *DB) CommitPhase(entry *models.MemoryEntry, snap *models.LedgerSnapshot) error {
	if err := db.prepareEntry(entry); err != nil {
		return err
	}
	if snap.ObjectiveID == "" {
		return fmt.Errorf("snapshot has no objective id")
	}
	if snap.Version == 0 {
		snap.Version = models.SnapshotVersion
	}
	snap.UpdatedAt = time.Now()

	questions, err := marshalQuestions(snap.OpenQuestions)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO memory_entries (id, subject, phase, payload, outcome, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.Subject, string(entry.Phase), string(entry.Payload),
			string(entry.Outcome), formatTime(entry.Timestamp))
		if err != nil {
			return fmt.Errorf("append memory entry: %w", err)
		}

		seq, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get entry seq: %w", err)
		}
		entry.Seq = seq
		snap.MemoryCursor = seq

		_, err = tx.Exec(`
			INSERT INTO ledger_snapshots (objective_id, version, last_completed_phase, memory_cursor, open_questions, next_action_hint, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(objective_id) DO UPDATE SET
				version = excluded.version,
				last_completed_phase = excluded.last_completed_phase,
				memory_cursor = excluded.memory_cursor,
				open_questions = excluded.open_questions,
				next_action_hint = excluded.next_action_hint,
				updated_at = excluded.updated_at
		`, snap.ObjectiveID, snap.Version, string(snap.LastCompletedPhase),
			snap.MemoryCursor, questions, nullString(snap.NextActionHint),
			formatTime(snap.UpdatedAt))
		if err != nil {
			return fmt.Errorf("save ledger snapshot: %w", err)
		}
		return nil
	})
}

func scanSnapshot(rs rowScanner) (*models.LedgerSnapshot, error) {
	var snap models.LedgerSnapshot
	var phase, updatedAt string
	var questions, hint sql.NullString

	if err := rs.Scan(&snap.ObjectiveID, &snap.Version, &phase,
		&snap.MemoryCursor, &questions, &hint, &updatedAt); err != nil {
		return nil, err
	}

	snap.LastCompletedPhase = models.Phase(phase)
	if hint.Valid {
		snap.NextActionHint = hint.String
	}
	if questions.Valid && questions.String != "" {
		if err := json.Unmarshal([]byte(questions.String), &snap.OpenQuestions); err != nil {
			return nil, fmt.Errorf("parse open questions: %w", err)
		}
	}

	ts, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot timestamp: %w", err)
	}
	snap.UpdatedAt = ts
	return &snap, nil
}

func marshalQuestions(questions []string) (any, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("marshal open questions: %w", err)
	}
	return string(raw), nil
}
