// Package archive moves finished objectives out of the hot store into
// a cold sqlite database, keeping the working set small without
// losing history.
package archive

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/recursive-core/arc/internal/state"
	"github.com/recursive-core/arc/pkg/models"
)

// Store is the cold side of the archive. It shares the hot store's
// row shapes but never participates in live cycles.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the cold database path next to the hot one.
func DefaultPath(hotPath string) string {
	return filepath.Join(filepath.Dir(hotPath), "archive.db")
}

// OpenStore opens or creates the cold database.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS archived_objectives (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			priority INTEGER NOT NULL,
			status TEXT NOT NULL,
			assigned_handler TEXT,
			created_at TEXT NOT NULL,
			completed_at TEXT,
			error TEXT,
			archived_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS archived_entries (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			subject TEXT NOT NULL,
			phase TEXT NOT NULL,
			payload TEXT NOT NULL,
			outcome TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_archived_entries_subject ON archived_entries(subject);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive tables: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the cold database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the cold database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) insertObjective(tx *sql.Tx, obj *models.Objective, archivedAt time.Time) error {
	var completedAt any
	if obj.CompletedAt != nil {
		completedAt = obj.CompletedAt.UTC().Format(time.RFC3339)
	}
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO archived_objectives
			(id, description, priority, status, assigned_handler, created_at, completed_at, error, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, obj.ID, obj.Description, obj.Priority, string(obj.Status), obj.AssignedHandler,
		obj.CreatedAt.UTC().Format(time.RFC3339), completedAt, obj.Error,
		archivedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) insertEntry(tx *sql.Tx, entry *models.MemoryEntry) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO archived_entries
			(id, seq, subject, phase, payload, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Seq, entry.Subject, string(entry.Phase), string(entry.Payload),
		string(entry.Outcome), entry.Timestamp.UTC().Format(time.RFC3339))
	return err
}

// Objectives returns archived objectives, most recently completed first.
func (s *Store) Objectives() ([]*models.Objective, error) {
	rows, err := s.db.Query(`
		SELECT id, description, priority, status, assigned_handler, created_at, completed_at, error
		FROM archived_objectives
		ORDER BY completed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list archived objectives: %w", err)
	}
	defer rows.Close()

	var objectives []*models.Objective
	for rows.Next() {
		var obj models.Objective
		var status, createdAt string
		var handler, completedAt, errDetail sql.NullString
		if err := rows.Scan(&obj.ID, &obj.Description, &obj.Priority, &status,
			&handler, &createdAt, &completedAt, &errDetail); err != nil {
			return nil, fmt.Errorf("scan archived objective: %w", err)
		}
		obj.Status = models.ObjectiveStatus(status)
		obj.AssignedHandler = handler.String
		obj.Error = errDetail.String
		if obj.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse archived timestamp: %w", err)
		}
		if completedAt.Valid {
			ts, err := time.Parse(time.RFC3339, completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse archived timestamp: %w", err)
			}
			obj.CompletedAt = &ts
		}
		objectives = append(objectives, &obj)
	}
	return objectives, rows.Err()
}

// Entries returns the archived memory trail for an objective in its
// original commit order.
func (s *Store) Entries(subject string) ([]*models.MemoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, seq, subject, phase, payload, outcome, created_at
		FROM archived_entries
		WHERE subject = ?
		ORDER BY seq ASC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("list archived entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.MemoryEntry
	for rows.Next() {
		var entry models.MemoryEntry
		var phase, payload, outcome, createdAt string
		if err := rows.Scan(&entry.ID, &entry.Seq, &entry.Subject, &phase,
			&payload, &outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("scan archived entry: %w", err)
		}
		entry.Phase = models.Phase(phase)
		entry.Payload = []byte(payload)
		entry.Outcome = models.Outcome(outcome)
		if entry.Timestamp, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse archived timestamp: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Report summarizes one archival sweep.
type Report struct {
	Objectives int
	Entries    int
}

// Sweeper moves terminal objectives older than the retention window
// from the hot store to the cold store.
type Sweeper struct {
	hot   *state.DB
	cold  *Store
	after time.Duration
}

// NewSweeper creates a sweeper with the given retention window.
func NewSweeper(hot *state.DB, cold *Store, after time.Duration) *Sweeper {
	return &Sweeper{hot: hot, cold: cold, after: after}
}

// Sweep copies every eligible objective and its memory trail to the
// cold store, then purges it from the hot store. Each objective moves
// independently; a failure on one leaves the rest untouched.
func (s *Sweeper) Sweep(now time.Time) (Report, error) {
	var report Report

	eligible, err := s.hot.ListCompletedBefore(now.Add(-s.after))
	if err != nil {
		return report, fmt.Errorf("find archivable objectives: %w", err)
	}

	for _, obj := range eligible {
		moved, err := s.moveObjective(obj, now)
		if err != nil {
			return report, fmt.Errorf("archive objective %s: %w", obj.ID, err)
		}
		report.Objectives++
		report.Entries += moved
		log.Printf("[archive] moved objective %s (%d entries) to cold store", obj.ID, moved)
	}
	return report, nil
}

func (s *Sweeper) moveObjective(obj *models.Objective, now time.Time) (int, error) {
	entries, err := s.hot.QueryEntries(state.EntryFilter{Subject: obj.ID})
	if err != nil {
		return 0, fmt.Errorf("read memory trail: %w", err)
	}

	tx, err := s.cold.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin archive transaction: %w", err)
	}
	if err := s.cold.insertObjective(tx, obj, now); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("archive objective row: %w", err)
	}
	for _, entry := range entries {
		if err := s.cold.insertEntry(tx, entry); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("archive entry %s: %w", entry.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive transaction: %w", err)
	}

	// Cold copy is durable before the hot rows go away. A crash
	// between the two leaves a duplicate, never a loss.
	if err := s.hot.PurgeObjective(obj.ID); err != nil {
		return 0, fmt.Errorf("purge hot store: %w", err)
	}
	return len(entries), nil
}
