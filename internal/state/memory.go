package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recursive-core/arc/pkg/models"
)

// AppendEntry validates and appends a memory entry for the given
// subject. The payload must match the schema for the entry's phase;
// invalid entries are rejected without touching the store. The
// store-assigned sequence number is written back into the entry.
func (db *DB) AppendEntry(entry *models.MemoryEntry) error {
	if err := db.prepareEntry(entry); err != nil {
		return err
	}

	result, err := db.Exec(`
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
	return nil
}

// prepareEntry fills defaults and validates an entry before insert.
func (db *DB) prepareEntry(entry *models.MemoryEntry) error {
	if entry.Subject == "" {
		return models.NewError(models.KindValidation, "memory entry has no subject")
	}
	if !entry.Phase.Valid() {
		return models.NewError(models.KindValidation, "memory entry has invalid phase %q", entry.Phase)
	}
	if !entry.Outcome.Valid() {
		return models.NewError(models.KindValidation, "memory entry has invalid outcome %q", entry.Outcome)
	}
	if err := models.ValidatePayload(entry.Phase, entry.Payload); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return nil
}

// EntryFilter narrows a memory query. Zero values mean "no filter".
type EntryFilter struct {
	Subject  string
	Phase    models.Phase
	AfterSeq int64
	Limit    int
}

// QueryEntries returns entries matching the filter in chronological
// order. Timestamp ties are broken by insertion order.
func (db *DB) QueryEntries(filter EntryFilter) ([]*models.MemoryEntry, error) {
	var conds []string
	var args []any

	if filter.Subject != "" {
		conds = append(conds, "subject = ?")
		args = append(args, filter.Subject)
	}
	if filter.Phase != "" {
		conds = append(conds, "phase = ?")
		args = append(args, string(filter.Phase))
	}
	if filter.AfterSeq > 0 {
		conds = append(conds, "seq > ?")
		args = append(args, filter.AfterSeq)
	}

	query := "SELECT seq, id, subject, phase, payload, outcome, created_at FROM memory_entries"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memory entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.MemoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LatestEntry returns the most recent entry for a subject and phase,
// or nil if none exists.
func (db *DB) LatestEntry(subject string, phase models.Phase) (*models.MemoryEntry, error) {
	row := db.QueryRow(`
		SELECT seq, id, subject, phase, payload, outcome, created_at
		FROM memory_entries
		WHERE subject = ? AND phase = ?
		ORDER BY seq DESC LIMIT 1
	`, subject, string(phase))

	entry, err := scanEntryRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// LastEntry returns the most recent entry for a subject regardless of
// phase, or nil if the subject has no history.
func (db *DB) LastEntry(subject string) (*models.MemoryEntry, error) {
	row := db.QueryRow(`
		SELECT seq, id, subject, phase, payload, outcome, created_at
		FROM memory_entries
		WHERE subject = ?
		ORDER BY seq DESC LIMIT 1
	`, subject)

	entry, err := scanEntryRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// EntryCount returns the number of entries recorded for a subject.
func (db *DB) EntryCount(subject string) (int, error) {
	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM memory_entries WHERE subject = ?", subject)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count memory entries: %w", err)
	}
	return count, nil
}

// Summarizer condenses a run of memory entries into one summary line.
// The store calls it when a subject's history outgrows the context
// window.
type Summarizer func(entries []*models.MemoryEntry) (string, error)

// ContextWindow returns the working context for a subject: the rolling
// summary of older history (if any) followed by the most recent
// entries, oldest first. When the history exceeds limit, the overflow
// is compressed through the summarizer and cached.
func (db *DB) ContextWindow(subject string, limit int, summarize Summarizer) (string, []*models.MemoryEntry, error) {
	entries, err := db.QueryEntries(EntryFilter{Subject: subject})
	if err != nil {
		return "", nil, err
	}

	if limit <= 0 || len(entries) <= limit {
		summary, err := db.getSummary(subject)
		if err != nil {
			return "", nil, err
		}
		return summary, entries, nil
	}

	overflow := entries[:len(entries)-limit]
	recent := entries[len(entries)-limit:]

	summary, err := db.getSummary(subject)
	if err != nil {
		return "", nil, err
	}

	// Only re-summarize when new entries have aged out of the window.
	var summarized int
	row := db.QueryRow("SELECT COALESCE(entry_count, 0) FROM memory_summaries WHERE subject = ?", subject)
	if err := row.Scan(&summarized); err != nil && err != sql.ErrNoRows {
		return "", nil, fmt.Errorf("get summary count: %w", err)
	}

	if len(overflow) > summarized && summarize != nil {
		summary, err = summarize(overflow)
		if err != nil {
			return "", nil, fmt.Errorf("summarize memory: %w", err)
		}
		if err := db.putSummary(subject, summary, len(overflow)); err != nil {
			return "", nil, err
		}
	}

	return summary, recent, nil
}

func (db *DB) getSummary(subject string) (string, error) {
	var summary string
	row := db.QueryRow("SELECT summary FROM memory_summaries WHERE subject = ?", subject)
	if err := row.Scan(&summary); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get memory summary: %w", err)
	}
	return summary, nil
}

func (db *DB) putSummary(subject, summary string, entryCount int) error {
	_, err := db.Exec(`
		INSERT INTO memory_summaries (subject, summary, entry_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET
			summary = excluded.summary,
			entry_count = excluded.entry_count,
			updated_at = excluded.updated_at
	`, subject, summary, entryCount, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save memory summary: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(rs rowScanner) (*models.MemoryEntry, error) {
	var entry models.MemoryEntry
	var phase, payload, outcome, createdAt string

	if err := rs.Scan(&entry.Seq, &entry.ID, &entry.Subject, &phase, &payload, &outcome, &createdAt); err != nil {
		return nil, err
	}

	entry.Phase = models.Phase(phase)
	entry.Payload = json.RawMessage(payload)
	entry.Outcome = models.Outcome(outcome)

	ts, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse entry timestamp: %w", err)
	}
	entry.Timestamp = ts
	return &entry, nil
}

func scanEntryRow(row *sql.Row) (*models.MemoryEntry, error) {
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan memory entry: %w", err)
	}
	return entry, nil
}
