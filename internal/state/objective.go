package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recursive-core/arc/pkg/models"
)

// CreateObjective records a newly submitted objective. A missing ID is
// generated; a missing status defaults to queued.
func (db *DB) CreateObjective(obj *models.Objective) error {
	if obj.ID == "" {
		obj.ID = uuid.New().String()
	}
	if obj.Status == "" {
		obj.Status = models.StatusQueued
	}
	if !obj.Status.Valid() {
		return fmt.Errorf("invalid objective status: %s", obj.Status)
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO objectives (id, description, priority, status, assigned_handler, created_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, obj.ID, obj.Description, obj.Priority, string(obj.Status),
		nullString(obj.AssignedHandler), formatTime(obj.CreatedAt),
		nullTime(obj.CompletedAt), nullString(obj.Error))
	if err != nil {
		return fmt.Errorf("create objective: %w", err)
	}
	return nil
}

// GetObjective retrieves an objective by ID.
func (db *DB) GetObjective(id string) (*models.Objective, error) {
	row := db.QueryRow(`
		SELECT id, description, priority, status, assigned_handler, created_at, completed_at, error
		FROM objectives WHERE id = ?
	`, id)

	obj, err := scanObjective(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("objective not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get objective: %w", err)
	}
	return obj, nil
}

// UpdateObjectiveStatus transitions an objective to a new status.
// Terminal statuses also stamp the completion time; the error detail
// is recorded for blocked and failed objectives.
func (db *DB) UpdateObjectiveStatus(id string, status models.ObjectiveStatus, errDetail string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid objective status: %s", status)
	}

	var completedAt any
	if status.Terminal() {
		completedAt = formatTime(time.Now())
	}

	result, err := db.Exec(`
		UPDATE objectives SET status = ?, completed_at = COALESCE(?, completed_at), error = ?
		WHERE id = ?
	`, string(status), completedAt, nullString(errDetail), id)
	if err != nil {
		return fmt.Errorf("update objective status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("objective not found: %s", id)
	}
	return nil
}

// AssignHandler records the capability routed to an objective.
func (db *DB) AssignHandler(id, handler string) error {
	result, err := db.Exec(`
		UPDATE objectives SET assigned_handler = ? WHERE id = ?
	`, nullString(handler), id)
	if err != nil {
		return fmt.Errorf("assign handler: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("objective not found: %s", id)
	}
	return nil
}

// ListObjectives returns objectives filtered by status, newest first.
// An empty status returns all objectives.
func (db *DB) ListObjectives(status models.ObjectiveStatus) ([]*models.Objective, error) {
	query := `
		SELECT id, description, priority, status, assigned_handler, created_at, completed_at, error
		FROM objectives
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	defer rows.Close()

	var objectives []*models.Objective
	for rows.Next() {
		obj, err := scanObjective(rows)
		if err != nil {
			return nil, fmt.Errorf("scan objective: %w", err)
		}
		objectives = append(objectives, obj)
	}
	return objectives, rows.Err()
}

// ListCompletedBefore returns terminal objectives whose completion
// stamp is older than the cutoff. Used by archival sweeps.
func (db *DB) ListCompletedBefore(cutoff time.Time) ([]*models.Objective, error) {
	rows, err := db.Query(`
		SELECT id, description, priority, status, assigned_handler, created_at, completed_at, error
		FROM objectives
		WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?
		ORDER BY completed_at ASC
	`, string(models.StatusDone), string(models.StatusFailed), formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list completed objectives: %w", err)
	}
	defer rows.Close()

	var objectives []*models.Objective
	for rows.Next() {
		obj, err := scanObjective(rows)
		if err != nil {
			return nil, fmt.Errorf("scan objective: %w", err)
		}
		objectives = append(objectives, obj)
	}
	return objectives, rows.Err()
}

// PurgeObjective removes an objective and everything keyed to it:
// memory entries, the cached summary, and any ledger snapshot. The
// removal is a single transaction.
func (db *DB) PurgeObjective(id string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM memory_entries WHERE subject = ?`,
			`DELETE FROM memory_summaries WHERE subject = ?`,
			`DELETE FROM ledger_snapshots WHERE objective_id = ?`,
			`DELETE FROM objectives WHERE id = ?`,
		} {
			if _, err := tx.Exec(stmt, id); err != nil {
				return fmt.Errorf("purge objective %s: %w", id, err)
			}
		}
		return nil
	})
}

func scanObjective(rs rowScanner) (*models.Objective, error) {
	var obj models.Objective
	var status, createdAt string
	var handler, completedAt, errDetail sql.NullString

	if err := rs.Scan(&obj.ID, &obj.Description, &obj.Priority, &status,
		&handler, &createdAt, &completedAt, &errDetail); err != nil {
		return nil, err
	}

	obj.Status = models.ObjectiveStatus(status)
	if handler.Valid {
		obj.AssignedHandler = handler.String
	}
	if errDetail.Valid {
		obj.Error = errDetail.String
	}

	ts, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse objective timestamp: %w", err)
	}
	obj.CreatedAt = ts
	obj.CompletedAt = parseNullableTime(completedAt)
	return &obj, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
