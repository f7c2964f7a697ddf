package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/recursive-core/arc/pkg/models"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func observeRaw(t *testing.T, task string, cycle int) json.RawMessage {
	t.Helper()
	raw, err := models.MarshalPayload(models.ObservePayload{Task: task, Cycle: cycle})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return raw
}

func appendObserve(t *testing.T, db *DB, subject, task string, cycle int) *models.MemoryEntry {
	t.Helper()
	entry := &models.MemoryEntry{
		Subject: subject,
		Phase:   models.PhaseObserve,
		Payload: observeRaw(t, task, cycle),
		Outcome: models.OutcomeSuccess,
	}
	if err := db.AppendEntry(entry); err != nil {
		t.Fatalf("failed to append entry: %v", err)
	}
	return entry
}

func TestMigrateIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestAppendEntryAssignsSeqAndID(t *testing.T) {
	db := setupTestDB(t)

	first := appendObserve(t, db, "obj-1", "first", 1)
	second := appendObserve(t, db, "obj-1", "second", 2)

	if first.ID == "" || second.ID == "" {
		t.Error("expected generated entry IDs")
	}
	if first.Seq <= 0 {
		t.Errorf("expected positive seq, got %d", first.Seq)
	}
	if second.Seq <= first.Seq {
		t.Errorf("expected monotonic seq, got %d then %d", first.Seq, second.Seq)
	}
}

func TestAppendEntryRejectsInvalidPayload(t *testing.T) {
	db := setupTestDB(t)

	entry := &models.MemoryEntry{
		Subject: "obj-1",
		Phase:   models.PhaseObserve,
		Payload: json.RawMessage(`{"task": "x", "cycle": 1, "bogus": true}`),
		Outcome: models.OutcomeSuccess,
	}
	err := db.AppendEntry(entry)
	if err == nil {
		t.Fatal("expected validation error for unknown field")
	}
	if models.KindOf(err) != models.KindValidation {
		t.Errorf("expected validation kind, got %s", models.KindOf(err))
	}

	// Rejected entries must not reach the store.
	count, err := db.EntryCount("obj-1")
	if err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 entries after rejection, got %d", count)
	}
}

func TestQueryEntriesOrderAndFilter(t *testing.T) {
	db := setupTestDB(t)

	for i := 1; i <= 3; i++ {
		appendObserve(t, db, "obj-1", fmt.Sprintf("task %d", i), i)
	}
	appendObserve(t, db, "obj-2", "other", 1)

	entries, err := db.QueryEntries(EntryFilter{Subject: "obj-1"})
	if err != nil {
		t.Fatalf("failed to query entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		var payload models.ObservePayload
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			t.Fatalf("failed to parse payload: %v", err)
		}
		if payload.Cycle != i+1 {
			t.Errorf("entry %d: expected cycle %d, got %d", i, i+1, payload.Cycle)
		}
	}

	after, err := db.QueryEntries(EntryFilter{Subject: "obj-1", AfterSeq: entries[0].Seq})
	if err != nil {
		t.Fatalf("failed to query after seq: %v", err)
	}
	if len(after) != 2 {
		t.Errorf("expected 2 entries after cursor, got %d", len(after))
	}
}

func TestLatestEntry(t *testing.T) {
	db := setupTestDB(t)

	if entry, err := db.LatestEntry("missing", models.PhaseObserve); err != nil || entry != nil {
		t.Fatalf("expected nil entry for missing subject, got %v, %v", entry, err)
	}

	appendObserve(t, db, "obj-1", "first", 1)
	want := appendObserve(t, db, "obj-1", "second", 2)

	got, err := db.LatestEntry("obj-1", models.PhaseObserve)
	if err != nil {
		t.Fatalf("failed to get latest entry: %v", err)
	}
	if got == nil || got.ID != want.ID {
		t.Errorf("expected latest entry %s, got %+v", want.ID, got)
	}
}

func TestContextWindowSummarizesOverflow(t *testing.T) {
	db := setupTestDB(t)

	for i := 1; i <= 5; i++ {
		appendObserve(t, db, "obj-1", fmt.Sprintf("task %d", i), i)
	}

	var summarized int
	summarize := func(entries []*models.MemoryEntry) (string, error) {
		summarized = len(entries)
		return fmt.Sprintf("summary of %d entries", len(entries)), nil
	}

	summary, recent, err := db.ContextWindow("obj-1", 2, summarize)
	if err != nil {
		t.Fatalf("failed to build context window: %v", err)
	}
	if summarized != 3 {
		t.Errorf("expected 3 entries summarized, got %d", summarized)
	}
	if summary != "summary of 3 entries" {
		t.Errorf("unexpected summary: %q", summary)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent entries, got %d", len(recent))
	}

	// A second call with no new overflow reuses the cached summary.
	summarized = 0
	summary, _, err = db.ContextWindow("obj-1", 2, summarize)
	if err != nil {
		t.Fatalf("failed to rebuild context window: %v", err)
	}
	if summarized != 0 {
		t.Error("expected cached summary to be reused")
	}
	if summary != "summary of 3 entries" {
		t.Errorf("unexpected cached summary: %q", summary)
	}
}

func TestContextWindowUnderLimit(t *testing.T) {
	db := setupTestDB(t)
	appendObserve(t, db, "obj-1", "only", 1)

	summary, recent, err := db.ContextWindow("obj-1", 10, nil)
	if err != nil {
		t.Fatalf("failed to build context window: %v", err)
	}
	if summary != "" {
		t.Errorf("expected empty summary, got %q", summary)
	}
	if len(recent) != 1 {
		t.Errorf("expected 1 entry, got %d", len(recent))
	}
}

func TestObjectiveLifecycle(t *testing.T) {
	db := setupTestDB(t)

	obj := &models.Objective{Description: "fix the flaky test"}
	if err := db.CreateObjective(obj); err != nil {
		t.Fatalf("failed to create objective: %v", err)
	}
	if obj.ID == "" {
		t.Fatal("expected generated objective ID")
	}
	if obj.Status != models.StatusQueued {
		t.Errorf("expected queued status, got %s", obj.Status)
	}

	if err := db.AssignHandler(obj.ID, "coder"); err != nil {
		t.Fatalf("failed to assign handler: %v", err)
	}
	if err := db.UpdateObjectiveStatus(obj.ID, models.StatusActive, ""); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}

	got, err := db.GetObjective(obj.ID)
	if err != nil {
		t.Fatalf("failed to get objective: %v", err)
	}
	if got.Status != models.StatusActive {
		t.Errorf("expected active status, got %s", got.Status)
	}
	if got.AssignedHandler != "coder" {
		t.Errorf("expected handler coder, got %q", got.AssignedHandler)
	}
	if got.CompletedAt != nil {
		t.Error("expected no completion time for active objective")
	}

	if err := db.UpdateObjectiveStatus(obj.ID, models.StatusFailed, "tool kept timing out"); err != nil {
		t.Fatalf("failed to fail objective: %v", err)
	}
	got, err = db.GetObjective(obj.ID)
	if err != nil {
		t.Fatalf("failed to get objective: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("expected completion time for failed objective")
	}
	if got.Error != "tool kept timing out" {
		t.Errorf("unexpected error detail: %q", got.Error)
	}
}

func TestUpdateObjectiveStatusMissing(t *testing.T) {
	db := setupTestDB(t)
	if err := db.UpdateObjectiveStatus("nope", models.StatusDone, ""); err == nil {
		t.Error("expected error for missing objective")
	}
}

func TestListObjectivesByStatus(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 3; i++ {
		obj := &models.Objective{
			Description: fmt.Sprintf("objective %d", i),
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := db.CreateObjective(obj); err != nil {
			t.Fatalf("failed to create objective: %v", err)
		}
		if i == 0 {
			if err := db.UpdateObjectiveStatus(obj.ID, models.StatusDone, ""); err != nil {
				t.Fatalf("failed to update status: %v", err)
			}
		}
	}

	queued, err := db.ListObjectives(models.StatusQueued)
	if err != nil {
		t.Fatalf("failed to list objectives: %v", err)
	}
	if len(queued) != 2 {
		t.Errorf("expected 2 queued objectives, got %d", len(queued))
	}

	all, err := db.ListObjectives("")
	if err != nil {
		t.Fatalf("failed to list all objectives: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 objectives, got %d", len(all))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	snap := &models.LedgerSnapshot{
		ObjectiveID:        "obj-1",
		LastCompletedPhase: models.PhaseOrient,
		MemoryCursor:       7,
		OpenQuestions:      []string{"which branch?", "is CI green?"},
		NextActionHint:     "decide on the fix approach",
	}
	if err := db.SaveSnapshot(snap); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}
	if snap.Version != models.SnapshotVersion {
		t.Errorf("expected version %d, got %d", models.SnapshotVersion, snap.Version)
	}

	got, err := db.GetSnapshot("obj-1")
	if err != nil {
		t.Fatalf("failed to get snapshot: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot")
	}
	if got.LastCompletedPhase != models.PhaseOrient {
		t.Errorf("expected ORIENT, got %s", got.LastCompletedPhase)
	}
	if got.MemoryCursor != 7 {
		t.Errorf("expected cursor 7, got %d", got.MemoryCursor)
	}
	if len(got.OpenQuestions) != 2 || got.OpenQuestions[0] != "which branch?" {
		t.Errorf("unexpected open questions: %v", got.OpenQuestions)
	}
	if got.NextPhase() != models.PhaseDecide {
		t.Errorf("expected next phase DECIDE, got %s", got.NextPhase())
	}

	// Overwrite keeps one live snapshot per objective.
	snap.LastCompletedPhase = models.PhaseDecide
	if err := db.SaveSnapshot(snap); err != nil {
		t.Fatalf("failed to overwrite snapshot: %v", err)
	}
	snapshots, err := db.ListSnapshots()
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].LastCompletedPhase != models.PhaseDecide {
		t.Errorf("expected DECIDE after overwrite, got %s", snapshots[0].LastCompletedPhase)
	}

	if err := db.DeleteSnapshot("obj-1"); err != nil {
		t.Fatalf("failed to delete snapshot: %v", err)
	}
	got, err = db.GetSnapshot("obj-1")
	if err != nil {
		t.Fatalf("failed to get deleted snapshot: %v", err)
	}
	if got != nil {
		t.Error("expected snapshot to be gone")
	}
}

func TestCommitPhaseAtomic(t *testing.T) {
	db := setupTestDB(t)

	entry := &models.MemoryEntry{
		Subject: "obj-1",
		Phase:   models.PhaseObserve,
		Payload: observeRaw(t, "task", 1),
		Outcome: models.OutcomeSuccess,
	}
	snap := &models.LedgerSnapshot{
		ObjectiveID:        "obj-1",
		LastCompletedPhase: models.PhaseObserve,
	}
	if err := db.CommitPhase(entry, snap); err != nil {
		t.Fatalf("failed to commit phase: %v", err)
	}
	if snap.MemoryCursor != entry.Seq {
		t.Errorf("expected cursor %d, got %d", entry.Seq, snap.MemoryCursor)
	}

	got, err := db.GetSnapshot("obj-1")
	if err != nil {
		t.Fatalf("failed to get snapshot: %v", err)
	}
	if got == nil || got.MemoryCursor != entry.Seq {
		t.Fatalf("expected committed snapshot at cursor %d, got %+v", entry.Seq, got)
	}
}

func TestCommitPhaseRollsBackTogether(t *testing.T) {
	db := setupTestDB(t)

	first := &models.MemoryEntry{
		Subject: "obj-1",
		Phase:   models.PhaseObserve,
		Payload: observeRaw(t, "task", 1),
		Outcome: models.OutcomeSuccess,
	}
	snap := &models.LedgerSnapshot{ObjectiveID: "obj-1", LastCompletedPhase: models.PhaseObserve}
	if err := db.CommitPhase(first, snap); err != nil {
		t.Fatalf("failed to commit first phase: %v", err)
	}

	// Reusing an entry ID violates the unique constraint mid-transaction.
	dup := &models.MemoryEntry{
		ID:      first.ID,
		Subject: "obj-1",
		Phase:   models.PhaseOrient,
		Payload: json.RawMessage(`{"rationale": "dup"}`),
		Outcome: models.OutcomeSuccess,
	}
	badSnap := &models.LedgerSnapshot{ObjectiveID: "obj-1", LastCompletedPhase: models.PhaseOrient}
	if err := db.CommitPhase(dup, badSnap); err == nil {
		t.Fatal("expected commit to fail on duplicate entry ID")
	}

	// The snapshot must still describe the first commit.
	got, err := db.GetSnapshot("obj-1")
	if err != nil {
		t.Fatalf("failed to get snapshot: %v", err)
	}
	if got.LastCompletedPhase != models.PhaseObserve {
		t.Errorf("expected OBSERVE after rollback, got %s", got.LastCompletedPhase)
	}
	count, err := db.EntryCount("obj-1")
	if err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 entry after rollback, got %d", count)
	}
}

func TestExportSnapshotYAML(t *testing.T) {
	db := setupTestDB(t)

	snap := &models.LedgerSnapshot{
		ObjectiveID:        "obj-1",
		LastCompletedPhase: models.PhaseAct,
		MemoryCursor:       4,
		OpenQuestions:      []string{"does the fix cover the edge case?"},
	}
	if err := db.SaveSnapshot(snap); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}

	var buf bytes.Buffer
	if err := db.ExportSnapshot("obj-1", &buf); err != nil {
		t.Fatalf("failed to export snapshot: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"objective_id: obj-1", "last_completed_phase: ACT", "memory_cursor: 4", "version: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}

	if err := db.ExportSnapshot("missing", &buf); err == nil {
		t.Error("expected error for missing snapshot")
	}
}
