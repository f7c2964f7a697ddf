package archive

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/recursive-core/arc/internal/state"
	"github.com/recursive-core/arc/pkg/models"
)

func setupStores(t *testing.T) (*state.DB, *Store) {
	t.Helper()
	dir := t.TempDir()

	hot, err := state.Open(filepath.Join(dir, "hot.db"))
	if err != nil {
		t.Fatalf("open hot store: %v", err)
	}
	if err := hot.Migrate(); err != nil {
		t.Fatalf("migrate hot store: %v", err)
	}
	t.Cleanup(func() { hot.Close() })

	cold, err := OpenStore(filepath.Join(dir, "cold.db"))
	if err != nil {
		t.Fatalf("open cold store: %v", err)
	}
	t.Cleanup(func() { cold.Close() })

	return hot, cold
}

// seedObjective creates a done objective with two memory entries and
// backdates its completion stamp.
func seedObjective(t *testing.T, hot *state.DB, id string, completedAt time.Time) {
	t.Helper()

	obj := &models.Objective{ID: id, Description: "finished work " + id}
	if err := hot.CreateObjective(obj); err != nil {
		t.Fatalf("create objective: %v", err)
	}
	for i := 1; i <= 2; i++ {
		entry := &models.MemoryEntry{
			Subject: id,
			Phase:   models.PhaseObserve,
			Payload: json.RawMessage(fmt.Sprintf(`{"task":"t","cycle":%d}`, i)),
			Outcome: models.OutcomeSuccess,
		}
		if err := hot.AppendEntry(entry); err != nil {
			t.Fatalf("append entry: %v", err)
		}
	}
	if err := hot.UpdateObjectiveStatus(id, models.StatusDone, ""); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if _, err := hot.Exec(`UPDATE objectives SET completed_at = ? WHERE id = ?`,
		completedAt.UTC().Format(time.RFC3339), id); err != nil {
		t.Fatalf("backdate completion: %v", err)
	}
}

func TestSweepMovesExpiredObjectives(t *testing.T) {
	hot, cold := setupStores(t)
	now := time.Now()

	seedObjective(t, hot, "obj-old", now.Add(-10*24*time.Hour))
	seedObjective(t, hot, "obj-fresh", now.Add(-1*time.Hour))

	report, err := NewSweeper(hot, cold, 7*24*time.Hour).Sweep(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Objectives != 1 || report.Entries != 2 {
		t.Errorf("report = %+v, want 1 objective, 2 entries", report)
	}

	// The expired objective is gone from the hot store.
	if _, err := hot.GetObjective("obj-old"); err == nil {
		t.Error("obj-old still in hot store")
	}
	hotEntries, err := hot.QueryEntries(state.EntryFilter{Subject: "obj-old"})
	if err != nil {
		t.Fatalf("query hot entries: %v", err)
	}
	if len(hotEntries) != 0 {
		t.Errorf("hot store kept %d entries for obj-old", len(hotEntries))
	}

	// The fresh one stayed.
	if _, err := hot.GetObjective("obj-fresh"); err != nil {
		t.Errorf("obj-fresh missing from hot store: %v", err)
	}

	// The cold store holds the full trail.
	archived, err := cold.Objectives()
	if err != nil {
		t.Fatalf("cold objectives: %v", err)
	}
	if len(archived) != 1 || archived[0].ID != "obj-old" {
		t.Fatalf("archived = %+v", archived)
	}
	if archived[0].Status != models.StatusDone {
		t.Errorf("archived status = %s", archived[0].Status)
	}
	entries, err := cold.Entries("obj-old")
	if err != nil {
		t.Fatalf("cold entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("archived %d entries, want 2", len(entries))
	}
	if entries[0].Seq >= entries[1].Seq {
		t.Errorf("entries out of order: %d, %d", entries[0].Seq, entries[1].Seq)
	}
	var payload map[string]any
	if err := json.Unmarshal(entries[0].Payload, &payload); err != nil {
		t.Fatalf("archived payload: %v", err)
	}
}

func TestSweepSkipsActiveObjectives(t *testing.T) {
	hot, cold := setupStores(t)
	now := time.Now()

	obj := &models.Objective{ID: "obj-active", Description: "still running"}
	if err := hot.CreateObjective(obj); err != nil {
		t.Fatalf("create objective: %v", err)
	}
	if err := hot.UpdateObjectiveStatus("obj-active", models.StatusActive, ""); err != nil {
		t.Fatalf("mark active: %v", err)
	}

	report, err := NewSweeper(hot, cold, 0).Sweep(now.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Objectives != 0 {
		t.Errorf("swept %d active objectives", report.Objectives)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	hot, cold := setupStores(t)
	now := time.Now()
	seedObjective(t, hot, "obj-1", now.Add(-10*24*time.Hour))

	sweeper := NewSweeper(hot, cold, 24*time.Hour)
	if _, err := sweeper.Sweep(now); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	report, err := sweeper.Sweep(now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Objectives != 0 {
		t.Errorf("second sweep moved %d objectives", report.Objectives)
	}
}

func TestOpenStoreCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "archive.db")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if store.Path() != path {
		t.Errorf("path = %q", store.Path())
	}
}

func TestDefaultPath(t *testing.T) {
	got := DefaultPath("/data/arc/arc.db")
	if got != "/data/arc/archive.db" {
		t.Errorf("DefaultPath = %q", got)
	}
}
