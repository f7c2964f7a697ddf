package intake

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	tickets []ticket
}

func (r *recordingSubmitter) Submit(description string, priority int) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append(r.tickets, ticket{Description: description, Priority: priority})
	return nil, nil
}

func (r *recordingSubmitter) snapshot() []ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ticket(nil), r.tickets...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDrainSubmitsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fix.yaml"),
		[]byte("description: fix the build\npriority: 5\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := &recordingSubmitter{}
	w, err := NewWatcher(dir, rec)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	tickets := rec.snapshot()
	if len(tickets) != 1 {
		t.Fatalf("submitted %d tickets, want 1", len(tickets))
	}
	if tickets[0].Description != "fix the build" || tickets[0].Priority != 5 {
		t.Errorf("ticket = %+v", tickets[0])
	}

	// The file was renamed so a restart won't resubmit it.
	if _, err := os.Stat(filepath.Join(dir, "fix.yaml.accepted")); err != nil {
		t.Errorf("accepted marker missing: %v", err)
	}
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingSubmitter{}
	w, err := NewWatcher(dir, rec)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "deploy.yml"),
		[]byte("description: deploy the staging build\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) == 1 })
	got := rec.snapshot()[0]
	if got.Description != "deploy the staging build" || got.Priority != 0 {
		t.Errorf("ticket = %+v", got)
	}
}

func TestMalformedFileIsRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "empty.yaml"),
		[]byte("priority: 3\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := &recordingSubmitter{}
	w, err := NewWatcher(dir, rec)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("submitted %d tickets from malformed file", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.yaml.rejected")); err != nil {
		t.Errorf("rejected marker missing: %v", err)
	}
}

func TestNonObjectiveFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte("description: not a ticket\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old.yaml.accepted"),
		[]byte("description: already handled\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := &recordingSubmitter{}
	w, err := NewWatcher(dir, rec)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("submitted %d tickets from ignored files", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), &recordingSubmitter{})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
