// Package intake turns files dropped into a directory into submitted
// objectives. Any process that can write a small YAML file can feed
// the kernel.
package intake

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Submitter receives parsed objectives. The kernel satisfies this.
type Submitter interface {
	Submit(description string, priority int) (any, error)
}

// SubmitFunc adapts a function to the Submitter interface.
type SubmitFunc func(description string, priority int) (any, error)

func (f SubmitFunc) Submit(description string, priority int) (any, error) {
	return f(description, priority)
}

// ticket is the on-disk shape of a dropped objective file.
type ticket struct {
	Description string `yaml:"description"`
	Priority    int    `yaml:"priority"`
}

// Watcher monitors an intake directory for objective files.
type Watcher struct {
	dir       string
	submitter Submitter

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu        sync.Mutex
	processed map[string]bool
	closeOnce sync.Once
}

// settleDelay gives writers time to finish before the file is read.
const settleDelay = 50 * time.Millisecond

// NewWatcher creates a watcher over dir, creating it if needed.
func NewWatcher(dir string, submitter Submitter) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create intake directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch intake directory: %w", err)
	}

	return &Watcher{
		dir:       dir,
		submitter: submitter,
		watcher:   fw,
		done:      make(chan struct{}),
		processed: make(map[string]bool),
	}, nil
}

// Start drains files already in the directory, then watches for new
// ones until Close is called.
func (w *Watcher) Start() error {
	if err := w.drain(); err != nil {
		return err
	}
	go w.watch()
	return nil
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

// drain processes every objective file already present.
func (w *Watcher) drain() error {
	names, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read intake directory: %w", err)
	}
	for _, entry := range names {
		if entry.IsDir() {
			continue
		}
		w.handleFile(filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Writers may still be mid-write on Create.
			time.Sleep(settleDelay)
			w.handleFile(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[intake] watch error: %v", err)
		}
	}
}

// handleFile parses and submits one objective file. Accepted files
// are renamed with an .accepted suffix, malformed ones with
// .rejected, so re-scans never double-submit.
func (w *Watcher) handleFile(path string) {
	if !isObjectiveFile(path) {
		return
	}

	w.mu.Lock()
	if w.processed[path] {
		w.mu.Unlock()
		return
	}
	w.processed[path] = true
	w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[intake] read %s: %v", path, err)
		}
		return
	}

	tk, err := parseTicket(data)
	if err != nil {
		log.Printf("[intake] rejected %s: %v", filepath.Base(path), err)
		w.markFile(path, ".rejected")
		return
	}

	if _, err := w.submitter.Submit(tk.Description, tk.Priority); err != nil {
		log.Printf("[intake] submit %s: %v", filepath.Base(path), err)
		w.markFile(path, ".rejected")
		return
	}

	log.Printf("[intake] accepted %s: %s", filepath.Base(path), tk.Description)
	w.markFile(path, ".accepted")
}

func (w *Watcher) markFile(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		log.Printf("[intake] rename %s: %v", filepath.Base(path), err)
	}
}

func parseTicket(data []byte) (*ticket, error) {
	var tk ticket
	if err := yaml.Unmarshal(data, &tk); err != nil {
		return nil, fmt.Errorf("parse objective file: %w", err)
	}
	if strings.TrimSpace(tk.Description) == "" {
		return nil, fmt.Errorf("objective file has no description")
	}
	return &tk, nil
}

func isObjectiveFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
