// Package router matches objectives to registered capabilities.
// Capabilities are registered during startup; the registry is frozen
// before the first objective is routed and read-only afterwards.
package router

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/recursive-core/arc/pkg/models"
)

// Classifier decides whether a capability should handle an objective
// description. The default matches trigger patterns; an LLM-backed
// classifier can be swapped in before the registry freezes.
type Classifier func(c *models.Capability, description string) bool

// Router selects the capability for an objective by matching its
// description against registered trigger patterns.
type Router struct {
	mu           sync.RWMutex
	capabilities []models.Capability
	byName       map[string]int
	classify     Classifier
	frozen       bool
}

// New creates an empty router with the pattern-matching classifier.
func New() *Router {
	return &Router{
		byName:   make(map[string]int),
		classify: capabilityMatches,
	}
}

// SetClassifier replaces the matching function. Like registration,
// this is only allowed before the registry freezes.
func (r *Router) SetClassifier(classify Classifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("router is frozen, cannot change classifier")
	}
	if classify == nil {
		return fmt.Errorf("classifier is nil")
	}
	r.classify = classify
	return nil
}

// Register adds a capability to the registry. Registration fails after
// the router is frozen or when the name is already taken.
func (r *Router) Register(c models.Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("router is frozen, cannot register %q", c.Name)
	}
	if c.Name == "" {
		return fmt.Errorf("capability has no name")
	}
	if _, exists := r.byName[c.Name]; exists {
		return fmt.Errorf("capability %q already registered", c.Name)
	}
	if len(c.TriggerPatterns) == 0 {
		return fmt.Errorf("capability %q has no trigger patterns", c.Name)
	}

	r.byName[c.Name] = len(r.capabilities)
	r.capabilities = append(r.capabilities, c)
	return nil
}

// Freeze closes the registry. Routing before Freeze is an error, which
// keeps registration races out of the picture entirely.
func (r *Router) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get returns a registered capability by name.
func (r *Router) Get(name string) (*models.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown capability: %s", name)
	}
	c := r.capabilities[idx]
	return &c, nil
}

// List returns all registered capabilities in registration order.
func (r *Router) List() []models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Capability(nil), r.capabilities...)
}

// Route selects the capability for an objective. Ties on priority are
// broken by registration order, so routing is deterministic for a
// fixed registry. An objective no capability matches yields an
// unrouted error; the kernel marks such objectives blocked rather
// than guessing a handler.
func (r *Router) Route(obj *models.Objective) (*models.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.frozen {
		return nil, fmt.Errorf("router not frozen, registration still open")
	}

	type match struct {
		idx      int
		priority int
	}
	var matches []match
	for i, c := range r.capabilities {
		if r.classify(&c, obj.Description) {
			matches = append(matches, match{idx: i, priority: c.Priority})
		}
	}

	if len(matches) == 0 {
		return nil, &models.KernelError{
			Kind:        models.KindUnrouted,
			ObjectiveID: obj.ID,
			Message:     fmt.Sprintf("no capability matches objective %q", obj.Description),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].priority > matches[j].priority
	})

	c := r.capabilities[matches[0].idx]
	return &c, nil
}

// MatchPatterns is the default classifier. It checks an objective
// description against a capability's trigger patterns: patterns with
// glob metacharacters match as globs against the whole description,
// plain patterns as case-insensitive substrings.
func MatchPatterns(c *models.Capability, description string) bool {
	return capabilityMatches(c, description)
}

func capabilityMatches(c *models.Capability, description string) bool {
	lower := strings.ToLower(description)
	for _, pattern := range c.TriggerPatterns {
		if strings.ContainsAny(pattern, "*?[") {
			if ok, err := path.Match(strings.ToLower(pattern), lower); err == nil && ok {
				return true
			}
			continue
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
