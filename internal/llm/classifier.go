package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/recursive-core/arc/internal/router"
	"github.com/recursive-core/arc/pkg/models"
)

const classifyTimeout = 30 * time.Second

// NewClassifier returns a router classifier that asks the model
// whether a capability fits an objective. Pattern matching runs
// first as a cheap positive path; the model only breaks the cases
// patterns miss. Model failures fall back to the pattern answer so
// routing stays deterministic offline.
func NewClassifier(completer Completer) router.Classifier {
	return func(c *models.Capability, description string) bool {
		if router.MatchPatterns(c, description) {
			return true
		}

		prompt := fmt.Sprintf(
			"Objective: %q\n\nThe %q capability handles work like: %s.\n\n"+
				"Should this capability take the objective? Answer YES or NO only.",
			description, c.Name, strings.Join(c.TriggerPatterns, ", "))

		ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
		defer cancel()

		resp, err := completer.Complete(ctx, "You route work items to agent capabilities.", prompt)
		if err != nil {
			return false
		}
		return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(resp)), "YES")
	}
}
