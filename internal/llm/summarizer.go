package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/recursive-core/arc/internal/state"
	"github.com/recursive-core/arc/pkg/models"
)

const summarizeTimeout = 60 * time.Second

// NewSummarizer returns a Summarizer that condenses overflow memory
// entries through the completer. Failures fall back to a mechanical
// digest so context assembly never blocks on the model.
func NewSummarizer(completer Completer) state.Summarizer {
	return func(entries []*models.MemoryEntry) (string, error) {
		if len(entries) == 0 {
			return "", nil
		}

		var prompt strings.Builder
		prompt.WriteString("Summarize this agent work history in 2-3 sentences. ")
		prompt.WriteString("Keep decisions taken, files touched, and unresolved problems.\n\n")
		for _, entry := range entries {
			fmt.Fprintf(&prompt, "[%s %s] %s\n", entry.Phase, entry.Outcome, compact(entry.Payload, 400))
		}

		ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
		defer cancel()

		summary, err := completer.Complete(ctx, "You condense agent work logs. Output only the summary.", prompt.String())
		if err != nil || strings.TrimSpace(summary) == "" {
			return mechanicalDigest(entries), nil
		}
		return strings.TrimSpace(summary), nil
	}
}

// mechanicalDigest is the model-free fallback.
func mechanicalDigest(entries []*models.MemoryEntry) string {
	failures := 0
	for _, entry := range entries {
		if entry.Outcome == models.OutcomeFailure {
			failures++
		}
	}
	first := entries[0]
	last := entries[len(entries)-1]
	return fmt.Sprintf("%d earlier entries (seq %d-%d, %d failures), ending with %s",
		len(entries), first.Seq, last.Seq, failures, last.Phase)
}

func compact(raw []byte, limit int) string {
	s := strings.Join(strings.Fields(string(raw)), " ")
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
