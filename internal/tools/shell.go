package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Shell runs a command through bash in the working directory. The
// gateway's deadline arrives via ctx; the process is killed when it
// expires.
type Shell struct {
	workDir string
}

// NewShell creates a shell tool rooted at workDir.
func NewShell(workDir string) *Shell {
	return &Shell{workDir: workDir}
}

func (t *Shell) ID() string { return IDShell }

func (t *Shell) Description() string {
	return "Run a shell command in the working directory"
}

func (t *Shell) Invoke(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", params.Command)
	cmd.Dir = t.workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("command timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%s: %w", truncate(string(output), 4000), err)
	}

	return textPayload(truncate(string(output), 30000))
}
