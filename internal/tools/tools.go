// Package tools provides the built-in tool set dispatched through the
// gateway: file access, search, and shell execution rooted at a
// working directory.
package tools

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/recursive-core/arc/internal/gateway"
)

// Tool IDs granted through capability permissions.
const (
	IDFileRead  = "file_read"
	IDFileWrite = "file_write"
	IDFileList  = "file_list"
	IDSearch    = "search"
	IDShell     = "shell"
)

// All returns the full built-in tool set rooted at workDir.
func All(workDir string) []gateway.Tool {
	return []gateway.Tool{
		NewFileRead(workDir),
		NewFileWrite(workDir),
		NewFileList(workDir),
		NewSearch(workDir),
		NewShell(workDir),
	}
}

// Register adds the full built-in tool set to a gateway.
func Register(g *gateway.Gateway, workDir string) error {
	for _, tool := range All(workDir) {
		if err := g.RegisterTool(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.ID(), err)
		}
	}
	return nil
}

// resolvePath anchors a possibly-relative path at the working
// directory and rejects anything that resolves outside it. The work
// dir is the containment boundary that makes a file-only tool grant
// meaningful.
func resolvePath(workDir, path string) (string, error) {
	base, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolve work dir: %w", err)
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the work dir", path)
	}
	return target, nil
}

// textPayload wraps plain tool output as a JSON payload.
func textPayload(content string) (json.RawMessage, error) {
	raw, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: content})
	if err != nil {
		return nil, fmt.Errorf("marshal tool output: %w", err)
	}
	return raw, nil
}

// truncate caps very long tool output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (output truncated)"
}

// skipDir reports whether a directory should be excluded from walks.
func skipDir(name string) bool {
	if name == "." {
		return false
	}
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor"
}
