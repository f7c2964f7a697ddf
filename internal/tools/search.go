package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Search greps files under the working directory for a regular
// expression, walking the tree directly so it works without external
// binaries.
type Search struct {
	workDir string
}

// NewSearch creates a search tool rooted at workDir.
func NewSearch(workDir string) *Search {
	return &Search{workDir: workDir}
}

func (t *Search) ID() string { return IDSearch }

func (t *Search) Description() string {
	return "Search file contents for a regular expression"
}

func (t *Search) Invoke(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Glob    string `json:"glob"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}

	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	root := t.workDir
	if params.Path != "" {
		root, err = resolvePath(t.workDir, params.Path)
		if err != nil {
			return nil, err
		}
	}

	var out strings.Builder
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if params.Glob != "" {
			matched, _ := filepath.Match(params.Glob, d.Name())
			if !matched {
				return nil
			}
		}
		return t.searchFile(path, root, re, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if out.Len() == 0 {
		return textPayload("no matches found")
	}
	return textPayload(truncate(out.String(), 30000))
}

func (t *Search) searchFile(path, root string, re *regexp.Regexp, out *strings.Builder) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // Skip unreadable files
	}
	defer f.Close()

	rel, _ := filepath.Rel(root, path)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if re.MatchString(line) {
			fmt.Fprintf(out, "%s:%d:%s\n", rel, lineNum, line)
		}
	}
	return nil // Scanner errors (binary files) are not search failures
}
