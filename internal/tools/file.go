package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileRead reads a file with optional offset and line limit.
type FileRead struct {
	workDir string
}

// NewFileRead creates a file read tool rooted at workDir.
func NewFileRead(workDir string) *FileRead {
	return &FileRead{workDir: workDir}
}

func (t *FileRead) ID() string { return IDFileRead }

func (t *FileRead) Description() string {
	return "Read a file, optionally from a line offset with a line limit"
}

func (t *FileRead) Invoke(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params struct {
		Path   string `json:"path"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	path, err := resolvePath(t.workDir, params.Path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	lines := strings.Split(string(content), "\n")

	start := 0
	if params.Offset > 0 {
		start = params.Offset - 1
		if start >= len(lines) {
			return nil, fmt.Errorf("offset beyond end of file")
		}
	}

	end := len(lines)
	if params.Limit > 0 && start+params.Limit < end {
		end = start + params.Limit
	}

	return textPayload(strings.Join(lines[start:end], "\n"))
}

// FileWrite writes content to a file, creating parent directories.
type FileWrite struct {
	workDir string
}

// NewFileWrite creates a file write tool rooted at workDir.
func NewFileWrite(workDir string) *FileWrite {
	return &FileWrite{workDir: workDir}
}

func (t *FileWrite) ID() string { return IDFileWrite }

func (t *FileWrite) Description() string {
	return "Write content to a file, creating parent directories as needed"
}

func (t *FileWrite) Invoke(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	path, err := resolvePath(t.workDir, params.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(params.Content), 0644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	return textPayload(fmt.Sprintf("wrote %d bytes to %s", len(params.Content), params.Path))
}

// FileList lists files under a directory, skipping hidden and
// dependency directories.
type FileList struct {
	workDir string
}

// NewFileList creates a file list tool rooted at workDir.
func NewFileList(workDir string) *FileList {
	return &FileList{workDir: workDir}
}

func (t *FileList) ID() string { return IDFileList }

func (t *FileList) Description() string {
	return "List files under a directory, optionally filtered by a glob pattern"
}

func (t *FileList) Invoke(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params struct {
		Path    string `json:"path"`
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	root := t.workDir
	if params.Path != "" {
		var err error
		root, err = resolvePath(t.workDir, params.Path)
		if err != nil {
			return nil, err
		}
	}

	var matches []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if params.Pattern != "" {
			matched, _ := filepath.Match(params.Pattern, d.Name())
			if !matched {
				return nil
			}
		}
		rel, _ := filepath.Rel(root, path)
		matches = append(matches, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	sort.Strings(matches)
	if len(matches) == 0 {
		return textPayload("no files matched")
	}
	return textPayload(truncate(strings.Join(matches, "\n"), 30000))
}
