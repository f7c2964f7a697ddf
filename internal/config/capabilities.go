package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/recursive-core/arc/pkg/models"
)

// capabilitiesFile represents the capabilities.yaml file structure.
type capabilitiesFile struct {
	Capabilities []models.Capability `yaml:"capabilities"`
}

// LoadCapabilities reads a capability registry from a YAML file.
// Returns the built-in defaults when the path is empty or missing.
func LoadCapabilities(path string) ([]models.Capability, error) {
	if path == "" {
		return DefaultCapabilities(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCapabilities(), nil
		}
		return nil, fmt.Errorf("read capabilities file: %w", err)
	}

	var file capabilitiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse capabilities file: %w", err)
	}

	if len(file.Capabilities) == 0 {
		return nil, fmt.Errorf("capabilities file %s defines no capabilities", path)
	}

	seen := make(map[string]bool)
	for _, c := range file.Capabilities {
		if c.Name == "" {
			return nil, fmt.Errorf("capability with empty name in %s", path)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate capability %q in %s", c.Name, path)
		}
		seen[c.Name] = true
		if len(c.TriggerPatterns) == 0 {
			return nil, fmt.Errorf("capability %q has no trigger patterns", c.Name)
		}
	}

	return file.Capabilities, nil
}

// DefaultCapabilities returns the built-in capability registry used
// when no capabilities.yaml is present.
func DefaultCapabilities() []models.Capability {
	return []models.Capability{
		{
			Name:            "architect",
			TriggerPatterns: []string{"design", "architecture", "refactor", "plan"},
			ToolPermissions: []string{"file_read", "file_list", "search"},
			Priority:        30,
		},
		{
			Name:            "coder",
			TriggerPatterns: []string{"implement", "fix", "write", "add", "build", "create"},
			ToolPermissions: []string{"file_read", "file_write", "file_list", "search", "shell"},
			Priority:        20,
		},
		{
			Name:            "qa",
			TriggerPatterns: []string{"test", "verify", "review", "check", "validate"},
			ToolPermissions: []string{"file_read", "file_list", "search", "shell"},
			Priority:        20,
		},
		{
			Name:            "sysadmin",
			TriggerPatterns: []string{"deploy", "install", "configure", "setup"},
			ToolPermissions: []string{"file_read", "file_list", "shell"},
			Priority:        10,
		},
	}
}
