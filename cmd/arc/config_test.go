package main

import (
	"os"
	"testing"
	"time"

	"github.com/recursive-core/arc/internal/config"
)

func TestConfigValue(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.Model = "opus"
	cfg.Gateway.ToolTimeout = 45 * time.Second

	tests := []struct {
		key      string
		expected string
	}{
		{"anthropic.model", "opus"},
		{"kernel.max_cycles", "20"},
		{"gateway.tool_timeout", "45s"},
		{"intake.dir", ".arc/intake"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := configValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("configValue(%q) failed: %v", tt.key, err)
			}
			if got != tt.expected {
				t.Errorf("configValue(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}

	if _, err := configValue(cfg, "no.such.key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestConfigValueMasksAPIKey(t *testing.T) {
	original := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", original)
	os.Unsetenv("ANTHROPIC_API_KEY")

	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-ant-REDACTED"

	got, err := configValue(cfg, "anthropic.api_key")
	if err != nil {
		t.Fatalf("configValue failed: %v", err)
	}
	if got != "sk-ant-...wxyz" {
		t.Errorf("expected masked key, got %q", got)
	}
}

func TestSetConfigValue(t *testing.T) {
	cfg := config.Default()

	if err := setConfigValue(cfg, "kernel.max_cycles", "30"); err != nil {
		t.Fatalf("set max_cycles failed: %v", err)
	}
	if cfg.Kernel.MaxCycles != 30 {
		t.Errorf("expected max_cycles 30, got %d", cfg.Kernel.MaxCycles)
	}

	if err := setConfigValue(cfg, "memory.archive_after", "72h"); err != nil {
		t.Fatalf("set archive_after failed: %v", err)
	}
	if cfg.Memory.ArchiveAfter != 72*time.Hour {
		t.Errorf("expected archive_after 72h, got %v", cfg.Memory.ArchiveAfter)
	}

	if err := setConfigValue(cfg, "anthropic.use_bedrock", "true"); err != nil {
		t.Fatalf("set use_bedrock failed: %v", err)
	}
	if !cfg.Anthropic.UseBedrock {
		t.Error("expected use_bedrock true")
	}
}

func TestSetConfigValueRejectsBadInput(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "no.such.key", "x"},
		{"malformed API key", "anthropic.api_key", "not-a-key"},
		{"non-numeric cycles", "kernel.max_cycles", "many"},
		{"negative cycles", "kernel.max_cycles", "-1"},
		{"bad duration", "gateway.tool_timeout", "soon"},
		{"bad boolean", "anthropic.use_bedrock", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := setConfigValue(cfg, tt.key, tt.value); err == nil {
				t.Errorf("setConfigValue(%q, %q) succeeded, want error", tt.key, tt.value)
			}
		})
	}
}
