// Package config handles configuration loading and management for ARC.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for ARC.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Kernel    KernelConfig    `mapstructure:"kernel"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseBedrock routes API calls through AWS Bedrock instead of the
	// Anthropic API directly.
	UseBedrock bool `mapstructure:"use_bedrock"`
}

// KernelConfig holds cycle controller settings.
type KernelConfig struct {
	// MaxCycles is the observe-act iteration ceiling per objective.
	MaxCycles int `mapstructure:"max_cycles"`
	// RetryCeiling is how many times a failed phase is retried
	// before the objective fails.
	RetryCeiling int `mapstructure:"retry_ceiling"`
	// DefaultObjective is run when `arc run` is given no argument.
	DefaultObjective string `mapstructure:"default_objective"`
	// EventBuffer is the capacity of the kernel event channel.
	EventBuffer int `mapstructure:"event_buffer"`
}

// MemoryConfig holds memory store settings.
type MemoryConfig struct {
	// ContextWindow is how many recent entries a handler sees before
	// older history is compressed into a summary.
	ContextWindow int `mapstructure:"context_window"`
	// ArchiveAfter is how old a terminal objective's memory must be
	// before `arc archive` moves it to the cold store.
	ArchiveAfter time.Duration `mapstructure:"archive_after"`
}

// GatewayConfig holds tool gateway settings.
type GatewayConfig struct {
	// ToolTimeout is the per-invocation deadline.
	ToolTimeout time.Duration `mapstructure:"tool_timeout"`
	// WorkDir roots the file tools. Empty means the current directory.
	WorkDir string `mapstructure:"work_dir"`
}

// IntakeConfig holds objective intake watcher settings.
type IntakeConfig struct {
	// Dir is the directory watched for dropped objective files.
	Dir string `mapstructure:"dir"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.arc.yaml in current directory or parent)
// 3. User config (~/.config/arc/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("")

	// Map specific environment variables
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_bedrock", "ARC_USE_BEDROCK")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("kernel.max_cycles", cfg.Kernel.MaxCycles)
	v.Set("kernel.retry_ceiling", cfg.Kernel.RetryCeiling)
	v.Set("kernel.default_objective", cfg.Kernel.DefaultObjective)
	v.Set("kernel.event_buffer", cfg.Kernel.EventBuffer)
	v.Set("memory.context_window", cfg.Memory.ContextWindow)
	v.Set("memory.archive_after", cfg.Memory.ArchiveAfter.String())
	v.Set("gateway.tool_timeout", cfg.Gateway.ToolTimeout.String())
	v.Set("gateway.work_dir", cfg.Gateway.WorkDir)
	v.Set("intake.dir", cfg.Intake.Dir)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "sonnet")
	v.SetDefault("anthropic.use_bedrock", false)

	// Kernel defaults
	v.SetDefault("kernel.max_cycles", 20)
	v.SetDefault("kernel.retry_ceiling", 3)
	v.SetDefault("kernel.default_objective", "Review the current project state and report what needs attention")
	v.SetDefault("kernel.event_buffer", 100)

	// Memory defaults
	v.SetDefault("memory.context_window", 10)
	v.SetDefault("memory.archive_after", "168h")

	// Gateway defaults
	v.SetDefault("gateway.tool_timeout", "2m")
	v.SetDefault("gateway.work_dir", "")

	// Intake defaults
	v.SetDefault("intake.dir", ".arc/intake")

	// TUI defaults
	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for ARC.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "arc")
	}

	// Fall back to ~/.config/arc
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "arc")
	}
	return filepath.Join(home, ".config", "arc")
}

// findProjectConfig searches for .arc.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".arc.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			APIKey: "",
			Model:  "sonnet",
		},
		Kernel: KernelConfig{
			MaxCycles:        20,
			RetryCeiling:     3,
			DefaultObjective: "Review the current project state and report what needs attention",
			EventBuffer:      100,
		},
		Memory: MemoryConfig{
			ContextWindow: 10,
			ArchiveAfter:  168 * time.Hour,
		},
		Gateway: GatewayConfig{
			ToolTimeout: 2 * time.Minute,
		},
		Intake: IntakeConfig{
			Dir: ".arc/intake",
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
