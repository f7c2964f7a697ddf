package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recursive-core/arc/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Show or change configuration",
	Long: `Show or change arc configuration.

With no arguments, prints every setting with the API key masked and
its source (environment or config file). With one argument, prints
that setting. With two, writes the setting to the user config file.

Examples:
  arc config
  arc config anthropic.model
  arc config kernel.max_cycles 30`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch len(args) {
	case 0:
		showConfig(cfg)
		return nil
	case 1:
		value, err := configValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	default:
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		fmt.Printf("Saved to %s\n", config.GetUserConfigPath())
		return nil
	}
}

func showConfig(cfg *config.Config) {
	heading := color.New(color.Bold)

	heading.Println("anthropic")
	key, _ := config.GetAPIKey(cfg)
	fmt.Printf("  api_key: %s (%s)\n", config.MaskAPIKey(key), config.GetAPIKeySource(cfg))
	if key != "" {
		if err := config.ValidateAPIKey(key); err != nil {
			fmt.Printf("  %s %v\n", color.YellowString("warning:"), err)
		}
	}
	fmt.Printf("  model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("  use_bedrock: %t\n", cfg.Anthropic.UseBedrock)

	heading.Println("kernel")
	fmt.Printf("  max_cycles: %d\n", cfg.Kernel.MaxCycles)
	fmt.Printf("  retry_ceiling: %d\n", cfg.Kernel.RetryCeiling)
	fmt.Printf("  default_objective: %s\n", cfg.Kernel.DefaultObjective)
	fmt.Printf("  event_buffer: %d\n", cfg.Kernel.EventBuffer)

	heading.Println("memory")
	fmt.Printf("  context_window: %d\n", cfg.Memory.ContextWindow)
	fmt.Printf("  archive_after: %s\n", cfg.Memory.ArchiveAfter)

	heading.Println("gateway")
	fmt.Printf("  tool_timeout: %s\n", cfg.Gateway.ToolTimeout)
	fmt.Printf("  work_dir: %s\n", cfg.Gateway.WorkDir)

	heading.Println("intake")
	fmt.Printf("  dir: %s\n", cfg.Intake.Dir)

	heading.Println("tui")
	fmt.Printf("  refresh_rate: %s\n", cfg.TUI.RefreshRate)

	fmt.Printf("\nUser config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("Project config: %s\n", project)
	}
}

func configValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "anthropic.api_key":
		resolved, _ := config.GetAPIKey(cfg)
		return config.MaskAPIKey(resolved), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "kernel.max_cycles":
		return strconv.Itoa(cfg.Kernel.MaxCycles), nil
	case "kernel.retry_ceiling":
		return strconv.Itoa(cfg.Kernel.RetryCeiling), nil
	case "kernel.default_objective":
		return cfg.Kernel.DefaultObjective, nil
	case "kernel.event_buffer":
		return strconv.Itoa(cfg.Kernel.EventBuffer), nil
	case "memory.context_window":
		return strconv.Itoa(cfg.Memory.ContextWindow), nil
	case "memory.archive_after":
		return cfg.Memory.ArchiveAfter.String(), nil
	case "gateway.tool_timeout":
		return cfg.Gateway.ToolTimeout.String(), nil
	case "gateway.work_dir":
		return cfg.Gateway.WorkDir, nil
	case "intake.dir":
		return cfg.Intake.Dir, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q for %s", value, key)
		}
		cfg.Anthropic.UseBedrock = b
	case "kernel.max_cycles":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		cfg.Kernel.MaxCycles = n
	case "kernel.retry_ceiling":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		cfg.Kernel.RetryCeiling = n
	case "kernel.default_objective":
		cfg.Kernel.DefaultObjective = value
	case "kernel.event_buffer":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		cfg.Kernel.EventBuffer = n
	case "memory.context_window":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		cfg.Memory.ContextWindow = n
	case "memory.archive_after":
		d, err := parseDuration(key, value)
		if err != nil {
			return err
		}
		cfg.Memory.ArchiveAfter = d
	case "gateway.tool_timeout":
		d, err := parseDuration(key, value)
		if err != nil {
			return err
		}
		cfg.Gateway.ToolTimeout = d
	case "gateway.work_dir":
		cfg.Gateway.WorkDir = value
	case "intake.dir":
		cfg.Intake.Dir = value
	case "tui.refresh_rate":
		d, err := parseDuration(key, value)
		if err != nil {
			return err
		}
		cfg.TUI.RefreshRate = d
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid value %q for %s: expected a positive integer", value, key)
	}
	return n, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q for %s", value, key)
	}
	return d, nil
}
