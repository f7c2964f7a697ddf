package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recursive-core/arc/internal/config"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List the capability registry",
	Long: `Show every capability the router can assign, with its trigger
patterns, tool permissions, and priority. The registry loads from
.arc/capabilities.yaml when present, otherwise the built-in set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		path := filepath.Join(cwd, ".arc", "capabilities.yaml")
		capabilities, err := config.LoadCapabilities(path)
		if err != nil {
			return err
		}

		source := path
		if _, err := os.Stat(path); os.IsNotExist(err) {
			source = "built-in defaults"
		}
		fmt.Printf("Capability registry (%s):\n\n", source)

		for _, capability := range capabilities {
			fmt.Printf("%s (priority %d)\n", color.CyanString(capability.Name), capability.Priority)
			fmt.Printf("  triggers: %s\n", strings.Join(capability.TriggerPatterns, ", "))
			fmt.Printf("  tools:    %s\n", strings.Join(capability.ToolPermissions, ", "))
		}
		return nil
	},
}
