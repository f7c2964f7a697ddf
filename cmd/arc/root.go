package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arc",
	Short: "Autonomous objective kernel",
	Long: `Arc cycles objectives through a bounded observe-orient-decide-act
loop. Every phase commits to a durable memory store before the next
one starts, so an interrupted objective resumes exactly where it
stopped.

Core capabilities:
- Routes objectives to capabilities by description matching
- Runs tools through a fail-safe gateway with per-capability permissions
- Persists every phase and a resumable continuity ledger in sqlite
- Archives finished objectives to a cold store
- Accepts objectives dropped as YAML files into an intake directory`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(versionCmd)
}
