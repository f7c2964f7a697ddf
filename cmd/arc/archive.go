package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/recursive-core/arc/internal/archive"
	"github.com/recursive-core/arc/internal/config"
)

var archiveOlderThan time.Duration

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move finished objectives to the cold store",
	Long: `Sweep terminal objectives older than the retention window out of
the hot database into archive.db alongside it. The full memory trail
moves with each objective, so nothing is lost, but live queries stop
paying for history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		after := cfg.Memory.ArchiveAfter
		if cmd.Flags().Changed("older-than") {
			after = archiveOlderThan
		}

		db, err := openStatusDB()
		if err != nil {
			return err
		}
		if db == nil {
			fmt.Println("No state database, nothing to archive.")
			return nil
		}
		defer db.Close()

		cold, err := archive.OpenStore(archive.DefaultPath(db.Path()))
		if err != nil {
			return err
		}
		defer cold.Close()

		report, err := archive.NewSweeper(db, cold, after).Sweep(time.Now())
		if err != nil {
			return err
		}
		if report.Objectives == 0 {
			fmt.Println("Nothing old enough to archive.")
			return nil
		}
		fmt.Printf("Archived %d objectives (%d memory entries) to %s\n",
			report.Objectives, report.Entries, cold.Path())
		return nil
	},
}

func init() {
	archiveCmd.Flags().DurationVar(&archiveOlderThan, "older-than", 0, "Override the retention window (e.g. 72h)")
}
