package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recursive-core/arc/pkg/models"
)

var statusExport string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show objectives and their ledger state",
	Long: `Display every objective the kernel knows about.

Shows status, assigned capability, and for in-flight objectives the
last committed phase from the continuity ledger. Use --export to dump
an objective's ledger snapshot as YAML (or "all" for every snapshot).`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusExport, "export", "", "Export a ledger snapshot as YAML (objective ID or \"all\")")
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := openStatusDB()
	if err != nil {
		return err
	}
	if db == nil {
		fmt.Println("No state database. Run 'arc run <objective>' to start.")
		return nil
	}
	defer db.Close()

	if statusExport != "" {
		if statusExport == "all" {
			return db.ExportAllSnapshots(os.Stdout)
		}
		return db.ExportSnapshot(statusExport, os.Stdout)
	}

	objectives, err := db.ListObjectives("")
	if err != nil {
		return fmt.Errorf("list objectives: %w", err)
	}
	if len(objectives) == 0 {
		fmt.Println("No objectives. Run 'arc run <objective>' to start.")
		return nil
	}

	for _, obj := range objectives {
		fmt.Printf("%s %s  %s\n", statusBadge(obj.Status), obj.ID, obj.Description)

		detail := fmt.Sprintf("    created %s", obj.CreatedAt.Local().Format(time.RFC822))
		if obj.AssignedHandler != "" {
			detail += "  capability " + obj.AssignedHandler
		}
		fmt.Println(detail)

		if snap, err := db.GetSnapshot(obj.ID); err == nil && snap != nil {
			fmt.Printf("    ledger: cycle position after %s, memory cursor %d\n",
				snap.LastCompletedPhase, snap.MemoryCursor)
			for _, question := range snap.OpenQuestions {
				fmt.Printf("    open: %s\n", question)
			}
		}
		if obj.Error != "" {
			fmt.Printf("    %s %s\n", color.RedString("error:"), obj.Error)
		}
	}
	return nil
}

func statusBadge(status models.ObjectiveStatus) string {
	switch status {
	case models.StatusDone:
		return color.GreenString("✓")
	case models.StatusFailed:
		return color.RedString("✗")
	case models.StatusBlocked:
		return color.YellowString("!")
	case models.StatusActive, models.StatusRouting:
		return color.CyanString("●")
	default:
		return "·"
	}
}
