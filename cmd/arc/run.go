package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/recursive-core/arc/internal/tui"
)

var (
	runPriority   int
	runOffline    bool
	runWithTUI    bool
	runLLMRouting bool
)

var runCmd = &cobra.Command{
	Use:   "run [objective]",
	Short: "Run an objective through the kernel",
	Long: `Submit an objective and cycle it to completion.

The objective description is matched against the capability registry
to pick a handler, then cycled through observe-orient-decide-act until
the handler declares it done or a safety ceiling trips. With no
argument, the configured default objective runs.`,
	RunE: runObjective,
}

func init() {
	runCmd.Flags().IntVar(&runPriority, "priority", 0, "Objective priority (higher routes sooner in listings)")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "Use the scripted mock model instead of the Anthropic API")
	runCmd.Flags().BoolVar(&runWithTUI, "tui", false, "Watch the run in the terminal UI")
	runCmd.Flags().BoolVar(&runLLMRouting, "llm-routing", false, "Let the model route objectives trigger patterns miss")
}

func runObjective(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(runOffline, runLLMRouting)
	if err != nil {
		return err
	}
	defer rt.Close()

	description := strings.TrimSpace(strings.Join(args, " "))
	if description == "" {
		description = rt.cfg.Kernel.DefaultObjective
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	obj, err := rt.kernel.Submit(description, runPriority)
	if err != nil {
		return err
	}

	if runWithTUI {
		return runUnderTUI(ctx, rt, obj.ID)
	}

	if err := rt.kernel.Run(ctx, obj.ID); err != nil {
		return err
	}

	final, err := rt.db.GetObjective(obj.ID)
	if err != nil {
		return err
	}
	fmt.Printf("objective %s finished: %s\n", obj.ID, final.Status)
	if final.Error != "" {
		fmt.Printf("  %s\n", final.Error)
	}
	return nil
}

// runUnderTUI drives the kernel in the background while the terminal
// UI consumes its event stream.
func runUnderTUI(ctx context.Context, rt *runtime, objectiveID string) error {
	app := tui.New(rt.kernel.Events())
	program := tea.NewProgram(app)

	runErr := make(chan error, 1)
	go func() {
		runErr <- rt.kernel.Run(ctx, objectiveID)
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return <-runErr
}
