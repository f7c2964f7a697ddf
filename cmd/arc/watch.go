package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/recursive-core/arc/internal/intake"
	"github.com/recursive-core/arc/internal/tui"
)

var (
	watchOffline    bool
	watchHeadless   bool
	watchLLMRouting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the intake directory and run dropped objectives",
	Long: `Run as a long-lived worker. YAML files dropped into the intake
directory become objectives and cycle to completion one at a time:

  description: fix the flaky auth test
  priority: 5

Files already present at startup are drained first. Press Ctrl+C or q
to stop; in-flight objectives resume later from their ledger.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchOffline, "offline", false, "Use the scripted mock model instead of the Anthropic API")
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", false, "Log to stdout instead of the terminal UI")
	watchCmd.Flags().BoolVar(&watchLLMRouting, "llm-routing", false, "Let the model route objectives trigger patterns miss")
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(watchOffline, watchLLMRouting)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	// Dropped files queue here; one worker cycles them in order so
	// concurrent drops never interleave tool side effects.
	queue := make(chan string, 64)
	submitter := intake.SubmitFunc(func(description string, priority int) (any, error) {
		obj, err := rt.kernel.Submit(description, priority)
		if err != nil {
			return nil, err
		}
		select {
		case queue <- obj.ID:
		case <-ctx.Done():
		}
		return obj, nil
	})

	watcher, err := intake.NewWatcher(rt.cfg.Intake.Dir, submitter)
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Start(); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case objectiveID := <-queue:
				if err := rt.kernel.Run(ctx, objectiveID); err != nil && ctx.Err() == nil {
					fmt.Fprintf(os.Stderr, "objective %s: %v\n", objectiveID, err)
				}
			}
		}
	}()

	if watchHeadless {
		fmt.Printf("Watching %s for objective files...\n", rt.cfg.Intake.Dir)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-rt.kernel.Events():
				fmt.Printf("%s %s %s %s\n", event.Timestamp.Format("15:04:05"),
					event.Type, event.ObjectiveID, event.Message)
			}
		}
	}

	app := tui.New(rt.kernel.Events())
	if _, err := tea.NewProgram(app).Run(); err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}
