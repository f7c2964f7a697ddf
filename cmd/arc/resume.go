package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resumeOffline bool

var resumeCmd = &cobra.Command{
	Use:   "resume <objective-id>",
	Short: "Resume an interrupted objective from its ledger",
	Long: `Continue an objective from its continuity ledger snapshot.

The kernel re-reads the snapshot, restores the working context from
the memory store, and picks up at the first uncommitted phase. Blocked
objectives re-enter routing, so a changed capability registry can
catch what previously had no match.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(resumeOffline, false)
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

		if err := rt.kernel.Resume(ctx, args[0]); err != nil {
			return err
		}

		final, err := rt.db.GetObjective(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("objective %s finished: %s\n", final.ID, final.Status)
		return nil
	},
}

func init() {
	resumeCmd.Flags().BoolVar(&resumeOffline, "offline", false, "Use the scripted mock model instead of the Anthropic API")
}
