package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sports-intake/internal/queue"
	"github.com/sells-group/sports-intake/internal/resilience"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay undeliverable extraction tasks",
}

// -- dlq list --

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered extraction tasks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		dueOnly, _ := cmd.Flags().GetBool("due")
		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := env.Store.ListDLQ(ctx, resilience.DLQFilter{DueOnly: dueOnly, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "dlq list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Dead-letter queue is empty.")
			return nil
		}
		formatDLQ(os.Stdout, entries)
		return nil
	},
}

// -- dlq replay --

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Dispatch due dead-lettered tasks now",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		d, wait, err := cliDispatcher(ctx, env)
		if err != nil {
			return err
		}
		batch, _ := cmd.Flags().GetInt("batch")
		if batch <= 0 {
			batch = cfg.DLQ.BatchSize
		}
		stats, err := queue.NewReplayer(env.Store, env.Store, d, batch,
			queue.WithStaleAfter(staleAfter())).Replay(ctx)
		wait()
		if err != nil {
			return eris.Wrap(err, "dlq replay")
		}
		formatReplayStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	dlqListCmd.Flags().Bool("due", false, "only entries whose next retry time has passed")
	dlqListCmd.Flags().Int("limit", 100, "max number of entries to display")
	dlqReplayCmd.Flags().Int("batch", 0, "max entries to replay (default from config)")

	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqReplayCmd)
	rootCmd.AddCommand(dlqCmd)
}
