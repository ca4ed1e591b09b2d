package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run extraction tasks from Temporal",
	Long:  "Polls the Temporal task queue and runs one extraction per workflow. Used with queue.driver=temporal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Queue.Driver != "temporal" {
			return eris.Errorf("worker requires queue.driver=temporal, got %q", cfg.Queue.Driver)
		}

		env, err := initEnv(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		runner, err := env.newRunner()
		if err != nil {
			return err
		}

		c, err := queue.DialTemporal(cfg.Queue)
		if err != nil {
			return err
		}
		defer c.Close()

		w := queue.NewTemporalWorker(c, cfg.Queue.TaskQueue, env.parking(runner))
		zap.L().Info("starting worker",
			zap.String("task_queue", cfg.Queue.TaskQueue),
			zap.String("namespace", cfg.Queue.TemporalNamespace),
		)

		interrupt := make(chan interface{})
		go func() {
			<-ctx.Done()
			close(interrupt)
		}()
		if err := w.Run(interrupt); err != nil {
			return eris.Wrap(err, "worker run")
		}
		zap.L().Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
