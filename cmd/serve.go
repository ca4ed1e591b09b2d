package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sports-intake/internal/api"
	"github.com/sells-group/sports-intake/internal/monitoring"
	"github.com/sells-group/sports-intake/internal/queue"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intake HTTP API",
	Long:  "Serves the submission API and runs extraction on the configured queue. Dead-lettered tasks are replayed on a schedule, and the optional alert checker watches failure rates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		runner, err := env.newRunner()
		if err != nil {
			return err
		}
		disp, err := env.newDispatcher(runner)
		if err != nil {
			return err
		}
		svc := env.newService(disp)

		replayer := queue.NewReplayer(env.Store, env.Store, disp, cfg.DLQ.BatchSize,
			queue.WithStaleAfter(staleAfter()))
		replays, err := queue.ScheduleReplay(cfg.DLQ.Schedule, replayer, time.Minute)
		if err != nil {
			disp.close(context.Background())
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: api.NewRouter(svc, api.Options{
				CORSOrigins:    cfg.Server.CORSOrigins,
				Metrics:        env.Metrics.Handler(),
				Health:         env.Store,
				MaxUploadBytes: int64(cfg.Extract.MaxArtifactMB+1) << 20,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", port),
				zap.String("queue", cfg.Queue.Driver),
				zap.String("store", cfg.Store.Driver),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				env.Metrics,
				cfg.Monitoring,
			)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			<-replays.Stop().Done()
			err := srv.Shutdown(shutdownCtx)
			disp.close(shutdownCtx)
			return err
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
