package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/audit"
	"github.com/sells-group/sports-intake/internal/blob"
	"github.com/sells-group/sports-intake/internal/commit"
	"github.com/sells-group/sports-intake/internal/extract"
	"github.com/sells-group/sports-intake/internal/intake"
	"github.com/sells-group/sports-intake/internal/metrics"
	"github.com/sells-group/sports-intake/internal/queue"
	"github.com/sells-group/sports-intake/internal/store"
	"github.com/sells-group/sports-intake/internal/validate"
	anthropicpkg "github.com/sells-group/sports-intake/pkg/anthropic"
)

// appEnv holds the initialized collaborators shared by the serve, worker
// and CLI commands.
type appEnv struct {
	Store   store.Store
	Blobs   blob.Store
	Metrics *metrics.Metrics
	Audit   *audit.Recorder
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "intake.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for mode, then opens and migrates the store and
// the blob store. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	blobs, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if mode == "serve" || mode == "worker" {
		m = metrics.New()
	}

	zap.L().Debug("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("blob", cfg.Blob.Driver),
	)
	return &appEnv{Store: st, Blobs: blobs, Metrics: m, Audit: audit.NewRecorder(st)}, nil
}

// newRunner builds the extraction runner backed by Claude.
func (e *appEnv) newRunner() (*intake.Runner, error) {
	v, err := validate.New()
	if err != nil {
		return nil, err
	}
	adapter := extract.NewClaudeAdapter(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic, cfg.Extract)
	return intake.NewRunner(e.Store, e.Blobs, adapter, v, e.Audit, e.Metrics), nil
}

// newService builds the intake service on top of d.
func (e *appEnv) newService(d queue.Dispatcher) *intake.Service {
	return intake.NewService(intake.Deps{
		Store:         e.Store,
		Blobs:         e.Blobs,
		Dispatcher:    d,
		Engine:        commit.New(e.Store, cfg.Commit),
		Audit:         e.Audit,
		Metrics:       e.Metrics,
		BlobPrefix:    cfg.Blob.Prefix,
		MaxArtifactMB: cfg.Extract.MaxArtifactMB,
		DLQMaxRetries: cfg.DLQ.MaxRetries,
	})
}

// taskTimeout bounds one local extraction task: the adapter timeout for
// every attempt plus slack for storage.
func taskTimeout() time.Duration {
	attempts := cfg.Extract.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return time.Duration(cfg.Extract.TimeoutSecs*attempts)*time.Second + 30*time.Second
}

// staleAfter is how long a submission may stay processing before the replay
// sweep fails it. Never shorter than two task timeouts.
func staleAfter() time.Duration {
	d := time.Duration(cfg.DLQ.StaleAfterMins) * time.Minute
	if minimum := 2 * taskTimeout(); d < minimum {
		d = minimum
	}
	return d
}

// parking wraps the runner so failed or panicking tasks land in the DLQ.
func (e *appEnv) parking(runner queue.Handler) queue.Handler {
	return queue.ParkFailures(runner, e.Store, cfg.DLQ.MaxRetries)
}

// dispatcher is a queue.Dispatcher with a shutdown hook.
type dispatcher struct {
	queue.Dispatcher
	close func(ctx context.Context)
}

// newDispatcher builds the configured dispatcher. With the local driver the
// runner executes in-process; with temporal a separate worker runs it.
func (e *appEnv) newDispatcher(runner queue.Handler) (*dispatcher, error) {
	switch cfg.Queue.Driver {
	case "temporal":
		c, err := queue.DialTemporal(cfg.Queue)
		if err != nil {
			return nil, err
		}
		return &dispatcher{
			Dispatcher: queue.NewTemporalDispatcher(c, cfg.Queue.TaskQueue),
			close:      func(context.Context) { c.Close() },
		}, nil
	default:
		q := queue.NewLocal(e.parking(runner),
			queue.WithWorkers(cfg.Queue.Workers),
			queue.WithQueueSize(cfg.Queue.Size),
			queue.WithTaskTimeout(taskTimeout()),
		)
		return &dispatcher{Dispatcher: q, close: q.Shutdown}, nil
	}
}
