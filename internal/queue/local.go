package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/resilience"
)

// LocalQueue runs tasks on a fixed pool of goroutines.
type LocalQueue struct {
	handler Handler
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// Option configures a LocalQueue.
type Option func(*LocalQueue)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(q *LocalQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets the buffer size.
func WithQueueSize(n int) Option {
	return func(q *LocalQueue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

// WithTaskTimeout bounds each task run.
func WithTaskTimeout(d time.Duration) Option {
	return func(q *LocalQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewLocal starts a local queue.
func NewLocal(h Handler, opts ...Option) *LocalQueue {
	q := &LocalQueue{
		handler: h,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Task, 100),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *LocalQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				for t := range q.ch {
					q.run(workerID, t)
				}
			}(i + 1)
		}
	})
}

func (q *LocalQueue) run(workerID int, t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("queue: task panicked",
				zap.Int("worker_id", workerID),
				zap.String("submission_id", t.SubmissionID),
				zap.Any("panic", r),
			)
		}
	}()

	if err := q.handler.Run(ctx, t); err != nil {
		zap.L().Error("queue: task failed",
			zap.Int("worker_id", workerID),
			zap.String("submission_id", t.SubmissionID),
			zap.Error(err),
		)
	}
}

// Dispatch buffers t without blocking. It fails with ErrQueueFull when the
// buffer is full and ErrClosed after Shutdown.
func (q *LocalQueue) Dispatch(_ context.Context, t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return eris.Wrapf(ErrClosed, "queue: dispatch %s", t.SubmissionID)
	}
	select {
	case q.ch <- t:
		zap.L().Debug("queue: dispatched", zap.String("submission_id", t.SubmissionID))
		return nil
	default:
		return eris.Wrapf(resilience.NewTransientError(ErrQueueFull, 0), "queue: dispatch %s", t.SubmissionID)
	}
}

// Len returns the number of buffered tasks.
func (q *LocalQueue) Len() int { return len(q.ch) }

// Shutdown stops accepting tasks and waits for buffered ones to finish or
// for ctx to end.
func (q *LocalQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		zap.L().Warn("queue: shutdown interrupted", zap.Int("pending", len(q.ch)))
	case <-done:
		zap.L().Info("queue: drained")
	}
}
