// Package queue hands extraction tasks from request handlers to workers,
// either in process or through Temporal.
package queue

import (
	"context"
	"errors"
)

// Task asks for one extraction attempt of a submission.
type Task struct {
	SubmissionID string `json:"submission_id"`
}

// Handler runs a task.
type Handler interface {
	Run(ctx context.Context, t Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Task) error

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, t Task) error { return f(ctx, t) }

// Dispatcher delivers tasks to a worker. A returned error means the task was
// not delivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Task) error
}

var (
	// ErrQueueFull is returned when the local buffer has no room.
	ErrQueueFull = errors.New("queue: full")
	// ErrClosed is returned after shutdown has started.
	ErrClosed = errors.New("queue: closed")
)
