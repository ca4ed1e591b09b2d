package queue

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/config"
)

// Temporal names.
const (
	WorkflowExtract = "ExtractSubmission"
	ActivityExtract = "RunExtraction"
)

// activityTimeout bounds one extraction activity. The adapter applies its
// own shorter timeout to the model call.
const activityTimeout = 10 * time.Minute

// DialTemporal connects to the Temporal frontend.
func DialTemporal(cfg config.QueueConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHost,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "queue: dial temporal %s", cfg.TemporalHost)
	}
	return c, nil
}

// workflowStarter is the part of client.Client the dispatcher needs.
type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// TemporalDispatcher starts one workflow per task.
type TemporalDispatcher struct {
	client    workflowStarter
	taskQueue string
}

// NewTemporalDispatcher creates a dispatcher on taskQueue.
func NewTemporalDispatcher(c client.Client, taskQueue string) *TemporalDispatcher {
	return &TemporalDispatcher{client: c, taskQueue: taskQueue}
}

// Dispatch starts the extraction workflow for t.
func (d *TemporalDispatcher) Dispatch(ctx context.Context, t Task) error {
	run, err := d.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "extract-" + t.SubmissionID,
		TaskQueue: d.taskQueue,
	}, WorkflowExtract, t)
	if err != nil {
		return eris.Wrapf(err, "queue: start workflow for %s", t.SubmissionID)
	}
	zap.L().Debug("queue: workflow started",
		zap.String("submission_id", t.SubmissionID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
	return nil
}

// ExtractWorkflow runs a single extraction activity. Failures are not
// retried; the runner records them on the submission.
func ExtractWorkflow(ctx workflow.Context, t Task) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: activityTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	return workflow.ExecuteActivity(ctx, ActivityExtract, t).Get(ctx, nil)
}

// Activities exposes a Handler as a Temporal activity.
type Activities struct {
	Handler Handler
}

// RunExtraction runs the task.
func (a *Activities) RunExtraction(ctx context.Context, t Task) error {
	activity.GetLogger(ctx).Info("running extraction", "submission_id", t.SubmissionID)
	return a.Handler.Run(ctx, t)
}

// registry is satisfied by worker.Worker and the SDK test environment.
type registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the workflow and activity to a worker or test environment.
func Register(r registry, h Handler) {
	r.RegisterWorkflowWithOptions(ExtractWorkflow, workflow.RegisterOptions{Name: WorkflowExtract})
	acts := &Activities{Handler: h}
	r.RegisterActivityWithOptions(acts.RunExtraction, activity.RegisterOptions{Name: ActivityExtract})
}

// NewTemporalWorker creates a worker that runs extraction tasks with h.
func NewTemporalWorker(c client.Client, taskQueue string, h Handler) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	Register(w, h)
	return w
}
