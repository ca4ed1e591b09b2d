package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/testsuite"

	"github.com/sells-group/sports-intake/internal/resilience"
)

func TestExtractWorkflow_RunsActivity(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()

	var got Task
	Register(env, HandlerFunc(func(_ context.Context, task Task) error {
		got = task
		return nil
	}))

	env.ExecuteWorkflow(WorkflowExtract, Task{SubmissionID: "sub-1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, "sub-1", got.SubmissionID)
}

func TestExtractWorkflow_NoRetryOnFailure(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()

	calls := 0
	Register(env, HandlerFunc(func(context.Context, Task) error {
		calls++
		return errors.New("blob store unavailable")
	}))

	env.ExecuteWorkflow(WorkflowExtract, Task{SubmissionID: "sub-1"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	assert.Equal(t, 1, calls)
}

func TestExtractWorkflow_FailedActivityIsParked(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()

	dlq := &mockDLQ{}
	dlq.On("EnqueueDLQ", mock.Anything, mock.MatchedBy(func(e resilience.DLQEntry) bool {
		return e.SubmissionID == "sub-1" && e.MaxRetries == 5
	})).Return(nil).Once()
	Register(env, ParkFailures(HandlerFunc(func(context.Context, Task) error {
		return errors.New("blob store unavailable")
	}), dlq, 5))

	env.ExecuteWorkflow(WorkflowExtract, Task{SubmissionID: "sub-1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	dlq.AssertExpectations(t)
}

func TestTemporalDispatcher_Dispatch(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("extract-sub-1")
	run.On("GetRunID").Return("run-1")

	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
		return o.ID == "extract-sub-1" && o.TaskQueue == "intake-extraction"
	}), WorkflowExtract, Task{SubmissionID: "sub-1"}).Return(run, nil).Once()
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, WorkflowExtract, Task{SubmissionID: "sub-2"}).
		Return(nil, errors.New("frontend unavailable")).Once()

	d := &TemporalDispatcher{client: c, taskQueue: "intake-extraction"}
	require.NoError(t, d.Dispatch(context.Background(), Task{SubmissionID: "sub-1"}))

	err := d.Dispatch(context.Background(), Task{SubmissionID: "sub-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frontend unavailable")
	c.AssertExpectations(t)
}
