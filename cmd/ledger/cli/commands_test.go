package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

type fakeOps struct {
	name   string
	opts   TriggerOptions
	closed bool
}

func (f *fakeOps) Trigger(_ context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	task, err := BuildTask(name, opts)
	if err != nil {
		return nil, err
	}
	f.name, f.opts = name, opts
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeOps) InspectQueue(context.Context) (QueueStats, error) {
	return QueueStats{Queue: jobs.QueueDefault, Pending: 2, Retry: 1}, nil
}

func (f *fakeOps) Close() error {
	f.closed = true
	return nil
}

func run(t *testing.T, ops *fakeOps, served *bool, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(Runtime{
		Serve: func(context.Context) error {
			*served = true
			return nil
		},
		OpenJobs: func() (JobOps, error) { return ops, nil },
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTriggerIntegrityForBusiness(t *testing.T) {
	ops := &fakeOps{}
	served := false
	business := uuid.New()

	out, err := run(t, ops, &served, "jobs", "trigger", "integrity", "--business", business.String(), "--repair")
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued ledger:integrity")
	require.NotNil(t, ops.opts.BusinessID)
	assert.Equal(t, business, *ops.opts.BusinessID)
	assert.True(t, ops.opts.Repair)
	assert.True(t, ops.closed)
	assert.False(t, served)
}

func TestTriggerRejectsBadInput(t *testing.T) {
	served := false
	_, err := run(t, &fakeOps{}, &served, "jobs", "trigger", "warmup", "--business", "acme")
	assert.Error(t, err)

	_, err = run(t, &fakeOps{}, &served, "jobs", "trigger", "reindex")
	assert.ErrorContains(t, err, "unsupported job")
}

func TestStatsAndDefaultServe(t *testing.T) {
	served := false
	out, err := run(t, &fakeOps{}, &served, "jobs", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "pending=2")

	_, err = run(t, &fakeOps{}, &served)
	require.NoError(t, err)
	assert.True(t, served)
}

func TestBuildTaskPayloads(t *testing.T) {
	business := uuid.New()
	task, err := BuildTask("warmup", TriggerOptions{BusinessID: &business})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskReportWarmup, task.Type())

	var payload jobs.WarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, business, *payload.BusinessID)
}
