package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func waitUntil(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestRegisterJob_RejectsDuplicateName(t *testing.T) {
	svc := NewService(arbor.NewLogger(), func(ctx context.Context, lensID, query, mode string) error { return nil })

	require.NoError(t, svc.RegisterJob("padel-weekly", "0 6 * * 1", "padel-lens", "padel courts", "discover_many"))
	err := svc.RegisterJob("padel-weekly", "0 6 * * 1", "padel-lens", "padel courts", "discover_many")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestTriggerNow_RunsJobAndRecordsSuccess(t *testing.T) {
	var gotLensID, gotQuery, gotMode string
	svc := NewService(arbor.NewLogger(), func(ctx context.Context, lensID, query, mode string) error {
		gotLensID, gotQuery, gotMode = lensID, query, mode
		return nil
	})

	require.NoError(t, svc.RegisterJob("job-1", "0 6 * * 1", "lens-a", "query-a", "resolve_one"))
	require.NoError(t, svc.TriggerNow("job-1"))

	waitUntil(t, time.Second, func() bool {
		status, _ := svc.Status("job-1")
		return status.LastRun != nil
	})

	assert.Equal(t, "lens-a", gotLensID)
	assert.Equal(t, "query-a", gotQuery)
	assert.Equal(t, "resolve_one", gotMode)

	status, err := svc.Status("job-1")
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Empty(t, status.LastError)
}

func TestTriggerNow_UnknownJobReturnsError(t *testing.T) {
	svc := NewService(arbor.NewLogger(), func(ctx context.Context, lensID, query, mode string) error { return nil })

	err := svc.TriggerNow("missing-job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTriggerNow_RunFailureIsRecordedOnStatus(t *testing.T) {
	svc := NewService(arbor.NewLogger(), func(ctx context.Context, lensID, query, mode string) error {
		return errors.New("adapter exploded")
	})

	require.NoError(t, svc.RegisterJob("job-2", "0 6 * * 1", "lens-b", "query-b", "discover_many"))
	require.NoError(t, svc.TriggerNow("job-2"))

	waitUntil(t, time.Second, func() bool {
		status, _ := svc.Status("job-2")
		return status.LastError != ""
	})

	status, err := svc.Status("job-2")
	require.NoError(t, err)
	assert.Contains(t, status.LastError, "adapter exploded")
}

func TestTriggerNow_PanicIsRecoveredAndRecorded(t *testing.T) {
	svc := NewService(arbor.NewLogger(), func(ctx context.Context, lensID, query, mode string) error {
		panic("catastrophic failure")
	})

	require.NoError(t, svc.RegisterJob("job-3", "0 6 * * 1", "lens-c", "query-c", "discover_many"))
	require.NoError(t, svc.TriggerNow("job-3"))

	waitUntil(t, time.Second, func() bool {
		status, _ := svc.Status("job-3")
		return status.LastError != ""
	})

	status, err := svc.Status("job-3")
	require.NoError(t, err)
	assert.Contains(t, status.LastError, "panic")
	assert.False(t, status.IsRunning)
}

func TestStatus_UnknownJobReturnsError(t *testing.T) {
	svc := NewService(arbor.NewLogger(), func(ctx context.Context, lensID, query, mode string) error { return nil })

	_, err := svc.Status("missing")
	require.Error(t, err)
}

func TestStartStop_IsIdempotent(t *testing.T) {
	svc := NewService(arbor.NewLogger(), func(ctx context.Context, lensID, query, mode string) error { return nil })

	svc.Start()
	svc.Start()
	svc.Stop()
	svc.Stop()
}
