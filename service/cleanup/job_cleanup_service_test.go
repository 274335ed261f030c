package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"processor-service/service/distributed_lock"
	"processor-service/service/pipeline"
	"processor-service/service/preprocess"
	"processor-service/testutil"
)

type fakePurger struct {
	deleteBefore time.Time
	staleBefore  time.Time
	active       []string
	deleteErr    error
}

func (f *fakePurger) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	f.deleteBefore = before
	return 2, f.deleteErr
}

func (f *fakePurger) FailStale(ctx context.Context, before time.Time, active ...string) (int64, error) {
	f.staleBefore = before
	f.active = active
	return 1, nil
}

type heldLock struct{ distributed_lock.DistributedLock }

func (heldLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}

func finishedRegistry(t *testing.T) *pipeline.Registry {
	t.Helper()
	registry := pipeline.NewRegistry()
	orch := pipeline.NewOrchestrator(registry, nil, nil)
	ds := testutil.NewDataset(t, testutil.WithRows(40))
	_, err := orch.Run(context.Background(), &pipeline.Job{ID: "done", DatasetID: "d", Options: preprocess.DefaultOptions()}, ds)
	require.Error(t, err)
	_, err = registry.Register(&pipeline.Job{ID: "waiting", DatasetID: "d"})
	require.NoError(t, err)
	return registry
}

func TestCleanupPrunesAndPurges(t *testing.T) {
	registry := finishedRegistry(t)
	purger := &fakePurger{}
	svc := NewJobCleanupService(registry, purger, func() []string { return []string{"waiting"} }, nil, Options{
		Retention:  time.Hour,
		StaleAfter: 30 * time.Minute,
		Schedule:   "@every 1h",
	})
	now := time.Now().Add(2 * time.Hour)
	svc.now = func() time.Time { return now }

	result, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pruned)
	assert.EqualValues(t, 2, result.Deleted)
	assert.EqualValues(t, 1, result.FailedStale)
	assert.Equal(t, now.Add(-time.Hour), purger.deleteBefore)
	assert.Equal(t, now.Add(-30*time.Minute), purger.staleBefore)
	assert.Equal(t, []string{"waiting"}, purger.active)

	_, ok := registry.Get("done")
	assert.False(t, ok)
	_, ok = registry.Get("waiting")
	assert.True(t, ok)
}

func TestCleanupKeepsRecentJobs(t *testing.T) {
	registry := finishedRegistry(t)
	svc := NewJobCleanupService(registry, nil, nil, nil, Options{Retention: time.Hour})

	result, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Pruned)
	assert.Equal(t, 2, registry.Len())
}

func TestCleanupReportsPurgeErrors(t *testing.T) {
	svc := NewJobCleanupService(nil, &fakePurger{deleteErr: errors.New("db down")}, nil, nil, Options{Retention: time.Hour})
	_, err := svc.Cleanup(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestCleanupSkipsWhenLockHeld(t *testing.T) {
	purger := &fakePurger{}
	locker := distributed_lock.NewLockExecutor(heldLock{})
	svc := NewJobCleanupService(nil, purger, nil, locker, Options{Retention: time.Hour, StaleAfter: time.Hour})

	result, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Deleted)
	assert.True(t, purger.deleteBefore.IsZero())
}

func TestScheduledCleanupLifecycle(t *testing.T) {
	svc := NewJobCleanupService(pipeline.NewRegistry(), nil, nil, nil, Options{Retention: time.Hour, Schedule: "@every 1h"})
	require.NoError(t, svc.StartScheduledCleanup())
	assert.Error(t, svc.StartScheduledCleanup())
	svc.StopScheduledCleanup()
	svc.StopScheduledCleanup()

	bad := NewJobCleanupService(nil, nil, nil, nil, Options{Schedule: "not a schedule"})
	assert.Error(t, bad.StartScheduledCleanup())
}
