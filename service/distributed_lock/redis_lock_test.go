package distributed_lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryLock 进程内锁，用于测试执行器
type memoryLock struct {
	mu        sync.Mutex
	held      map[string]bool
	refreshes int
	unlocks   int
	failNext  error
}

func newMemoryLock() *memoryLock {
	return &memoryLock{held: make(map[string]bool)}
}

func (m *memoryLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return false, err
	}
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *memoryLock) Unlock(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	m.unlocks++
	return nil
}

func (m *memoryLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	return nil
}

func (m *memoryLock) IsLocked(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key], nil
}

func TestExecuteWithLockReleasesAfterRun(t *testing.T) {
	lock := newMemoryLock()
	exec := NewLockExecutor(lock)

	ran := false
	err := exec.ExecuteWithLock(context.Background(), "job-1", time.Minute, func() error {
		held, _ := lock.IsLocked(context.Background(), "job-1")
		assert.True(t, held)
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	held, _ := lock.IsLocked(context.Background(), "job-1")
	assert.False(t, held)
	assert.Equal(t, 1, lock.unlocks)
}

func TestExecuteWithLockSkipsWhenHeld(t *testing.T) {
	lock := newMemoryLock()
	_, _ = lock.TryLock(context.Background(), "job-1", time.Minute)

	err := NewLockExecutor(lock).ExecuteWithLock(context.Background(), "job-1", time.Minute, func() error {
		t.Fatal("must not run while another holder owns the lock")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestExecuteWithLockPropagatesErrors(t *testing.T) {
	lock := newMemoryLock()
	exec := NewLockExecutor(lock)

	boom := errors.New("boom")
	assert.ErrorIs(t, exec.ExecuteWithLock(context.Background(), "k", time.Minute, func() error { return boom }), boom)
	assert.Equal(t, 1, lock.unlocks)

	lock.failNext = errors.New("redis down")
	err := exec.ExecuteWithLock(context.Background(), "k", time.Minute, func() error { return nil })
	assert.ErrorContains(t, err, "redis down")
}

func TestExecuteWithLockAndRefreshRenews(t *testing.T) {
	lock := newMemoryLock()
	err := NewLockExecutor(lock).ExecuteWithLockAndRefresh(context.Background(), "job-2", time.Second, 10*time.Millisecond,
		func() error {
			time.Sleep(60 * time.Millisecond)
			return nil
		})
	require.NoError(t, err)
	lock.mu.Lock()
	defer lock.mu.Unlock()
	assert.GreaterOrEqual(t, lock.refreshes, 2)
}

func TestNewRedisLockDefaultsPrefix(t *testing.T) {
	lock := NewRedisLock(nil, "")
	assert.Equal(t, KeyPrefix, lock.prefix)
	assert.NotEmpty(t, lock.instanceID)
}
