/*
 * @module service/distributed_lock/redis_lock
 * @description Redis分布式锁实现，保证多实例部署时同一处理作业与清理任务只在一个实例上执行
 * @architecture 工具层 - 提供分布式锁能力
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 获取锁 -> 执行任务 -> 释放锁/自动过期
 * @rules 使用Redis SET NX实现，支持锁续期和自动过期；只有持有者能释放或续期
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/init.go, service/processing/processing_service.go, service/cleanup/job_cleanup_service.go
 */

package distributed_lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// KeyPrefix 处理作业锁的键前缀
const KeyPrefix = "processing_job:lock:"

// ErrLockHeld 锁已被其他实例持有
var ErrLockHeld = errors.New("lock held by another instance")

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// TryLock 尝试获取锁
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock 释放锁
	Unlock(ctx context.Context, key string) error
	// Refresh 刷新锁的过期时间
	Refresh(ctx context.Context, key string, ttl time.Duration) error
	// IsLocked 检查锁是否存在
	IsLocked(ctx context.Context, key string) (bool, error)
}

// RedisLock Redis分布式锁实现
type RedisLock struct {
	client     *redis.Client
	prefix     string
	instanceID string // 实例ID，用于标识锁的持有者
}

// NewRedisLock 基于已连接的Redis客户端创建分布式锁，prefix为空时使用KeyPrefix
func NewRedisLock(client *redis.Client, prefix string) *RedisLock {
	if prefix == "" {
		prefix = KeyPrefix
	}
	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s:%d", hostname, os.Getpid())

	slog.Info("Redis分布式锁初始化成功", "instance_id", instanceID, "prefix", prefix)
	return &RedisLock{client: client, prefix: prefix, instanceID: instanceID}
}

// 只有值等于持有者标识时才删除或续期
var (
	unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

// TryLock 以SET NX占用key，已被占用时返回false
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := r.client.SetNX(ctx, r.prefix+key, r.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}
	if result {
		slog.Debug("分布式锁: 成功获取锁", "key", key, "ttl", ttl, "instance", r.instanceID)
	}
	return result, nil
}

// Unlock 释放锁
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	result, err := unlockScript.Run(ctx, r.client, []string{r.prefix + key}, r.instanceID).Int64()
	if err != nil {
		return fmt.Errorf("释放锁失败: %w", err)
	}
	if result == 1 {
		slog.Debug("分布式锁: 成功释放锁", "key", key, "instance", r.instanceID)
	} else {
		slog.Warn("分布式锁: 锁不存在或已被其他实例持有", "key", key, "instance", r.instanceID)
	}
	return nil
}

// Refresh 延长锁的过期时间，锁已易主时返回ErrLockHeld
func (r *RedisLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	result, err := refreshScript.Run(ctx, r.client, []string{r.prefix + key}, r.instanceID, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("刷新锁失败: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("刷新锁失败: %w", ErrLockHeld)
	}
	slog.Debug("分布式锁: 成功刷新锁", "key", key, "ttl", ttl, "instance", r.instanceID)
	return nil
}

// IsLocked 检查锁是否存在
func (r *RedisLock) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("检查锁状态失败: %w", err)
	}
	return exists > 0, nil
}

// LockExecutor 带锁执行器，用于简化锁的使用
type LockExecutor struct {
	lock DistributedLock
}

// NewLockExecutor 创建带锁执行器
func NewLockExecutor(lock DistributedLock) *LockExecutor {
	return &LockExecutor{lock: lock}
}

// ExecuteWithLock 在锁保护下执行函数，锁被其他实例持有时返回ErrLockHeld
func (e *LockExecutor) ExecuteWithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	return e.ExecuteWithLockAndRefresh(ctx, key, ttl, 0, fn)
}

// ExecuteWithLockAndRefresh 在锁保护下执行函数，refreshInterval大于0时自动续期
func (e *LockExecutor) ExecuteWithLockAndRefresh(ctx context.Context, key string, ttl time.Duration, refreshInterval time.Duration, fn func() error) error {
	locked, err := e.lock.TryLock(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("获取锁失败: %w", err)
	}
	if !locked {
		slog.Debug("分布式锁: 锁已被其他实例持有，跳过执行", "key", key)
		return ErrLockHeld
	}

	// 释放锁不受调用方取消影响
	releaseCtx := context.WithoutCancel(ctx)
	defer func() {
		if unlockErr := e.lock.Unlock(releaseCtx, key); unlockErr != nil {
			slog.Error("分布式锁: 释放锁失败", "key", key, "error", unlockErr)
		}
	}()

	if refreshInterval > 0 {
		refreshCtx, cancelRefresh := context.WithCancel(releaseCtx)
		defer cancelRefresh()

		go func() {
			ticker := time.NewTicker(refreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-refreshCtx.Done():
					return
				case <-ticker.C:
					if refreshErr := e.lock.Refresh(refreshCtx, key, ttl); refreshErr != nil {
						slog.Error("分布式锁: 续期失败", "key", key, "error", refreshErr)
					}
				}
			}
		}()
	}

	return fn()
}
