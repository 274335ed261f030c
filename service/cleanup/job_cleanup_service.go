/*
 * @module service/cleanup/job_cleanup_service
 * @description 作业清理服务，定期清理过期作业并将中断的作业标记为失败
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 定时触发 -> 获取分布式锁 -> 清理注册表 -> 清理作业表 -> 标记中断作业 -> 记录结果
 * @rules 清理不影响本实例正在执行的作业；多实例部署时同一时刻只有一个实例执行清理
 * @dependencies github.com/robfig/cron/v3, processor-service/service/pipeline, processor-service/service/distributed_lock
 * @refs service/init.go, service/store/job_store.go
 */

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"processor-service/service/distributed_lock"
	"processor-service/service/pipeline"
)

// lockKey 清理任务的分布式锁键
const lockKey = "cleanup"

// JobPurger 作业表清理接口
type JobPurger interface {
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
	FailStale(ctx context.Context, before time.Time, active ...string) (int64, error)
}

// ActiveJobs 返回本实例正在执行的作业
type ActiveJobs func() []string

// Options 清理参数
type Options struct {
	Retention  time.Duration // 已结束作业保留时长
	StaleAfter time.Duration // 未结束作业超过该时长未更新视为中断，0表示不检查
	Schedule   string        // cron表达式，支持秒字段与@every
	LockTTL    time.Duration
}

// Result 单次清理结果
type Result struct {
	Pruned      int           `json:"pruned"`
	Deleted     int64         `json:"deleted"`
	FailedStale int64         `json:"failed_stale"`
	Duration    time.Duration `json:"duration"`
}

// JobCleanupService 作业清理服务
type JobCleanupService struct {
	registry *pipeline.Registry
	purger   JobPurger
	active   ActiveJobs
	locker   *distributed_lock.LockExecutor
	opts     Options
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewJobCleanupService 创建作业清理服务，purger、active与locker可为nil
func NewJobCleanupService(registry *pipeline.Registry, purger JobPurger, active ActiveJobs,
	locker *distributed_lock.LockExecutor, opts Options) *JobCleanupService {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobCleanupService{
		registry: registry,
		purger:   purger,
		active:   active,
		locker:   locker,
		opts:     opts,
		now:      time.Now,
		cron:     cron.New(cron.WithSeconds()),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Cleanup 执行一次清理，配置了分布式锁时锁被占用则跳过
func (s *JobCleanupService) Cleanup(ctx context.Context) (*Result, error) {
	if s.locker == nil {
		return s.cleanup(ctx)
	}
	var result *Result
	err := s.locker.ExecuteWithLock(ctx, lockKey, s.lockTTL(), func() error {
		var err error
		result, err = s.cleanup(ctx)
		return err
	})
	if errors.Is(err, distributed_lock.ErrLockHeld) {
		slog.Debug("其他实例正在执行作业清理，本次跳过")
		return &Result{}, nil
	}
	return result, err
}

func (s *JobCleanupService) cleanup(ctx context.Context) (*Result, error) {
	started := s.now()
	result := &Result{}

	if s.opts.Retention > 0 {
		cutoff := started.Add(-s.opts.Retention)
		if s.registry != nil {
			result.Pruned = len(s.registry.Prune(cutoff))
		}
		if s.purger != nil {
			deleted, err := s.purger.DeleteFinishedBefore(ctx, cutoff)
			if err != nil {
				return result, fmt.Errorf("删除过期作业失败: %w", err)
			}
			result.Deleted = deleted
		}
	}

	if s.opts.StaleAfter > 0 && s.purger != nil {
		var active []string
		if s.active != nil {
			active = s.active()
		}
		failed, err := s.purger.FailStale(ctx, started.Add(-s.opts.StaleAfter), active...)
		if err != nil {
			return result, fmt.Errorf("标记中断作业失败: %w", err)
		}
		result.FailedStale = failed
	}

	result.Duration = s.now().Sub(started)
	slog.Info("作业清理完成",
		"pruned", result.Pruned,
		"deleted", result.Deleted,
		"failed_stale", result.FailedStale,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

func (s *JobCleanupService) lockTTL() time.Duration {
	if s.opts.LockTTL > 0 {
		return s.opts.LockTTL
	}
	return time.Minute
}

// StartScheduledCleanup 启动定时清理任务，并在启动时立即执行一次
func (s *JobCleanupService) StartScheduledCleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("作业清理调度器已经启动")
	}

	_, err := s.cron.AddFunc(s.opts.Schedule, func() {
		if _, err := s.Cleanup(s.ctx); err != nil {
			slog.Error("定时作业清理失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true
	slog.Info("作业清理调度器启动成功", "schedule", s.opts.Schedule, "retention", s.opts.Retention)

	go func() {
		if _, err := s.Cleanup(s.ctx); err != nil {
			slog.Error("首次作业清理失败", "error", err)
		}
	}()
	return nil
}

// StopScheduledCleanup 停止定时清理任务，等待正在执行的清理结束
func (s *JobCleanupService) StopScheduledCleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
	slog.Info("作业清理调度器已停止")
}
