/*
 * @module service/notify/notifier
 * @description 处理作业终态通知，定义事件结构并向多个通道并发分发
 * @architecture 观察者模式 - 作业终态事件发布
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 作业进入终态 -> 构建事件 -> 并发投递到各通道 -> 汇总失败
 * @rules 单个通道失败不影响其他通道；投递失败只记录日志，不改变作业状态
 * @dependencies golang.org/x/sync/errgroup, log/slog
 * @refs service/processing/processing_service.go
 */

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"processor-service/service/pipeline"
)

// 事件类型
const (
	EventJobCompleted = "processing.job.completed"
	EventJobFailed    = "processing.job.failed"
	EventJobCancelled = "processing.job.cancelled"
)

// Event 作业终态事件
type Event struct {
	Type          string           `json:"type"`
	JobID         string           `json:"job_id"`
	DatasetID     string           `json:"dataset_id"`
	Status        string           `json:"status"`
	ErrorKind     string           `json:"error_kind,omitempty"`
	Error         string           `json:"error,omitempty"`
	Verdict       string           `json:"verdict,omitempty"`
	Summary       pipeline.Summary `json:"summary"`
	ProcessedPath string           `json:"processed_path,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// NewEvent 由作业快照构建事件
func NewEvent(snap pipeline.Snapshot, processedPath string) Event {
	ev := Event{
		JobID:         snap.JobID,
		DatasetID:     snap.DatasetID,
		Status:        string(snap.State),
		ErrorKind:     string(snap.ErrorKind),
		Error:         snap.Error,
		Verdict:       string(snap.Summary.Verdict),
		Summary:       snap.Summary,
		ProcessedPath: processedPath,
		OccurredAt:    time.Now(),
	}
	switch snap.State {
	case pipeline.StateCompleted:
		ev.Type = EventJobCompleted
	case pipeline.StateCancelled:
		ev.Type = EventJobCancelled
	default:
		ev.Type = EventJobFailed
	}
	return ev
}

// Notifier 通知通道
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

// Fanout 向多个通道并发投递
type Fanout struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFanout 创建分发器，timeout为单个通道的投递超时，0表示不限制
func NewFanout(timeout time.Duration, notifiers ...Notifier) *Fanout {
	return &Fanout{
		notifiers: notifiers,
		timeout:   timeout,
		logger:    slog.Default().With("component", "notify"),
	}
}

// Add 追加通道
func (f *Fanout) Add(n Notifier) {
	f.notifiers = append(f.notifiers, n)
}

// Names 返回已配置的通道名称
func (f *Fanout) Names() []string {
	names := make([]string, len(f.notifiers))
	for i, n := range f.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Name 实现Notifier
func (f *Fanout) Name() string { return "fanout" }

// Notify 投递到所有通道，返回各通道错误的合并
func (f *Fanout) Notify(ctx context.Context, ev Event) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range f.notifiers {
		n := n
		g.Go(func() error {
			sendCtx := gctx
			if f.timeout > 0 {
				var cancel context.CancelFunc
				sendCtx, cancel = context.WithTimeout(gctx, f.timeout)
				defer cancel()
			}
			if err := n.Notify(sendCtx, ev); err != nil {
				f.logger.Warn("作业事件投递失败", "notifier", n.Name(), "job_id", ev.JobID, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
