/*
 * @module service/notify/sse_broker
 * @description 进程内SSE事件分发，向订阅的HTTP客户端推送作业终态事件
 * @architecture 事件驱动架构 - 订阅者注册表
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 客户端订阅 -> 作业终态事件入队 -> 控制器写出事件流 -> 客户端断开时注销
 * @rules 每个订阅者缓冲固定数量事件，队列满时丢弃并记录；可按数据集过滤
 * @dependencies github.com/google/uuid, log/slog
 * @refs api/controllers/processing_controller.go
 */

package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 100

// Subscriber SSE订阅者
type Subscriber struct {
	ID        string
	DatasetID string // 为空时接收全部事件
	Events    chan Event
	Done      chan struct{}
}

// SSEBroker 进程内事件分发器
type SSEBroker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	logger      *slog.Logger
}

// NewSSEBroker 创建事件分发器
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{
		subscribers: make(map[string]*Subscriber),
		logger:      slog.Default().With("component", "sse"),
	}
}

// Subscribe 注册订阅者
func (b *SSEBroker) Subscribe(datasetID string) *Subscriber {
	sub := &Subscriber{
		ID:        uuid.New().String(),
		DatasetID: datasetID,
		Events:    make(chan Event, subscriberBuffer),
		Done:      make(chan struct{}),
	}
	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()
	b.logger.Info("SSE订阅已建立", "subscriber", sub.ID, "dataset_id", datasetID)
	return sub
}

// Unsubscribe 注销订阅者
func (b *SSEBroker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.Done)
		delete(b.subscribers, id)
		b.logger.Info("SSE订阅已断开", "subscriber", id)
	}
}

// Len 返回当前订阅者数量
func (b *SSEBroker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *SSEBroker) Name() string { return "sse" }

// Notify 向匹配的订阅者投递事件
func (b *SSEBroker) Notify(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.DatasetID != "" && sub.DatasetID != ev.DatasetID {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			b.logger.Warn("SSE事件队列已满，跳过发送", "subscriber", sub.ID, "job_id", ev.JobID)
		}
	}
	return nil
}
