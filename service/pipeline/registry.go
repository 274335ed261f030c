/*
 * @module service/pipeline/registry
 * @description 作业注册表，保存作业标识到状态与报告的映射
 * @architecture 内存注册表 - 读写锁
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 注册 -> 编排器更新 -> 轮询读取 -> 过期清理
 * @rules 支持并发读；写入只由编排器进行；读取返回副本，结果数据集仅在completed后可见
 * @dependencies sync
 * @refs service/pipeline/orchestrator.go
 */

package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrJobNotFound 作业不存在
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists 作业已注册
	ErrJobExists = errors.New("job already registered")
)

type entry struct {
	snapshot Snapshot
	result   *Result
}

// Registry 作业注册表
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*entry)}
}

// Register 以pending状态登记作业
func (r *Registry) Register(job *Job) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	created := job.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	snap := Snapshot{
		JobID:     job.ID,
		DatasetID: job.DatasetID,
		State:     StatePending,
		Options:   job.Options,
		CreatedAt: created,
		UpdatedAt: created,
	}
	r.jobs[job.ID] = &entry{snapshot: snap}
	return snap.clone(), nil
}

// Get 获取作业快照
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot.clone(), true
}

// Result 获取已完成作业的结果
func (r *Registry) Result(id string) (*Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok || e.snapshot.State != StateCompleted || e.result == nil {
		return nil, false
	}
	return e.result, true
}

// LatestForDataset 返回数据集最近一次提交的作业
func (r *Registry) LatestForDataset(datasetID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		latest Snapshot
		found  bool
	)
	for _, e := range r.jobs {
		if e.snapshot.DatasetID != datasetID {
			continue
		}
		if !found || e.snapshot.CreatedAt.After(latest.CreatedAt) {
			latest, found = e.snapshot, true
		}
	}
	return latest.clone(), found
}

// Prune 删除在before之前结束的终态作业，返回被删除的作业标识
func (r *Registry) Prune(before time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, e := range r.jobs {
		s := e.snapshot
		if s.State.Terminal() && s.FinishedAt != nil && s.FinishedAt.Before(before) {
			delete(r.jobs, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Len 注册的作业数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// update 在写锁内修改快照
func (r *Registry) update(id string, fn func(*entry) error) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err := fn(e); err != nil {
		return Snapshot{}, err
	}
	e.snapshot.UpdatedAt = time.Now()
	return e.snapshot.clone(), nil
}

// transition 迁移状态
func (r *Registry) transition(id string, to JobState, fn func(*entry)) (Snapshot, error) {
	return r.update(id, func(e *entry) error {
		if err := checkTransition(e.snapshot.State, to); err != nil {
			return err
		}
		now := time.Now()
		e.snapshot.State = to
		if to == StateRunning {
			e.snapshot.StartedAt = &now
		}
		if to.Terminal() {
			e.snapshot.FinishedAt = &now
		}
		if fn != nil {
			fn(e)
		}
		return nil
	})
}
