/*
 * @module service/pipeline/job
 * @description 处理作业、作业状态机与对外可见的作业快照
 * @architecture DDD领域驱动设计 - 聚合根 + 状态机
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow pending -> running -> completed / failed / cancelled；pending -> failed / cancelled
 * @rules 终态不可再迁移；快照不包含中间数据集
 * @dependencies processor-service/service/preprocess
 * @refs service/pipeline/orchestrator.go, service/pipeline/registry.go
 */

package pipeline

import (
	"errors"
	"fmt"
	"time"

	"processor-service/service/dataset"
	"processor-service/service/preprocess"
)

// JobState 作业状态
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// ErrInvalidTransition 非法状态迁移
var ErrInvalidTransition = errors.New("invalid job state transition")

var transitions = map[JobState][]JobState{
	StatePending: {StateRunning, StateFailed, StateCancelled},
	StateRunning: {StateCompleted, StateFailed, StateCancelled},
}

// Terminal 是否为终态
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to JobState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to JobState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Job 处理作业
type Job struct {
	ID        string
	DatasetID string
	Options   preprocess.Options
	CreatedAt time.Time
}

// Summary 作业摘要
type Summary struct {
	RowsIn          int                `json:"rows_in"`
	RowsOut         int                `json:"rows_out"`
	ColumnsIn       int                `json:"columns_in"`
	ColumnsOut      int                `json:"columns_out"`
	MissingBefore   int                `json:"missing_before"`
	MissingAfter    int                `json:"missing_after"`
	RowsDropped     int                `json:"rows_dropped"`
	Transformations int                `json:"transformations"`
	Verdict         preprocess.Verdict `json:"verdict,omitempty"`
	DurationMs      int64              `json:"duration_ms"`
	Fingerprint     string             `json:"input_fingerprint,omitempty"`
}

// Snapshot 作业对外可见的状态与报告
type Snapshot struct {
	JobID      string                            `json:"job_id"`
	DatasetID  string                            `json:"dataset_id"`
	State      JobState                          `json:"status"`
	Stage      string                            `json:"stage,omitempty"`
	ErrorKind  preprocess.ErrorKind              `json:"error_kind,omitempty"`
	Error      string                            `json:"error,omitempty"`
	Options    preprocess.Options                `json:"config"`
	Records    []preprocess.TransformationRecord `json:"transformations"`
	Validation *preprocess.ValidationReport      `json:"validation_metrics,omitempty"`
	Summary    Summary                           `json:"summary"`
	CreatedAt  time.Time                         `json:"created_at"`
	UpdatedAt  time.Time                         `json:"updated_at"`
	StartedAt  *time.Time                        `json:"started_at,omitempty"`
	FinishedAt *time.Time                        `json:"finished_at,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Records = append([]preprocess.TransformationRecord(nil), s.Records...)
	if s.Validation != nil {
		v := *s.Validation
		out.Validation = &v
	}
	return out
}

// Result 作业完成后的数据集与报告
type Result struct {
	// Original 缺失值与异常值处理之后、特征工程之前的数据集
	Original    *dataset.Dataset
	Transformed *dataset.Dataset
	// Columns 输入数据集的列顺序，Profiles为输入数据集的列画像
	Columns     []string
	Profiles    preprocess.Profiles
	Records     []preprocess.TransformationRecord
	Validation  *preprocess.ValidationReport
}

// Chosen 按验证结论返回应保留的数据集
func (r *Result) Chosen() *dataset.Dataset {
	if r.Validation != nil && r.Validation.Verdict == preprocess.VerdictOriginal {
		return r.Original
	}
	return r.Transformed
}

// ChosenArtifacts 返回与Chosen对应的拟合产物序列
func (r *Result) ChosenArtifacts() []preprocess.FitArtifact {
	if r.Validation != nil && r.Validation.Verdict == preprocess.VerdictOriginal {
		var cleaning []preprocess.TransformationRecord
		for _, rec := range r.Records {
			if rec.Stage == preprocess.StageMissingValues || rec.Stage == preprocess.StageOutliers {
				cleaning = append(cleaning, rec)
			}
		}
		return preprocess.CollectArtifacts(cleaning)
	}
	return preprocess.CollectArtifacts(r.Records)
}

// MissingValueReport 缺失值报告
func (r *Result) MissingValueReport() []preprocess.MissingValueEntry {
	return preprocess.BuildMissingValueReport(r.Columns, r.Profiles, r.Records)
}
