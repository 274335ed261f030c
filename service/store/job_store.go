/*
 * @module service/store/job_store
 * @description 处理作业状态存储，基于GORM持久化作业快照与完成结果
 * @architecture 分层架构 - 仓储层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 提交写入pending -> 每次状态迁移覆盖状态字段 -> 完成后写入报告与拟合产物
 * @rules 快照写入只更新状态相关字段，不覆盖已写入的报告；支持按数据集查询最近作业
 * @dependencies gorm.io/gorm, processor-service/service/models
 * @refs service/pipeline/orchestrator.go
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"processor-service/service/models"
	"processor-service/service/pipeline"
	"processor-service/service/preprocess"
)

// ErrJobNotFound 作业不存在
var ErrJobNotFound = errors.New("processing job not found")

// snapshotColumns 快照写入时覆盖的列
var snapshotColumns = []string{
	"status", "stage", "error_kind", "error_message", "transformations", "validation",
	"summary", "input_fingerprint", "rows_in", "rows_out", "features_in", "features_out",
	"started_at", "finished_at", "updated_at",
}

// GormJobStore 基于GORM的作业存储
type GormJobStore struct {
	db *gorm.DB
}

// NewGormJobStore 创建作业存储
func NewGormJobStore(db *gorm.DB) *GormJobStore {
	return &GormJobStore{db: db}
}

// AutoMigrate 迁移作业表
func (s *GormJobStore) AutoMigrate() error {
	return s.db.AutoMigrate(&models.ProcessingJob{})
}

// SaveSnapshot 写入作业快照，首次写入时创建记录
func (s *GormJobStore) SaveSnapshot(ctx context.Context, snap pipeline.Snapshot) error {
	job, err := fromSnapshot(snap)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(snapshotColumns),
	}).Create(job).Error
	if err != nil {
		return fmt.Errorf("保存作业快照失败: %w", err)
	}
	return nil
}

// SaveResult 写入已完成作业的报告与拟合产物
func (s *GormJobStore) SaveResult(ctx context.Context, jobID string, result *pipeline.Result) error {
	artifacts, err := preprocess.EncodeArtifacts(result.ChosenArtifacts())
	if err != nil {
		return fmt.Errorf("编码拟合产物失败: %w", err)
	}
	report := models.ProcessingJob{
		Artifacts:         artifacts,
		MissingValues:     result.MissingValueReport(),
		Outliers:          preprocess.BuildOutlierReport(result.Records),
		FeatureImportance: preprocess.BuildFeatureImportanceReport(result.Records),
		UpdatedAt:         time.Now(),
	}
	res := s.db.WithContext(ctx).Session(&gorm.Session{SkipHooks: true}).
		Model(&models.ProcessingJob{ID: jobID}).
		Select("artifacts", "missing_values", "outliers", "feature_importance", "updated_at").
		Updates(&report)
	if res.Error != nil {
		return fmt.Errorf("保存作业结果失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return nil
}

// Get 按ID获取作业
func (s *GormJobStore) Get(ctx context.Context, id string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("查询作业失败: %w", err)
	}
	return &job, nil
}

// LatestByDataset 获取数据集最近一次提交的作业
func (s *GormJobStore) LatestByDataset(ctx context.Context, datasetID string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	err := s.db.WithContext(ctx).Where("dataset_id = ?", datasetID).Order("created_at DESC").First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: dataset %s", ErrJobNotFound, datasetID)
		}
		return nil, fmt.Errorf("查询作业失败: %w", err)
	}
	return &job, nil
}

// FailStale 将长时间停留在非终态的作业标记为失败，active中的作业仍在本实例执行，不受影响
func (s *GormJobStore) FailStale(ctx context.Context, before time.Time, active ...string) (int64, error) {
	query := s.db.WithContext(ctx).Session(&gorm.Session{SkipHooks: true}).Model(&models.ProcessingJob{}).
		Where("status IN ? AND updated_at < ?", []string{string(pipeline.StatePending), string(pipeline.StateRunning)}, before)
	if len(active) > 0 {
		query = query.Where("id NOT IN ?", active)
	}
	res := query.Updates(map[string]interface{}{
			"status":        string(pipeline.StateFailed),
			"error_kind":    string(preprocess.KindInternal),
			"error_message": "作业在服务重启或中断后未完成",
			"finished_at":   time.Now(),
			"updated_at":    time.Now(),
		})
	return res.RowsAffected, res.Error
}

// DeleteFinishedBefore 删除在before之前结束的作业
func (s *GormJobStore) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("finished_at IS NOT NULL AND finished_at < ?", before).
		Delete(&models.ProcessingJob{})
	return res.RowsAffected, res.Error
}

func fromSnapshot(snap pipeline.Snapshot) (*models.ProcessingJob, error) {
	summary, err := models.ToJSONB(snap.Summary)
	if err != nil {
		return nil, fmt.Errorf("序列化作业摘要失败: %w", err)
	}
	job := &models.ProcessingJob{
		ID:               snap.JobID,
		DatasetID:        snap.DatasetID,
		Status:           string(snap.State),
		Stage:            snap.Stage,
		ErrorKind:        string(snap.ErrorKind),
		ErrorMessage:     snap.Error,
		Config:           snap.Options,
		TargetColumn:     snap.Options.TargetColumn,
		ColumnsToIgnore:  snap.Options.ColumnsToIgnore,
		InputFingerprint: snap.Summary.Fingerprint,
		RowsIn:           snap.Summary.RowsIn,
		RowsOut:          snap.Summary.RowsOut,
		Transformations:  snap.Records,
		Validation:       snap.Validation,
		Summary:          summary,
		StartedAt:        snap.StartedAt,
		FinishedAt:       snap.FinishedAt,
		CreatedAt:        snap.CreatedAt,
		UpdatedAt:        snap.UpdatedAt,
	}
	if snap.Summary.ColumnsIn > 0 {
		job.FeaturesIn = snap.Summary.ColumnsIn
		job.FeaturesOut = snap.Summary.ColumnsOut
	}
	return job, nil
}
