/*
 * @module service/models/processing_job
 * @description 数据预处理作业持久化模型
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 作业提交 -> pending -> running -> completed/failed/cancelled
 * @rules 每次状态迁移后整体写入；报告字段以JSON序列化保存；拟合产物以msgpack保存
 * @dependencies gorm.io/gorm, github.com/google/uuid, github.com/lib/pq
 * @refs service/store/job_store.go, service/pipeline/job.go
 */

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"processor-service/service/meta"
	"processor-service/service/preprocess"
)

// ProcessingJob 预处理作业
type ProcessingJob struct {
	ID                string                            `json:"id" gorm:"primaryKey;type:varchar(36)" example:"550e8400-e29b-41d4-a716-446655440000"`
	DatasetID         string                            `json:"dataset_id" gorm:"not null;size:100;index" example:"sales_2024"`
	Status            string                            `json:"status" gorm:"not null;size:20;default:'pending';index" example:"pending"` // pending, running, completed, failed, cancelled
	Stage             string                            `json:"stage,omitempty" gorm:"size:40"`
	ErrorKind         string                            `json:"error_kind,omitempty" gorm:"size:40"`
	ErrorMessage      string                            `json:"error_message,omitempty" gorm:"type:text"`
	Config            preprocess.Options                `json:"config" gorm:"type:jsonb;serializer:json"`
	TargetColumn      string                            `json:"target_column,omitempty" gorm:"size:200"`
	ColumnsToIgnore   pq.StringArray                    `json:"columns_to_ignore,omitempty" gorm:"type:text[]"`
	InputFingerprint  string                            `json:"input_fingerprint,omitempty" gorm:"size:64"`
	RowsIn            int                               `json:"rows_in" gorm:"default:0"`
	RowsOut           int                               `json:"rows_out" gorm:"default:0"`
	FeaturesIn        int                               `json:"features_in" gorm:"default:0"`
	FeaturesOut       int                               `json:"features_out" gorm:"default:0"`
	Transformations   []preprocess.TransformationRecord `json:"transformations,omitempty" gorm:"type:jsonb;serializer:json"`
	MissingValues     []preprocess.MissingValueEntry    `json:"missing_values_report,omitempty" gorm:"type:jsonb;serializer:json"`
	Outliers          []preprocess.OutlierEntry         `json:"outliers_report,omitempty" gorm:"type:jsonb;serializer:json"`
	FeatureImportance []preprocess.FeatureScore         `json:"feature_importance,omitempty" gorm:"type:jsonb;serializer:json"`
	Validation        *preprocess.ValidationReport      `json:"validation_metrics,omitempty" gorm:"type:jsonb;serializer:json"`
	Summary           JSONB                             `json:"summary,omitempty" gorm:"type:jsonb"`
	Artifacts         []byte                            `json:"-" gorm:"type:bytea"`
	StartedAt         *time.Time                        `json:"started_at,omitempty"`
	FinishedAt        *time.Time                        `json:"finished_at,omitempty"`
	CreatedAt         time.Time                         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time                         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName 表名
func (ProcessingJob) TableName() string {
	return "processing_jobs"
}

// BeforeCreate GORM钩子，创建前生成UUID并校验状态
func (j *ProcessingJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = meta.ProcessingStatusPending
	}
	return j.validateStatus()
}

// BeforeUpdate GORM钩子，更新前校验状态
func (j *ProcessingJob) BeforeUpdate(tx *gorm.DB) error {
	return j.validateStatus()
}

func (j *ProcessingJob) validateStatus() error {
	for _, s := range meta.ProcessingStatuses {
		if s.Name == j.Status {
			return nil
		}
	}
	return errors.New("无效的作业状态: " + j.Status)
}

// IsTerminal 是否已结束
func (j *ProcessingJob) IsTerminal() bool {
	return meta.IsTerminalProcessingStatus(j.Status)
}

// DecodeArtifacts 解码保存的拟合产物
func (j *ProcessingJob) DecodeArtifacts() ([]preprocess.FitArtifact, error) {
	if len(j.Artifacts) == 0 {
		return nil, nil
	}
	return preprocess.DecodeArtifacts(j.Artifacts)
}
