/*
 * @module testutil/test_helper
 * @description 测试数据库、作业工厂与HTTP请求辅助
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 内存SQLite -> 迁移processing_jobs -> 工厂写入作业 -> 测试执行 -> 关闭连接
 * @rules 内存库限制为单连接；工厂生成的作业默认处于pending状态并带默认预处理选项
 * @dependencies gorm, sqlite, testify, uuid
 * @refs service/models/processing_job.go
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"processor-service/service/meta"
	"processor-service/service/models"
	"processor-service/service/preprocess"
)

// TestDB 内存作业库
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建并迁移内存作业库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("打开测试数据库失败: %v", err))
	}
	// 内存库每个连接独立，限制为单连接保证各goroutine看到同一份数据
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&models.ProcessingJob{}); err != nil {
		panic(fmt.Sprintf("迁移测试数据库失败: %v", err))
	}
	return &TestDB{DB: db}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 作业数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// ProcessingJobOption 修改待写入作业的选项
type ProcessingJobOption func(*models.ProcessingJob)

// CreateProcessingJob 写入一条作业，失败时panic
func (f *TestDataFactory) CreateProcessingJob(opts ...ProcessingJobOption) *models.ProcessingJob {
	now := time.Now()
	job := &models.ProcessingJob{
		ID:        uuid.NewString(),
		DatasetID: "dataset_" + uuid.NewString()[:8],
		Status:    meta.ProcessingStatusPending,
		Config:    preprocess.DefaultOptions(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(job)
	}
	if err := f.DB.Create(job).Error; err != nil {
		panic(fmt.Sprintf("写入测试作业失败: %v", err))
	}
	return job
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求，body为nil时不带请求体
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// DecodeJSON 解码响应体
func (h *HTTPTestHelper) DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}
