/*
 * @module service/store/dataset_store
 * @description 基于本地目录的数据集存储，读取上传的CSV并写出处理结果
 * @architecture 分层架构 - 仓储层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 按数据集ID读取上传文件 -> 校验大小与行数 -> 解析；作业完成后写出处理结果
 * @rules 数据集ID只允许字母数字、下划线、短横线和点；超过大小或行数限制时拒绝加载
 * @dependencies processor-service/service/dataset
 * @refs service/processing/processing_service.go
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"processor-service/service/dataset"
)

var (
	// ErrDatasetNotFound 数据集不存在
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrDatasetTooLarge 数据集超过大小或行数限制
	ErrDatasetTooLarge = errors.New("dataset exceeds size limit")
	// ErrInvalidDatasetID 数据集ID非法
	ErrInvalidDatasetID = errors.New("invalid dataset id")
)

var datasetIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// 输出文件后缀
const (
	ProcessedSuffix = "_processed.csv"
	OriginalSuffix  = "_original.csv"
)

// FileDatasetStore 本地目录数据集存储
type FileDatasetStore struct {
	UploadDir    string
	ProcessedDir string
	MaxBytes     int64 // 0表示不限制
	MaxRows      int   // 0表示不限制
}

// NewFileDatasetStore 创建数据集存储
func NewFileDatasetStore(uploadDir, processedDir string, maxBytes int64, maxRows int) *FileDatasetStore {
	return &FileDatasetStore{UploadDir: uploadDir, ProcessedDir: processedDir, MaxBytes: maxBytes, MaxRows: maxRows}
}

// ValidateDatasetID 校验数据集ID
func ValidateDatasetID(id string) error {
	if !datasetIDPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidDatasetID, id)
	}
	return nil
}

// Load 读取上传的数据集
func (s *FileDatasetStore) Load(ctx context.Context, id string) (*dataset.Dataset, error) {
	if err := ValidateDatasetID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.UploadDir, id+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
		}
		return nil, fmt.Errorf("打开数据集文件失败: %w", err)
	}
	defer f.Close()

	if s.MaxBytes > 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("读取数据集文件信息失败: %w", err)
		}
		if info.Size() > s.MaxBytes {
			return nil, fmt.Errorf("%w: %d 字节超过上限 %d", ErrDatasetTooLarge, info.Size(), s.MaxBytes)
		}
	}
	ds, err := dataset.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("解析数据集 %s 失败: %w", id, err)
	}
	if s.MaxRows > 0 && ds.NumRows() > s.MaxRows {
		return nil, fmt.Errorf("%w: %d 行超过上限 %d", ErrDatasetTooLarge, ds.NumRows(), s.MaxRows)
	}
	return ds, nil
}

// SaveProcessed 写出处理结果与特征工程前的快照
func (s *FileDatasetStore) SaveProcessed(ctx context.Context, id string, chosen, original *dataset.Dataset) error {
	if err := ValidateDatasetID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(s.ProcessedDir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := writeCSVFile(filepath.Join(s.ProcessedDir, id+ProcessedSuffix), chosen); err != nil {
		return err
	}
	if original == nil {
		return nil
	}
	return writeCSVFile(filepath.Join(s.ProcessedDir, id+OriginalSuffix), original)
}

// ProcessedPath 返回处理结果文件路径
func (s *FileDatasetStore) ProcessedPath(id string) string {
	return filepath.Join(s.ProcessedDir, id+ProcessedSuffix)
}

// writeCSVFile 先写临时文件再重命名
func writeCSVFile(path string, ds *dataset.Dataset) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := dataset.WriteCSV(tmp, ds); err != nil {
		tmp.Close()
		return fmt.Errorf("写出数据集失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写出数据集失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("写出数据集失败: %w", err)
	}
	return nil
}
