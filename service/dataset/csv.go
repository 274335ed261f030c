/*
 * @module service/dataset/csv
 * @description CSV读写与列类型推断
 * @architecture 适配器模式 - 外部文件格式与数据集模型转换
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow CSV读取 -> 缺失标记识别 -> 类型推断 -> 数据集构造
 * @rules 缺失标记统一识别，列名做Unicode规范化，类型推断只看非缺失值
 * @dependencies encoding/csv, github.com/spf13/cast, golang.org/x/text/unicode/norm
 * @refs service/store/dataset_store.go
 */

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"
)

var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// IsMissingToken 判断原始文本是否表示缺失值
func IsMissingToken(raw string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(raw))]
}

// ReadCSV 读取带表头的CSV并推断列类型
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取CSV失败: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV为空")
	}

	headers := normalizeHeaders(records[0])
	rows := records[1:]
	cols := make([]*Column, len(headers))
	for j, name := range headers {
		raw := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				raw[i] = row[j]
			}
		}
		cols[j] = InferColumn(name, raw)
	}
	return New(cols...)
}

// InferColumn 根据原始文本推断列类型并构造列
// 推断顺序：布尔 -> 数值 -> 时间 -> 分类
func InferColumn(name string, raw []string) *Column {
	present := 0
	isBool, isNumeric, isTime := true, true, true
	for _, v := range raw {
		if IsMissingToken(v) {
			continue
		}
		present++
		s := strings.TrimSpace(v)
		if isBool {
			if _, ok := parseBool(s); !ok {
				isBool = false
			}
		}
		if isNumeric {
			if _, err := cast.ToFloat64E(s); err != nil {
				isNumeric = false
			}
		}
		if isTime {
			if _, ok := parseTime(s); !ok {
				isTime = false
			}
		}
	}

	switch {
	case present == 0:
		values := make([]float64, len(raw))
		for i := range values {
			values[i] = math.NaN()
		}
		return NewNumericColumn(name, values)
	case isBool:
		values := make([]float64, len(raw))
		for i, v := range raw {
			values[i] = math.NaN()
			if b, ok := parseBool(strings.TrimSpace(v)); ok && !IsMissingToken(v) {
				values[i] = b
			}
		}
		return NewBooleanColumn(name, values)
	case isNumeric:
		values := make([]float64, len(raw))
		for i, v := range raw {
			values[i] = math.NaN()
			if !IsMissingToken(v) {
				values[i] = cast.ToFloat64(strings.TrimSpace(v))
			}
		}
		return NewNumericColumn(name, values)
	case isTime:
		values := make([]time.Time, len(raw))
		for i, v := range raw {
			if !IsMissingToken(v) {
				values[i], _ = parseTime(strings.TrimSpace(v))
			}
		}
		return NewDatetimeColumn(name, values)
	default:
		values := make([]string, len(raw))
		for i, v := range raw {
			if !IsMissingToken(v) {
				values[i] = strings.TrimSpace(v)
			}
		}
		return NewCategoricalColumn(name, values)
	}
}

// WriteCSV 以CSV格式写出数据集，缺失值写为空
func WriteCSV(w io.Writer, d *Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(d.Names()); err != nil {
		return err
	}
	cols := d.Columns()
	row := make([]string, len(cols))
	for i := 0; i < d.NumRows(); i++ {
		for j, col := range cols {
			row[j] = col.Text(i)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := norm.NFC.String(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "" {
			name = "column_" + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 0
		}
		headers[i] = name
	}
	return headers
}

func parseBool(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "true", "yes":
		return 1, true
	case "false", "no":
		return 0, true
	}
	return 0, false
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
