/*
 * @module service/preprocess/fit_artifact
 * @description 拟合产物，持久化填充值、缩放参数、编码映射等，供预测阶段重放
 * @architecture DDD领域驱动设计 - 可序列化值对象（带版本）
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 阶段拟合 -> FitArtifact -> JSON/msgpack持久化 -> Replay
 * @rules 产物与运行时对象解耦，Version不匹配时拒绝解码
 * @dependencies github.com/vmihailenco/msgpack/v5
 * @refs service/preprocess/replay.go
 */

package preprocess

import (
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"processor-service/service/dataset"
)

// ArtifactSchemaVersion 当前产物结构版本
const ArtifactSchemaVersion = 1

// ArtifactKind 产物类型
type ArtifactKind string

const (
	ArtifactImputer          ArtifactKind = "imputer"
	ArtifactColumnDrop       ArtifactKind = "column_drop"
	ArtifactOutlierBounds    ArtifactKind = "outlier_bounds"
	ArtifactScaler           ArtifactKind = "scaler"
	ArtifactOneHot           ArtifactKind = "one_hot"
	ArtifactTargetEncoder    ArtifactKind = "target_encoder"
	ArtifactLabelEncoder     ArtifactKind = "label_encoder"
	ArtifactFeatureSelection ArtifactKind = "feature_selection"
)

// ImputerParams 填充参数，Value用于数值类列，Text用于分类列
type ImputerParams struct {
	Strategy   ImputationStrategy `json:"strategy" msgpack:"strategy"`
	ColumnType dataset.ColumnType `json:"column_type" msgpack:"column_type"`
	Value      float64            `json:"value" msgpack:"value"`
	Text       string             `json:"text,omitempty" msgpack:"text,omitempty"`
}

// ColumnDropParams 删除列参数
type ColumnDropParams struct {
	Reason       string  `json:"reason" msgpack:"reason"`
	MissingRatio float64 `json:"missing_ratio" msgpack:"missing_ratio"`
}

// BoundsParams 异常值边界
type BoundsParams struct {
	Method    OutlierMethod    `json:"method" msgpack:"method"`
	Treatment OutlierTreatment `json:"treatment" msgpack:"treatment"`
	Lower     float64          `json:"lower" msgpack:"lower"`
	Upper     float64          `json:"upper" msgpack:"upper"`
	Median    float64          `json:"median" msgpack:"median"`
}

// ScalerParams 缩放参数
type ScalerParams struct {
	Method     ScalingMethod `json:"method" msgpack:"method"`
	Mean       float64       `json:"mean,omitempty" msgpack:"mean,omitempty"`
	Std        float64       `json:"std,omitempty" msgpack:"std,omitempty"`
	Min        float64       `json:"min,omitempty" msgpack:"min,omitempty"`
	Max        float64       `json:"max,omitempty" msgpack:"max,omitempty"`
	Median     float64       `json:"median,omitempty" msgpack:"median,omitempty"`
	IQR        float64       `json:"iqr,omitempty" msgpack:"iqr,omitempty"`
	FeatureMin float64       `json:"feature_min,omitempty" msgpack:"feature_min,omitempty"`
	FeatureMax float64       `json:"feature_max,omitempty" msgpack:"feature_max,omitempty"`
}

// Apply 对单个值应用缩放，拟合与重放共用此函数
func (p ScalerParams) Apply(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	switch p.Method {
	case ScaleStandard:
		return (v - p.Mean) / p.Std
	case ScaleMinMax:
		span := p.Max - p.Min
		if span == 0 {
			return p.FeatureMin
		}
		return p.FeatureMin + (v-p.Min)/span*(p.FeatureMax-p.FeatureMin)
	case ScaleRobust:
		return (v - p.Median) / p.IQR
	default:
		return v
	}
}

// OneHotParams 独热编码映射，Columns与Categories一一对应
type OneHotParams struct {
	Categories []string `json:"categories" msgpack:"categories"`
	Columns    []string `json:"columns" msgpack:"columns"`
}

// TargetEncoderParams 目标编码参数
// FullMeans为全量数据上的平滑均值，用于预测阶段；FoldMeans为各折训练集上的平滑均值，
// 与Folds/Seed/Rows一起可复现训练阶段的折外编码结果
type TargetEncoderParams struct {
	Categories []string    `json:"categories" msgpack:"categories"`
	FullMeans  []float64   `json:"full_means" msgpack:"full_means"`
	FoldMeans  [][]float64 `json:"fold_means" msgpack:"fold_means"`
	GlobalMean float64     `json:"global_mean" msgpack:"global_mean"`
	Smoothing  float64     `json:"smoothing" msgpack:"smoothing"`
	Folds      int         `json:"folds" msgpack:"folds"`
	Seed       int64       `json:"seed" msgpack:"seed"`
	Rows       int         `json:"rows" msgpack:"rows"`
}

// Lookup 返回类别在全量数据上的编码值，未见类别返回全局均值
func (p TargetEncoderParams) Lookup(category string) float64 {
	for i, c := range p.Categories {
		if c == category {
			return p.FullMeans[i]
		}
	}
	return p.GlobalMean
}

// LabelEncoderParams 标签编码映射，编码值为类别下标，未见类别为-1
type LabelEncoderParams struct {
	Categories []string `json:"categories" msgpack:"categories"`
}

// Code 返回类别编码
func (p LabelEncoderParams) Code(category string) float64 {
	for i, c := range p.Categories {
		if c == category {
			return float64(i)
		}
	}
	return -1
}

// FeatureScore 单个特征（或独热分组）的评分
type FeatureScore struct {
	Feature string   `json:"feature" msgpack:"feature"`
	Members []string `json:"members,omitempty" msgpack:"members,omitempty"`
	Score   float64  `json:"score" msgpack:"score"`
	Rank    int      `json:"rank" msgpack:"rank"`
	Kept    bool     `json:"kept" msgpack:"kept"`
	Reason  string   `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// SelectionParams 特征选择结果
type SelectionParams struct {
	Method  SelectionMethod `json:"method" msgpack:"method"`
	Kept    []string        `json:"kept" msgpack:"kept"`
	Dropped []string        `json:"dropped" msgpack:"dropped"`
	Scores  []FeatureScore  `json:"scores" msgpack:"scores"`
}

// FitArtifact 带版本的拟合产物，按Kind只填充对应参数
type FitArtifact struct {
	Version   int                  `json:"version" msgpack:"version"`
	Kind      ArtifactKind         `json:"kind" msgpack:"kind"`
	Column    string               `json:"column" msgpack:"column"`
	Imputer   *ImputerParams       `json:"imputer,omitempty" msgpack:"imputer,omitempty"`
	Drop      *ColumnDropParams    `json:"drop,omitempty" msgpack:"drop,omitempty"`
	Bounds    *BoundsParams        `json:"bounds,omitempty" msgpack:"bounds,omitempty"`
	Scaler    *ScalerParams        `json:"scaler,omitempty" msgpack:"scaler,omitempty"`
	OneHot    *OneHotParams        `json:"one_hot,omitempty" msgpack:"one_hot,omitempty"`
	Target    *TargetEncoderParams `json:"target,omitempty" msgpack:"target,omitempty"`
	Label     *LabelEncoderParams  `json:"label,omitempty" msgpack:"label,omitempty"`
	Selection *SelectionParams     `json:"selection,omitempty" msgpack:"selection,omitempty"`
}

func newArtifact(kind ArtifactKind, column string) *FitArtifact {
	return &FitArtifact{Version: ArtifactSchemaVersion, Kind: kind, Column: column}
}

// Check 校验版本与参数完整性
func (a FitArtifact) Check() error {
	if a.Version != ArtifactSchemaVersion {
		return fmt.Errorf("不支持的产物版本 %d", a.Version)
	}
	var ok bool
	switch a.Kind {
	case ArtifactImputer:
		ok = a.Imputer != nil
	case ArtifactColumnDrop:
		ok = a.Drop != nil
	case ArtifactOutlierBounds:
		ok = a.Bounds != nil
	case ArtifactScaler:
		ok = a.Scaler != nil
	case ArtifactOneHot:
		ok = a.OneHot != nil && len(a.OneHot.Categories) == len(a.OneHot.Columns)
	case ArtifactTargetEncoder:
		ok = a.Target != nil && len(a.Target.Categories) == len(a.Target.FullMeans)
	case ArtifactLabelEncoder:
		ok = a.Label != nil
	case ArtifactFeatureSelection:
		ok = a.Selection != nil
	default:
		return fmt.Errorf("未知的产物类型 %q", a.Kind)
	}
	if !ok {
		return fmt.Errorf("产物 %s(%s) 缺少参数", a.Kind, a.Column)
	}
	return nil
}

// artifactWire 与FitArtifact字段相同但不带编码方法，避免msgpack回调MarshalBinary
type artifactWire FitArtifact

// MarshalBinary 以msgpack编码
func (a FitArtifact) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(artifactWire(a))
}

// UnmarshalBinary 从msgpack解码并校验版本
func (a *FitArtifact) UnmarshalBinary(data []byte) error {
	var decoded FitArtifact
	if err := msgpack.Unmarshal(data, (*artifactWire)(&decoded)); err != nil {
		return fmt.Errorf("解码拟合产物失败: %w", err)
	}
	if err := decoded.Check(); err != nil {
		return err
	}
	*a = decoded
	return nil
}

// EncodeArtifacts 将一组产物编码为msgpack
func EncodeArtifacts(artifacts []FitArtifact) ([]byte, error) {
	wire := make([]artifactWire, len(artifacts))
	for i, a := range artifacts {
		wire[i] = artifactWire(a)
	}
	return msgpack.Marshal(wire)
}

// DecodeArtifacts 解码一组产物并逐个校验
func DecodeArtifacts(data []byte) ([]FitArtifact, error) {
	var wire []artifactWire
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("解码拟合产物失败: %w", err)
	}
	artifacts := make([]FitArtifact, len(wire))
	for i, w := range wire {
		a := FitArtifact(w)
		if err := a.Check(); err != nil {
			return nil, err
		}
		artifacts[i] = a
	}
	return artifacts, nil
}
