/*
 * @module service/preprocess/replay
 * @description 在新数据上重放已完成作业的拟合产物（预测阶段使用）
 * @architecture 流水线重放
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 新数据集 + FitArtifact序列 -> 按顺序重放 -> 与训练数据同构的数据集
 * @rules 重放不删除行：drop_row填充回退值，remove异常值处理在预测阶段不生效；
 *        未见类别：独热编码映射为全零，目标编码映射为全局均值，标签编码映射为-1
 * @dependencies processor-service/service/dataset
 * @refs service/preprocess/fit_artifact.go
 */

package preprocess

import (
	"fmt"
	"math"

	"processor-service/service/dataset"
)

// Replay 按顺序在ds上重放拟合产物
func Replay(ds *dataset.Dataset, artifacts []FitArtifact) (*dataset.Dataset, error) {
	out := ds
	for _, a := range artifacts {
		if err := a.Check(); err != nil {
			return nil, err
		}
		if a.Kind == ArtifactFeatureSelection {
			out = out.Drop(a.Selection.Dropped...)
			continue
		}
		if a.Kind == ArtifactColumnDrop {
			out = out.Drop(a.Column)
			continue
		}

		col, ok := out.Column(a.Column)
		if !ok {
			return nil, fmt.Errorf("重放 %s 失败: %w: %s", a.Kind, dataset.ErrColumnNotFound, a.Column)
		}
		replacement, err := replayColumn(col, a)
		if err != nil {
			return nil, fmt.Errorf("重放 %s(%s) 失败: %w", a.Kind, a.Column, err)
		}
		if out, err = out.Replace(a.Column, replacement...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func replayColumn(col *dataset.Column, a FitArtifact) ([]*dataset.Column, error) {
	switch a.Kind {
	case ArtifactImputer:
		col, err := coerce(col, a.Imputer.ColumnType)
		if err != nil {
			return nil, err
		}
		if col.Type() == dataset.TypeCategorical {
			return []*dataset.Column{fillTexts(col, a.Imputer.Text)}, nil
		}
		return []*dataset.Column{fillFloats(col, a.Imputer.Value)}, nil

	case ArtifactOutlierBounds:
		col, err := coerce(col, dataset.TypeNumeric)
		if err != nil {
			return nil, err
		}
		b := a.Bounds
		if b.Treatment == TreatRemove {
			return []*dataset.Column{col}, nil
		}
		values := col.Floats()
		for i, v := range values {
			if math.IsNaN(v) || (v >= b.Lower && v <= b.Upper) {
				continue
			}
			if b.Treatment == TreatMedian {
				values[i] = b.Median
			} else {
				values[i] = clamp(v, b.Lower, b.Upper)
			}
		}
		return []*dataset.Column{col.WithFloats(values)}, nil

	case ArtifactScaler:
		col, err := coerce(col, dataset.TypeNumeric)
		if err != nil {
			return nil, err
		}
		return []*dataset.Column{ScaleColumn(col, *a.Scaler)}, nil

	case ArtifactOneHot:
		col, _ := coerce(col, dataset.TypeCategorical)
		p := a.OneHot
		generated := make([]*dataset.Column, len(p.Categories))
		for k, category := range p.Categories {
			values := make([]float64, col.Len())
			for i := range values {
				switch {
				case col.IsMissing(i):
					values[i] = math.NaN()
				case col.Text(i) == category:
					values[i] = 1
				}
			}
			generated[k] = dataset.NewBooleanColumn(p.Columns[k], values)
		}
		return generated, nil

	case ArtifactTargetEncoder, ArtifactLabelEncoder:
		col, _ := coerce(col, dataset.TypeCategorical)
		values := make([]float64, col.Len())
		for i := range values {
			switch {
			case col.IsMissing(i):
				values[i] = math.NaN()
			case a.Kind == ArtifactTargetEncoder:
				values[i] = a.Target.Lookup(col.Text(i))
			default:
				values[i] = a.Label.Code(col.Text(i))
			}
		}
		return []*dataset.Column{dataset.NewNumericColumn(col.Name(), values)}, nil
	}
	return nil, fmt.Errorf("未知的产物类型 %q", a.Kind)
}

// coerce 新数据的推断类型可能与训练时不同，按训练时类型重新解释
func coerce(col *dataset.Column, want dataset.ColumnType) (*dataset.Column, error) {
	if col.Type() == want {
		return col, nil
	}
	switch want {
	case dataset.TypeCategorical:
		return dataset.NewCategoricalColumn(col.Name(), col.Texts()), nil
	case dataset.TypeBoolean:
		if col.Type() == dataset.TypeNumeric {
			return dataset.NewBooleanColumn(col.Name(), col.Floats()), nil
		}
	case dataset.TypeNumeric:
		if col.IsNumeric() {
			return dataset.NewNumericColumn(col.Name(), col.Floats()), nil
		}
	}
	inferred := dataset.InferColumn(col.Name(), col.Texts())
	if inferred.Type() == want || (want == dataset.TypeNumeric && inferred.IsNumeric()) {
		return inferred, nil
	}
	return nil, fmt.Errorf("%w: 列 %s 为 %s，期望 %s", ErrUnsupportedColumnType, col.Name(), col.Type(), want)
}
