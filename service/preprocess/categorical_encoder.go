/*
 * @module service/preprocess/categorical_encoder
 * @description 分类列编码：独热编码、K折目标编码、标签编码
 * @architecture 流水线阶段组件
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 按基数选择编码 -> 生成数值列 -> 持久化类别映射
 * @rules auto模式下基数不超过MaxCategories用独热编码，否则目标编码；无目标列时退化为标签编码；
 *        目标编码使用K折折外均值，预测阶段未见类别映射到全局均值，独热编码映射为全零
 * @dependencies processor-service/service/mlmodel, processor-service/service/stats
 * @refs service/preprocess/fit_artifact.go
 */

package preprocess

import (
	"fmt"
	"math"
	"sort"

	"processor-service/service/dataset"
	"processor-service/service/mlmodel"
	"processor-service/service/stats"
)

// CategoricalEncoder 分类编码器
type CategoricalEncoder struct {
	Options EncodingOptions
	Target  string
	Ignore  map[string]bool
	Seed    int64
}

// NewCategoricalEncoder 由流水线配置创建编码器
func NewCategoricalEncoder(opts Options) *CategoricalEncoder {
	return &CategoricalEncoder{Options: opts.Encoding, Target: opts.TargetColumn, Ignore: opts.ignoreSet(), Seed: opts.Seed}
}

// Apply 编码全部分类列
func (e *CategoricalEncoder) Apply(ds *dataset.Dataset, profiles Profiles) (*dataset.Dataset, []TransformationRecord, error) {
	var records []TransformationRecord
	out := ds
	target, hasTarget := ds.Column(e.Target)
	if e.Target == "" {
		hasTarget = false
	}

	for _, col := range ds.Columns() {
		name := col.Name()
		if col.Type() != dataset.TypeCategorical || name == e.Target || e.Ignore[name] {
			continue
		}
		method, reason := e.resolve(profiles[name], hasTarget)

		var (
			generated []*dataset.Column
			artifact  *FitArtifact
			kind      string
			params    map[string]any
		)
		switch method {
		case EncodeOneHot:
			generated, artifact = e.oneHot(col, out.Names())
			kind = KindOneHot
			params = map[string]any{"categories": artifact.OneHot.Categories}
		case EncodeTarget:
			var encoded *dataset.Column
			encoded, artifact = e.targetEncode(col, target)
			generated = []*dataset.Column{encoded}
			kind = KindTargetEncode
			params = map[string]any{"folds": artifact.Target.Folds, "smoothing": artifact.Target.Smoothing, "global_mean": artifact.Target.GlobalMean}
		default:
			var encoded *dataset.Column
			encoded, artifact = labelEncode(col)
			generated = []*dataset.Column{encoded}
			kind = KindLabelEncode
			params = map[string]any{"categories": artifact.Label.Categories}
		}
		params["cardinality"] = profiles[name].UniqueCount

		var err error
		if out, err = out.Replace(name, generated...); err != nil {
			return nil, records, NewStageError(KindInternal, StageEncoding, name, params, err)
		}
		columns := []string{name}
		for _, g := range generated {
			if g.Name() != name {
				columns = append(columns, g.Name())
			}
		}
		records = append(records, TransformationRecord{
			Stage:      StageEncoding,
			Kind:       kind,
			Columns:    columns,
			Method:     string(method),
			Params:     params,
			Before:     summarize(col),
			RowsBefore: ds.NumRows(),
			RowsAfter:  out.NumRows(),
			Reason:     reason,
			Artifact:   artifact,
		})
	}
	return out, records, nil
}

// resolve 确定列的编码方法
func (e *CategoricalEncoder) resolve(p ColumnProfile, hasTarget bool) (EncodingMethod, string) {
	method := e.Options.Method
	if method == EncodeAuto || method == "" {
		if p.UniqueCount <= e.Options.MaxCategories {
			return EncodeOneHot, ""
		}
		method = EncodeTarget
	}
	if method == EncodeTarget && !hasTarget {
		return EncodeLabel, fmt.Sprintf("基数 %d 超过上限且没有目标列，改用标签编码", p.UniqueCount)
	}
	return method, ""
}

// oneHot 独热编码，类别按字典序排列，缺失值在所有指示列上保持缺失
func (e *CategoricalEncoder) oneHot(col *dataset.Column, existing []string) ([]*dataset.Column, *FitArtifact) {
	categories := sortedCategories(col)
	taken := make(map[string]bool, len(existing))
	for _, n := range existing {
		if n != col.Name() {
			taken[n] = true
		}
	}

	params := &OneHotParams{Categories: categories, Columns: make([]string, len(categories))}
	generated := make([]*dataset.Column, len(categories))
	for k, category := range categories {
		name := uniqueName(col.Name()+"_"+category, taken)
		taken[name] = true
		params.Columns[k] = name

		values := make([]float64, col.Len())
		for i := range values {
			switch {
			case col.IsMissing(i):
				values[i] = math.NaN()
			case col.Text(i) == category:
				values[i] = 1
			}
		}
		generated[k] = dataset.NewBooleanColumn(name, values)
	}
	artifact := newArtifact(ArtifactOneHot, col.Name())
	artifact.OneHot = params
	return generated, artifact
}

// targetEncode K折折外目标均值编码
func (e *CategoricalEncoder) targetEncode(col, target *dataset.Column) (*dataset.Column, *FitArtifact) {
	y, _ := TargetVector(target)
	n := col.Len()
	categories := sortedCategories(col)
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		index[c] = i
	}
	smoothing := e.Options.Smoothing

	fit := func(rows []int) ([]float64, float64) {
		sums := make([]float64, len(categories))
		counts := make([]float64, len(categories))
		var ys []float64
		for _, r := range rows {
			if col.IsMissing(r) || math.IsNaN(y[r]) {
				continue
			}
			c := index[col.Text(r)]
			sums[c] += y[r]
			counts[c]++
			ys = append(ys, y[r])
		}
		global := stats.Mean(ys)
		means := make([]float64, len(categories))
		for c := range categories {
			if counts[c]+smoothing == 0 {
				means[c] = global
				continue
			}
			means[c] = (sums[c] + smoothing*global) / (counts[c] + smoothing)
		}
		return means, global
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	fullMeans, globalMean := fit(all)

	folds := e.Options.TargetFolds
	if folds > n {
		folds = n
	}
	foldRows := mlmodel.KFold(n, folds, e.Seed)
	foldMeans := make([][]float64, len(foldRows))
	encoded := make([]float64, n)
	for f, valRows := range foldRows {
		means, _ := fit(mlmodel.TrainIndices(foldRows, f))
		foldMeans[f] = means
		for _, r := range valRows {
			if col.IsMissing(r) {
				encoded[r] = math.NaN()
				continue
			}
			encoded[r] = means[index[col.Text(r)]]
		}
	}

	artifact := newArtifact(ArtifactTargetEncoder, col.Name())
	artifact.Target = &TargetEncoderParams{
		Categories: categories,
		FullMeans:  fullMeans,
		FoldMeans:  foldMeans,
		GlobalMean: globalMean,
		Smoothing:  smoothing,
		Folds:      len(foldRows),
		Seed:       e.Seed,
		Rows:       n,
	}
	return dataset.NewNumericColumn(col.Name(), encoded), artifact
}

// labelEncode 标签编码，编码值为字典序下标
func labelEncode(col *dataset.Column) (*dataset.Column, *FitArtifact) {
	params := &LabelEncoderParams{Categories: sortedCategories(col)}
	values := make([]float64, col.Len())
	for i := range values {
		if col.IsMissing(i) {
			values[i] = math.NaN()
			continue
		}
		values[i] = params.Code(col.Text(i))
	}
	artifact := newArtifact(ArtifactLabelEncoder, col.Name())
	artifact.Label = params
	return dataset.NewNumericColumn(col.Name(), values), artifact
}

// DecodeOneHot 由指示向量还原类别，全零返回空字符串
func DecodeOneHot(params *OneHotParams, indicators []float64) string {
	for k, v := range indicators {
		if v == 1 && k < len(params.Categories) {
			return params.Categories[k]
		}
	}
	return ""
}

// DecodeLabel 由编码值还原类别，未见类别返回空字符串
func DecodeLabel(params *LabelEncoderParams, code float64) string {
	i := int(code)
	if code < 0 || i >= len(params.Categories) || float64(i) != code {
		return ""
	}
	return params.Categories[i]
}

func sortedCategories(col *dataset.Column) []string {
	seen := make(map[string]struct{})
	for _, v := range col.PresentTexts() {
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
