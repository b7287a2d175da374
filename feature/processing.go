package feature

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/pipeline"
	"github.com/rushteam/churnkit/pkg/conv"
)

// LogStage 偏态修正：对长尾列追加 Log_<name> = log1p(x)
// 公式: x' = log(x + 1)
// x < 0 或 NaN 时结果为 NaN（无定义），留给填充阶段处理。
type LogStage struct {
	Columns []string
	Prefix  string
}

// NewLogStage 创建 log1p 阶段
func NewLogStage(columns []string) *LogStage {
	return &LogStage{Columns: append([]string(nil), columns...), Prefix: LogPrefix}
}

func (s *LogStage) Name() string       { return "log" }
func (s *LogStage) Kind() pipeline.Kind { return pipeline.KindSkew }

func (s *LogStage) Process(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error) {
	if missing := table.MissingColumns(s.Columns...); len(missing) > 0 {
		return nil, core.NewMissingColumnError(s.Name(), -1, missing...)
	}
	names := make([]string, len(s.Columns))
	values := make([][]float64, len(s.Columns))
	for k, c := range s.Columns {
		col, _ := table.Column(c)
		for i, v := range col {
			col[i] = Log1p(v)
		}
		names[k] = s.Prefix + c
		values[k] = col
	}
	return table.WithColumns(names, values), nil
}

// Log1p 变换单个值
func Log1p(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return math.NaN()
	}
	return math.Log1p(v)
}

func (s *LogStage) Export() pipeline.StageConfig {
	return pipeline.StageConfig{
		Type: "log",
		Config: map[string]interface{}{
			"columns": stringsToAny(s.Columns),
			"prefix":  s.Prefix,
		},
	}
}

func buildLogStage(config map[string]interface{}) (pipeline.Stage, error) {
	cols := SkewedColumns
	if raw, ok := config["columns"]; ok {
		var valid bool
		if cols, valid = conv.AnyToStrings(raw); !valid {
			return nil, fmt.Errorf("log: columns must be a list of strings")
		}
	}
	s := NewLogStage(cols)
	s.Prefix = conv.ConfigGet(config, "prefix", LogPrefix)
	return s, nil
}

// BinStage 自定义边界分桶，区间右闭：(e0,e1] -> 0，(e1,e2] -> 1 ...
// 落在所有区间之外（含恰好等于 e0）或 NaN 的值记为 NaN（未分桶）。
type BinStage struct {
	Column string
	Output string
	Edges  []float64 // 升序
}

// NewBinStage 创建分桶阶段，边界会被排序
func NewBinStage(column, output string, edges []float64) (*BinStage, error) {
	if len(edges) < 2 {
		return nil, fmt.Errorf("bin: need at least 2 edges, got %d", len(edges))
	}
	sorted := make([]float64, len(edges))
	copy(sorted, edges)
	sort.Float64s(sorted)
	return &BinStage{Column: column, Output: output, Edges: sorted}, nil
}

// DefaultAgeBinStage Age -> Age_Bin
func DefaultAgeBinStage() *BinStage {
	s, _ := NewBinStage(ColAge, ColAgeBin, AgeBinEdges)
	return s
}

func (s *BinStage) Name() string       { return "bin" }
func (s *BinStage) Kind() pipeline.Kind { return pipeline.KindBin }

// BinValue 返回 value 所在的桶号
func (s *BinStage) BinValue(value float64) float64 {
	if math.IsNaN(value) || value <= s.Edges[0] || value > s.Edges[len(s.Edges)-1] {
		return math.NaN()
	}
	// 第一个 >= value 的右边界
	idx := sort.SearchFloat64s(s.Edges, value)
	return float64(idx - 1)
}

func (s *BinStage) Process(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error) {
	col, ok := table.Column(s.Column)
	if !ok {
		return nil, core.NewMissingColumnError(s.Name(), -1, s.Column)
	}
	for i, v := range col {
		col[i] = s.BinValue(v)
	}
	return table.WithColumns([]string{s.Output}, [][]float64{col}), nil
}

func (s *BinStage) Export() pipeline.StageConfig {
	edges := make([]any, len(s.Edges))
	for i, e := range s.Edges {
		edges[i] = e
	}
	return pipeline.StageConfig{
		Type: "bin",
		Config: map[string]interface{}{
			"column": s.Column,
			"output": s.Output,
			"edges":  edges,
		},
	}
}

func buildBinStage(config map[string]interface{}) (pipeline.Stage, error) {
	edges := AgeBinEdges
	if raw, ok := config["edges"]; ok {
		var valid bool
		if edges, valid = conv.AnyToFloats(raw); !valid {
			return nil, fmt.Errorf("bin: edges must be a list of numbers")
		}
	}
	return NewBinStage(
		conv.ConfigGet(config, "column", ColAge),
		conv.ConfigGet(config, "output", ColAgeBin),
		edges,
	)
}

// ImputeStage 缺失值填充（均值策略）。
// 训练时 Fit 计算每列均值并冻结；推理时只使用冻结的均值。
// 没有拟合均值的列用 Fill 填充。非有限值（NaN、±Inf）都视为缺失。
type ImputeStage struct {
	Means  map[string]float64
	Fill   float64
	fitted bool
}

// NewImputeStage 创建未拟合的填充阶段
func NewImputeStage() *ImputeStage {
	return &ImputeStage{}
}

// NewFittedImputeStage 用已知均值创建已拟合的填充阶段
func NewFittedImputeStage(means map[string]float64, fill float64) *ImputeStage {
	m := make(map[string]float64, len(means))
	for k, v := range means {
		m[k] = v
	}
	return &ImputeStage{Means: m, Fill: fill, fitted: true}
}

func (s *ImputeStage) Name() string       { return "impute" }
func (s *ImputeStage) Kind() pipeline.Kind { return pipeline.KindImpute }
func (s *ImputeStage) Fitted() bool        { return s.fitted }

func (s *ImputeStage) Fit(ctx context.Context, table *core.FeatureTable) (pipeline.Stage, error) {
	means := make(map[string]float64, table.NumColumns())
	for _, c := range table.Columns {
		col, _ := table.Column(c)
		observed := finiteValues(col)
		if len(observed) == 0 {
			continue
		}
		means[c] = ComputeStatistics(observed).Mean
	}
	return NewFittedImputeStage(means, s.Fill), nil
}

func (s *ImputeStage) Process(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error) {
	out := table.Clone()
	for j, c := range out.Columns {
		fill, ok := s.Means[c]
		if !ok {
			fill = s.Fill
		}
		for _, row := range out.Rows {
			if isMissing(row[j]) {
				row[j] = fill
			}
		}
	}
	return out, nil
}

func (s *ImputeStage) Export() pipeline.StageConfig {
	cfg := map[string]interface{}{
		"strategy": "mean",
		"fill":     s.Fill,
	}
	if s.fitted {
		cfg["means"] = floatMapToAny(s.Means)
	}
	return pipeline.StageConfig{Type: "impute", Config: cfg}
}

func buildImputeStage(config map[string]interface{}) (pipeline.Stage, error) {
	if strategy := conv.ConfigGet(config, "strategy", "mean"); strategy != "mean" {
		return nil, fmt.Errorf("impute: unsupported strategy %q", strategy)
	}
	fill := conv.ConfigGetFloat64(config, "fill", 0)
	raw, ok := config["means"]
	if !ok {
		s := NewImputeStage()
		s.Fill = fill
		return s, nil
	}
	means, ok := conv.AnyToFloatMap(raw)
	if !ok {
		return nil, fmt.Errorf("impute: means must be a map of numbers")
	}
	return NewFittedImputeStage(means, fill), nil
}

// 缩放方法
const (
	ScalingStandard = "standard" // z = (x - μ) / σ
	ScalingMinMax   = "minmax"   // x' = (x - min) / (max - min)
	ScalingNone     = "none"
)

// ScalerParams 单列缩放参数
type ScalerParams struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Apply 按方法缩放单个值。σ 或 (max-min) 为 0 时分母取 1。
func (p ScalerParams) Apply(method string, v float64) float64 {
	switch method {
	case ScalingStandard:
		scale := p.Std
		if scale == 0 {
			scale = 1
		}
		return (v - p.Mean) / scale
	case ScalingMinMax:
		scale := p.Max - p.Min
		if scale == 0 {
			scale = 1
		}
		return (v - p.Min) / scale
	default:
		return v
	}
}

// ScaleStage 特征缩放。训练时 Fit 冻结参数，推理时只使用冻结参数；没有参数的列保持不变。
type ScaleStage struct {
	Method string
	Params map[string]ScalerParams
	fitted bool
}

// NewScaleStage 创建未拟合的缩放阶段；method 为 none 时视为已拟合（恒等变换）
func NewScaleStage(method string) (*ScaleStage, error) {
	switch method {
	case ScalingStandard, ScalingMinMax:
		return &ScaleStage{Method: method}, nil
	case ScalingNone, "":
		return &ScaleStage{Method: ScalingNone, Params: map[string]ScalerParams{}, fitted: true}, nil
	default:
		return nil, fmt.Errorf("scale: unsupported method %q (supported: standard, minmax, none)", method)
	}
}

// NewFittedScaleStage 用已知参数创建已拟合的缩放阶段
func NewFittedScaleStage(method string, params map[string]ScalerParams) (*ScaleStage, error) {
	s, err := NewScaleStage(method)
	if err != nil {
		return nil, err
	}
	s.Params = make(map[string]ScalerParams, len(params))
	for k, v := range params {
		s.Params[k] = v
	}
	s.fitted = true
	return s, nil
}

func (s *ScaleStage) Name() string       { return "scale" }
func (s *ScaleStage) Kind() pipeline.Kind { return pipeline.KindScale }
func (s *ScaleStage) Fitted() bool        { return s.fitted }

func (s *ScaleStage) Fit(ctx context.Context, table *core.FeatureTable) (pipeline.Stage, error) {
	params := make(map[string]ScalerParams, table.NumColumns())
	if s.Method != ScalingNone {
		for _, c := range table.Columns {
			col, _ := table.Column(c)
			observed := finiteValues(col)
			if len(observed) == 0 {
				continue
			}
			st := ComputeStatistics(observed)
			params[c] = ScalerParams{Mean: st.Mean, Std: st.Std, Min: st.Min, Max: st.Max}
		}
	}
	return NewFittedScaleStage(s.Method, params)
}

func (s *ScaleStage) Process(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error) {
	if s.Method == ScalingNone {
		return table.Clone(), nil
	}
	out := table.Clone()
	for j, c := range out.Columns {
		p, ok := s.Params[c]
		if !ok {
			continue
		}
		for _, row := range out.Rows {
			row[j] = p.Apply(s.Method, row[j])
		}
	}
	return out, nil
}

func (s *ScaleStage) Export() pipeline.StageConfig {
	cfg := map[string]interface{}{"method": s.Method}
	if s.fitted && s.Method != ScalingNone {
		params := make(map[string]any, len(s.Params))
		for k, p := range s.Params {
			params[k] = map[string]any{"mean": p.Mean, "std": p.Std, "min": p.Min, "max": p.Max}
		}
		cfg["params"] = params
	}
	return pipeline.StageConfig{Type: "scale", Config: cfg}
}

func buildScaleStage(config map[string]interface{}) (pipeline.Stage, error) {
	method := conv.ConfigGet(config, "method", ScalingStandard)
	raw, ok := config["params"]
	if !ok {
		return NewScaleStage(method)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("scale: params must be an object")
	}
	params := make(map[string]ScalerParams, len(m))
	for col, v := range m {
		pm, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("scale: params for %q must be an object", col)
		}
		params[col] = ScalerParams{
			Mean: conv.ConfigGetFloat64(pm, "mean", 0),
			Std:  conv.ConfigGetFloat64(pm, "std", 1),
			Min:  conv.ConfigGetFloat64(pm, "min", 0),
			Max:  conv.ConfigGetFloat64(pm, "max", 1),
		}
	}
	return NewFittedScaleStage(method, params)
}

// FeatureStatistics 特征统计信息
type FeatureStatistics struct {
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Median float64
	P25    float64
	P75    float64
	P95    float64
	P99    float64
}

// ComputeStatistics 计算特征统计信息（总体标准差）
func ComputeStatistics(values []float64) *FeatureStatistics {
	if len(values) == 0 {
		return &FeatureStatistics{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats := &FeatureStatistics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	stats.Mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - stats.Mean) * (v - stats.Mean)
	}
	stats.Std = math.Sqrt(variance / float64(len(values)))

	stats.Median = computePercentile(sorted, 0.5)
	stats.P25 = computePercentile(sorted, 0.25)
	stats.P75 = computePercentile(sorted, 0.75)
	stats.P95 = computePercentile(sorted, 0.95)
	stats.P99 = computePercentile(sorted, 0.99)

	return stats
}

// computePercentile 线性插值分位数
func computePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func finiteValues(col []float64) []float64 {
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !isMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

func stringsToAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func floatMapToAny(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
