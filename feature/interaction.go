package feature

import (
	"context"
	"fmt"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/pipeline"
	"github.com/rushteam/churnkit/pkg/conv"
)

// Epsilon 是比值特征分母的统一保护项，保证分母为 0 时结果仍然有限。
const Epsilon = 1e-5

// Ratio 比值特征：Name = Numerator / (Denominator + ε)
type Ratio struct {
	Name        string `json:"name" yaml:"name"`
	Numerator   string `json:"numerator" yaml:"numerator"`
	Denominator string `json:"denominator" yaml:"denominator"`
}

// Sum 求和特征：Name = Σ Columns
type Sum struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// InteractionStage 派生交互特征，原始列保留。任一输入为 NaN 时结果为 NaN。
type InteractionStage struct {
	Epsilon float64
	Ratios  []Ratio
	Sums    []Sum
}

// NewInteractionStage 创建交互特征阶段，epsilon <= 0 时使用 Epsilon
func NewInteractionStage(epsilon float64, ratios []Ratio, sums []Sum) *InteractionStage {
	if epsilon <= 0 {
		epsilon = Epsilon
	}
	return &InteractionStage{Epsilon: epsilon, Ratios: ratios, Sums: sums}
}

// DefaultInteractionStage 使用默认的比值/求和定义
func DefaultInteractionStage() *InteractionStage {
	return NewInteractionStage(Epsilon, DefaultRatios, DefaultSums)
}

func (s *InteractionStage) Name() string       { return "interaction" }
func (s *InteractionStage) Kind() pipeline.Kind { return pipeline.KindInteraction }

// SourceColumns 返回该阶段依赖的源列（去重，按首次出现顺序）
func (s *InteractionStage) SourceColumns() []string {
	seen := make(map[string]struct{})
	var cols []string
	add := func(c string) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	for _, r := range s.Ratios {
		add(r.Numerator)
		add(r.Denominator)
	}
	for _, sum := range s.Sums {
		for _, c := range sum.Columns {
			add(c)
		}
	}
	return cols
}

func (s *InteractionStage) Process(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error) {
	if missing := table.MissingColumns(s.SourceColumns()...); len(missing) > 0 {
		return nil, core.NewMissingColumnError(s.Name(), -1, missing...)
	}

	names := make([]string, 0, len(s.Ratios)+len(s.Sums))
	values := make([][]float64, 0, len(s.Ratios)+len(s.Sums))

	for _, r := range s.Ratios {
		num, _ := table.Column(r.Numerator)
		den, _ := table.Column(r.Denominator)
		out := make([]float64, len(num))
		for i := range num {
			// NaN 在算术中自然传播
			out[i] = num[i] / (den[i] + s.Epsilon)
		}
		names = append(names, r.Name)
		values = append(values, out)
	}

	for _, sum := range s.Sums {
		out := make([]float64, table.NumRows())
		for _, c := range sum.Columns {
			col, _ := table.Column(c)
			for i, v := range col {
				out[i] += v
			}
		}
		names = append(names, sum.Name)
		values = append(values, out)
	}

	return table.WithColumns(names, values), nil
}

func (s *InteractionStage) Export() pipeline.StageConfig {
	ratios := make([]any, len(s.Ratios))
	for i, r := range s.Ratios {
		ratios[i] = map[string]any{"name": r.Name, "numerator": r.Numerator, "denominator": r.Denominator}
	}
	sums := make([]any, len(s.Sums))
	for i, sum := range s.Sums {
		cols := make([]any, len(sum.Columns))
		for j, c := range sum.Columns {
			cols[j] = c
		}
		sums[i] = map[string]any{"name": sum.Name, "columns": cols}
	}
	return pipeline.StageConfig{
		Type: "interaction",
		Config: map[string]interface{}{
			"epsilon": s.Epsilon,
			"ratios":  ratios,
			"sums":    sums,
		},
	}
}

// buildInteractionStage 从配置构建；未配置 ratios/sums 时使用默认定义
func buildInteractionStage(config map[string]interface{}) (pipeline.Stage, error) {
	eps := conv.ConfigGetFloat64(config, "epsilon", Epsilon)

	ratios := DefaultRatios
	if raw, ok := config["ratios"]; ok {
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("interaction: ratios must be a list")
		}
		ratios = make([]Ratio, 0, len(items))
		for i, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("interaction: ratio %d must be an object", i)
			}
			r := Ratio{
				Name:        conv.ConfigGet(m, "name", ""),
				Numerator:   conv.ConfigGet(m, "numerator", ""),
				Denominator: conv.ConfigGet(m, "denominator", ""),
			}
			if r.Name == "" || r.Numerator == "" || r.Denominator == "" {
				return nil, fmt.Errorf("interaction: ratio %d needs name, numerator and denominator", i)
			}
			ratios = append(ratios, r)
		}
	}

	sums := DefaultSums
	if raw, ok := config["sums"]; ok {
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("interaction: sums must be a list")
		}
		sums = make([]Sum, 0, len(items))
		for i, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("interaction: sum %d must be an object", i)
			}
			cols, ok := conv.AnyToStrings(m["columns"])
			name := conv.ConfigGet(m, "name", "")
			if !ok || name == "" || len(cols) == 0 {
				return nil, fmt.Errorf("interaction: sum %d needs name and columns", i)
			}
			sums = append(sums, Sum{Name: name, Columns: cols})
		}
	}

	return NewInteractionStage(eps, ratios, sums), nil
}
