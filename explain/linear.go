package explain

import (
	"context"
	"fmt"

	"github.com/rushteam/churnkit/core"
)

// LinearExplainer 线性模型的精确归因：φ_i = w_i · (x_i − baseline_i)。
// baseline 通常取训练集特征均值。返回 class_pair 形态：[负类 = −φ, 正类 = φ]。
type LinearExplainer struct {
	Weights  map[string]float64
	Baseline map[string]float64
}

// NewLinearExplainer 创建线性解释器
func NewLinearExplainer(weights, baseline map[string]float64) *LinearExplainer {
	return &LinearExplainer{Weights: weights, Baseline: baseline}
}

func (e *LinearExplainer) Name() string { return "linear" }

func (e *LinearExplainer) Attribute(ctx context.Context, row *core.FeatureTable) (core.Attribution, error) {
	if len(e.Weights) == 0 {
		return core.Attribution{}, fmt.Errorf("linear explainer: no weights")
	}
	pos := make([][]float64, row.NumRows())
	neg := make([][]float64, row.NumRows())
	for i, r := range row.Rows {
		pos[i] = make([]float64, len(r))
		neg[i] = make([]float64, len(r))
		for j, c := range row.Columns {
			phi := e.Weights[c] * (r[j] - e.Baseline[c])
			pos[i][j] = phi
			neg[i][j] = -phi
		}
	}
	return core.NewClassPairAttribution(neg, pos), nil
}
