package train

import (
	"context"
	"fmt"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/model"
)

// LRConfig 逻辑回归训练参数
type LRConfig struct {
	Epochs       int     `mapstructure:"epochs"`
	LearningRate float64 `mapstructure:"learning_rate"`
	L2           float64 `mapstructure:"l2"`
}

// FitLogistic 全量梯度下降训练逻辑回归（权重初始为 0，结果确定）。
// x 必须是已对齐、已填充的表。
func FitLogistic(ctx context.Context, x *core.FeatureTable, y []int, cfg LRConfig) (*model.LRModel, error) {
	n, d := x.NumRows(), x.NumColumns()
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("fit logistic: %d rows, %d labels", n, len(y))
	}
	if cfg.Epochs <= 0 || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("fit logistic: epochs and learning rate must be positive")
	}

	w := make([]float64, d)
	b := 0.0
	grad := make([]float64, d)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := range grad {
			grad[j] = 0
		}
		gb := 0.0
		for i, row := range x.Rows {
			z := b
			for j, v := range row {
				z += w[j] * v
			}
			diff := model.Sigmoid(z) - float64(y[i])
			gb += diff
			for j, v := range row {
				grad[j] += diff * v
			}
		}
		inv := 1 / float64(n)
		for j := range w {
			w[j] -= cfg.LearningRate * (grad[j]*inv + cfg.L2*w[j])
		}
		b -= cfg.LearningRate * gb * inv
	}

	weights := make(map[string]float64, d)
	for j, c := range x.Columns {
		weights[c] = w[j]
	}
	return &model.LRModel{Bias: b, Weights: weights, Threshold: model.DefaultThreshold}, nil
}
