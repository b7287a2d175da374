package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rushteam/churnkit/core"
)

// LRModel 实现了逻辑回归 (Logistic Regression) 二分类器。
//
// 预测原理：
// 1. 线性加权求和: z = Bias + sum(Weight_i * Feature_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// P 是流失（正类）概率；P >= Threshold 判定为流失。
type LRModel struct {
	Bias      float64            `json:"bias"`      // 偏置项 (Bias / Intercept)
	Weights   map[string]float64 `json:"weights"`   // 特征权重 (Weights / Coefficients)
	Threshold float64            `json:"threshold"` // 判定阈值
}

// LoadLRModel 从 model.json 加载
func LoadLRModel(path string) (*LRModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLRModel(data)
}

// ParseLRModel 解析 model.json
func ParseLRModel(data []byte) (*LRModel, error) {
	var m LRModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse lr model: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("parse lr model: no weights")
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		m.Threshold = DefaultThreshold
	}
	return &m, nil
}

// Marshal 序列化为缩进 JSON
func (m *LRModel) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func (m *LRModel) Name() string { return "lr" }

func (m *LRModel) PredictProba(ctx context.Context, table *core.FeatureTable) ([][]float64, error) {
	if err := checkFinite(table); err != nil {
		return nil, err
	}
	weights := make([]float64, table.NumColumns())
	for j, c := range table.Columns {
		weights[j] = m.Weights[c]
	}
	out := make([][]float64, table.NumRows())
	for i, row := range table.Rows {
		z := m.Bias
		for j, v := range row {
			z += weights[j] * v
		}
		p := Sigmoid(z)
		out[i] = []float64{1 - p, p}
	}
	return out, nil
}

func (m *LRModel) Predict(ctx context.Context, table *core.FeatureTable) ([]int, error) {
	proba, err := m.PredictProba(ctx, table)
	if err != nil {
		return nil, err
	}
	return LabelsFromProba(proba, m.Threshold), nil
}
