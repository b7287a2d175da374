// Package model 提供二分类器实现：本地逻辑回归与远程 RPC 模型。
// 所有实现都满足 core.Classifier，输入为已对齐到特征契约的表。
package model

import (
	"fmt"
	"math"

	"github.com/rushteam/churnkit/core"
)

// DefaultThreshold 正类判定阈值（未训练出最优阈值时使用）
const DefaultThreshold = 0.5

// Sigmoid 1 / (1 + e^-z)
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// LabelsFromProba 按正类概率与阈值给出标签：p >= threshold 为 1
func LabelsFromProba(proba [][]float64, threshold float64) []int {
	labels := make([]int, len(proba))
	for i, p := range proba {
		if p[1] >= threshold {
			labels[i] = 1
		}
	}
	return labels
}

// checkFinite 模型输入不允许出现 NaN/Inf（对齐后的表应已完成填充）
func checkFinite(table *core.FeatureTable) error {
	for i, row := range table.Rows {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("model input row %d column %q is not finite", i, table.Columns[j])
			}
		}
	}
	return nil
}
