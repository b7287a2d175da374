// Package explain 把解释器的原始归因输出转换为按影响力排序的 top-k 解释。
//
// 解释是对预测的增强而不是必需字段：解释过程中的任何失败都会被吸收，
// 返回一个标记为 Degraded 的空解释，并记录日志。
package explain

import (
	"errors"
	"fmt"

	"github.com/rushteam/churnkit/core"
)

// ErrEmptyAttribution 解释器返回了空归因
var ErrEmptyAttribution = errors.New("explain: empty attribution")

// Normalized 归一化后的单行、正类归因向量
type Normalized struct {
	Values   []float64
	Shape    core.AttributionShape
	Fallback bool // 形态无法识别，按首行处理
}

// Normalize 从任一形态中取出第一行、正类的逐特征归因。
//
//   - ShapeClassPair: PerClass[positive][0]
//   - ShapeTensor:    Tensor[0][f][positive]
//   - ShapeMatrix:    Matrix[0]
//   - ShapeUnknown:   Raw[0]，Fallback = true
func Normalize(a core.Attribution, positiveClass int) (Normalized, error) {
	switch a.Shape {
	case core.ShapeClassPair:
		if positiveClass < 0 || positiveClass >= len(a.PerClass) {
			return Normalized{}, fmt.Errorf("explain: class_pair has %d classes, positive class %d", len(a.PerClass), positiveClass)
		}
		rows := a.PerClass[positiveClass]
		if len(rows) == 0 {
			return Normalized{}, ErrEmptyAttribution
		}
		return Normalized{Values: copyFloats(rows[0]), Shape: a.Shape}, nil

	case core.ShapeTensor:
		if len(a.Tensor) == 0 {
			return Normalized{}, ErrEmptyAttribution
		}
		first := a.Tensor[0]
		values := make([]float64, len(first))
		for f, perClass := range first {
			if positiveClass < 0 || positiveClass >= len(perClass) {
				return Normalized{}, fmt.Errorf("explain: tensor feature %d has %d classes, positive class %d", f, len(perClass), positiveClass)
			}
			values[f] = perClass[positiveClass]
		}
		return Normalized{Values: values, Shape: a.Shape}, nil

	case core.ShapeMatrix:
		if len(a.Matrix) == 0 {
			return Normalized{}, ErrEmptyAttribution
		}
		return Normalized{Values: copyFloats(a.Matrix[0]), Shape: a.Shape}, nil

	default:
		if len(a.Raw) == 0 {
			return Normalized{}, ErrEmptyAttribution
		}
		return Normalized{Values: copyFloats(a.Raw[0]), Shape: core.ShapeUnknown, Fallback: true}, nil
	}
}

func copyFloats(v []float64) []float64 {
	return append([]float64(nil), v...)
}
