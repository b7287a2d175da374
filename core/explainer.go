package core

import "context"

// AttributionShape 标记解释器返回值的形态。
// 不同解释器后端返回的归因数组形态不同，统一用带标签的变体承载，
// 由 explain.Normalize 逐个分支处理，调用方不做鸭子类型判断。
type AttributionShape int

const (
	// ShapeUnknown 无法识别的形态，Raw 承载原始行
	ShapeUnknown AttributionShape = iota
	// ShapeMatrix 单个二维数组：rows × features
	ShapeMatrix
	// ShapeClassPair 按类别分组的二维数组：classes × rows × features
	ShapeClassPair
	// ShapeTensor 三维数组：rows × features × classes
	ShapeTensor
)

func (s AttributionShape) String() string {
	switch s {
	case ShapeMatrix:
		return "matrix"
	case ShapeClassPair:
		return "class_pair"
	case ShapeTensor:
		return "tensor"
	default:
		return "unknown"
	}
}

// ParseAttributionShape 解析形态名称，无法识别时返回 ShapeUnknown
func ParseAttributionShape(s string) AttributionShape {
	switch s {
	case "matrix":
		return ShapeMatrix
	case "class_pair":
		return ShapeClassPair
	case "tensor":
		return ShapeTensor
	default:
		return ShapeUnknown
	}
}

// Attribution 是解释器的原始输出。只有与 Shape 对应的字段有值。
type Attribution struct {
	Shape    AttributionShape
	Matrix   [][]float64   // ShapeMatrix
	PerClass [][][]float64 // ShapeClassPair
	Tensor   [][][]float64 // ShapeTensor
	Raw      [][]float64   // ShapeUnknown
}

// NewMatrixAttribution rows × features
func NewMatrixAttribution(m [][]float64) Attribution {
	return Attribution{Shape: ShapeMatrix, Matrix: m}
}

// NewClassPairAttribution classes × rows × features
func NewClassPairAttribution(perClass ...[][]float64) Attribution {
	return Attribution{Shape: ShapeClassPair, PerClass: perClass}
}

// NewTensorAttribution rows × features × classes
func NewTensorAttribution(t [][][]float64) Attribution {
	return Attribution{Shape: ShapeTensor, Tensor: t}
}

// NewUnknownAttribution 未识别形态的原始输出
func NewUnknownAttribution(raw [][]float64) Attribution {
	return Attribution{Shape: ShapeUnknown, Raw: raw}
}

// Explainer 是已拟合的解释器能力：给定一行处理后的特征，返回逐特征归因值。
type Explainer interface {
	// Name 返回解释器名称（用于日志/监控）
	Name() string

	// Attribute 计算归因，row 为已对齐的单行表
	Attribute(ctx context.Context, row *FeatureTable) (Attribution, error)
}
