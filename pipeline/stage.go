package pipeline

import (
	"context"

	"github.com/rushteam/churnkit/core"
)

// Kind 标记 Stage 所处的阶段，阶段之间有固定顺序。
// 调换阶段顺序会改变数值输出，因此 Pipeline.Validate 会拒绝乱序的配置。
type Kind string

const (
	KindInteraction Kind = "interaction" // 交互特征：列与列的比值/求和
	KindSkew        Kind = "skew"        // 偏态修正：log1p
	KindBin         Kind = "bin"         // 分桶
	KindImpute      Kind = "impute"      // 缺失值填充（训练时拟合）
	KindScale       Kind = "scale"       // 缩放（训练时拟合）
)

var kindOrder = map[Kind]int{
	KindInteraction: 1,
	KindSkew:        2,
	KindBin:         3,
	KindImpute:      4,
	KindScale:       5,
}

// Order 返回阶段序号，未知阶段返回 0
func (k Kind) Order() int {
	return kindOrder[k]
}

// Stage 是 Pipeline 的最小单元：输入一张表，输出一张新表，不修改输入。
// Stage 必须是无状态或只读的，以便被并发请求共享。
type Stage interface {
	Name() string
	Kind() Kind

	Process(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error)
}

// Fitter 是需要在训练集上拟合参数的 Stage（如填充、缩放）。
// Fit 不修改自身，而是返回一个参数冻结的新 Stage。
type Fitter interface {
	Stage

	// Fit 在训练表上拟合参数，返回冻结后的 Stage
	Fit(ctx context.Context, table *core.FeatureTable) (Stage, error)

	// Fitted 是否已拟合
	Fitted() bool
}

// Exporter 可以把自身（含拟合参数）导出为 StageConfig，用于持久化。
type Exporter interface {
	Export() StageConfig
}
