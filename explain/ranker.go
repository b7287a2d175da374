package explain

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/rushteam/churnkit/core"
)

// DefaultTopK 默认返回的风险因子数
const DefaultTopK = 3

// Factor 一个特征及其带符号的影响值（正值推高流失概率）
type Factor struct {
	Feature string  `json:"feature"`
	Impact  float64 `json:"impact"`
}

// Explanation 排序后的解释。Degraded 为 true 时 Factors 为空，Reason 记录原因。
type Explanation struct {
	Factors  []Factor `json:"factors"`
	Degraded bool     `json:"degraded,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Fallback bool     `json:"fallback,omitempty"`
}

// Empty 批量预测路径使用的空解释（有意跳过，不是降级）
func Empty() Explanation {
	return Explanation{Factors: []Factor{}}
}

func degraded(reason string) Explanation {
	return Explanation{Factors: []Factor{}, Degraded: true, Reason: reason}
}

// Ranker 对单行计算归因并取 top-k。Ranker 无可变状态，可并发使用。
type Ranker struct {
	TopK          int
	PositiveClass int
	logger        *zap.Logger
}

// NewRanker 创建 Ranker；topK <= 0 时使用 DefaultTopK
func NewRanker(topK, positiveClass int, logger *zap.Logger) *Ranker {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Ranker{TopK: topK, PositiveClass: positiveClass, logger: logger}
}

// Explain 计算解释。永不返回错误：任何失败（含解释器 panic）都转为降级的空解释并记录日志。
func (r *Ranker) Explain(ctx context.Context, explainer core.Explainer, row *core.FeatureTable) (exp Explanation) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("explainer panicked", zap.Any("panic", p))
			exp = degraded(fmt.Sprintf("explainer panic: %v", p))
		}
	}()

	if explainer == nil {
		return r.degrade("no explainer configured", nil)
	}
	if row == nil || row.NumRows() != 1 {
		return r.degrade(fmt.Sprintf("expected exactly one row, got %d", row.NumRows()), nil)
	}

	attr, err := explainer.Attribute(ctx, row)
	if err != nil {
		return r.degrade("attribution failed", err, zap.String("explainer", explainer.Name()))
	}

	norm, err := Normalize(attr, r.PositiveClass)
	if err != nil {
		return r.degrade("normalize attribution", err, zap.Stringer("shape", attr.Shape))
	}
	if norm.Fallback {
		r.logger.Warn("unrecognized attribution shape, using first row",
			zap.String("explainer", explainer.Name()), zap.Int("values", len(norm.Values)))
	}
	if len(norm.Values) != row.NumColumns() {
		return r.degrade(fmt.Sprintf("attribution has %d values for %d features", len(norm.Values), row.NumColumns()), nil)
	}

	return Explanation{
		Factors:  Rank(row.Columns, norm.Values, r.TopK),
		Fallback: norm.Fallback,
	}
}

func (r *Ranker) degrade(reason string, err error, fields ...zap.Field) Explanation {
	if err != nil {
		fields = append(fields, zap.Error(err))
		reason = reason + ": " + err.Error()
	}
	r.logger.Warn("explanation degraded", append(fields, zap.String("reason", reason))...)
	return degraded(reason)
}

// Rank 按 |impact| 降序稳定排序（绝对值相同时保持原列顺序），取前 k 个。保留符号。
func Rank(features []string, values []float64, k int) []Factor {
	factors := make([]Factor, len(features))
	for i, f := range features {
		factors[i] = Factor{Feature: f, Impact: values[i]}
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return absImpact(factors[i].Impact) > absImpact(factors[j].Impact)
	})
	if k >= 0 && k < len(factors) {
		factors = factors[:k]
	}
	return factors
}

// absImpact NaN 排在最后
func absImpact(v float64) float64 {
	if math.IsNaN(v) {
		return -1
	}
	return math.Abs(v)
}
