// Package churnkit 是电信客户流失预测工具包。
//
// 设计要点：
//   - Transform-first: 原始记录经过同一条确定性的特征流水线（重命名 → 交互特征 → 偏度修正 → 分箱 → 填充 → 缩放 → 对齐），训练与服务完全一致
//   - Contract-first: 特征列的名称与顺序由训练时生成的 FeatureMetadata 固定，服务端按契约对齐
//   - Explain 可降级: 任意形状的解释器输出都归一化为 (特征, 贡献) 后稳定排序取 top-k，解释失败只降级不报错
//
// 子包：core（领域类型）、feature（FeatureTransformer）、explain（ExplanationRanker）、
// model、train、artifact、service、server、config、cmd/churnkit。
package churnkit

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/churnkit/artifact"
	"github.com/rushteam/churnkit/service"
)

// 轻量 facade：便于直接 import "churnkit" 使用核心抽象。
type (
	Predictor   = service.Predictor
	Prediction  = service.Prediction
	BatchResult = service.BatchResult
	Bundle      = artifact.Bundle
	Option      = service.Option
)

// Open 从本地产物目录加载模型并创建预测服务
func Open(ctx context.Context, dir string, opts ...Option) (*Predictor, error) {
	bundle, err := artifact.LoadFirst(ctx, zap.L(), artifact.NewFileSource(dir))
	if err != nil {
		return nil, err
	}
	return service.NewPredictor(bundle, opts...)
}
