package feature

import (
	"context"
	"fmt"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/pipeline"
)

// PipelineName 默认特征流水线名称
const PipelineName = "churn_features"

// Transformer 把原始记录变成模型输入：流水线（交互 → 偏态 → 分桶 → 填充 → 缩放）+ 契约对齐。
// Transformer 构造后不可变，可被并发请求共享。
type Transformer struct {
	pipeline *pipeline.Pipeline
	meta     *FeatureMetadata
}

// NewTransformer 创建转换器，流水线必须已拟合
func NewTransformer(p *pipeline.Pipeline, meta *FeatureMetadata) (*Transformer, error) {
	if p == nil {
		return nil, fmt.Errorf("transformer: nil pipeline")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !p.Fitted() {
		return nil, pipeline.ErrNotFitted
	}
	if meta == nil {
		return nil, fmt.Errorf("transformer: nil feature metadata")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &Transformer{pipeline: p, meta: meta}, nil
}

// DefaultPipeline 返回未拟合的默认流水线
func DefaultPipeline(scaling string) (*pipeline.Pipeline, error) {
	scale, err := NewScaleStage(scaling)
	if err != nil {
		return nil, err
	}
	return pipeline.New(PipelineName,
		DefaultInteractionStage(),
		NewLogStage(SkewedColumns),
		DefaultAgeBinStage(),
		NewImputeStage(),
		scale,
	)
}

// Pipeline 返回底层流水线
func (t *Transformer) Pipeline() *pipeline.Pipeline {
	return t.pipeline
}

// Metadata 返回特征元数据
func (t *Transformer) Metadata() *FeatureMetadata {
	return t.meta
}

// Contract 返回特征契约
func (t *Transformer) Contract() []string {
	return t.meta.Contract()
}

// Transform 执行流水线（不对齐）
func (t *Transformer) Transform(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error) {
	return t.pipeline.Run(ctx, table)
}

// TransformAligned 执行流水线并对齐到契约
func (t *Transformer) TransformAligned(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error) {
	out, err := t.Transform(ctx, table)
	if err != nil {
		return nil, err
	}
	return Align(out, t.meta.FeatureColumns), nil
}

// TransformRecords 原始记录 -> 对齐后的模型输入
func (t *Transformer) TransformRecords(ctx context.Context, records []core.RawRecord) (*core.FeatureTable, error) {
	table, err := FromRecords(records)
	if err != nil {
		return nil, err
	}
	return t.TransformAligned(ctx, table)
}
