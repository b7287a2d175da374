package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/churnkit/core"
)

// ErrNotFitted 表示推理时遇到了尚未拟合的 Stage。
// 拟合参数必须来自训练产物，绝不能在推理批次上临时计算。
var ErrNotFitted = core.NewDomainError(core.ModulePipeline, core.ErrorCodeArtifactCorrupted, "pipeline: stage not fitted")

// Pipeline 把特征工程拆成按固定顺序执行的 Stage 链。
type Pipeline struct {
	Name   string
	Stages []Stage
}

// New 创建 Pipeline 并校验阶段顺序
func New(name string, stages ...Stage) (*Pipeline, error) {
	p := &Pipeline{Name: name, Stages: stages}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate 校验阶段顺序：每个 Kind 只出现一次，且严格按 interaction → skew → bin → impute → scale。
func (p *Pipeline) Validate() error {
	last := 0
	for i, s := range p.Stages {
		if s == nil {
			return fmt.Errorf("pipeline %s: stage %d is nil", p.Name, i)
		}
		order := s.Kind().Order()
		if order == 0 {
			return fmt.Errorf("pipeline %s: stage %s has unknown kind %q", p.Name, s.Name(), s.Kind())
		}
		if order <= last {
			return fmt.Errorf("pipeline %s: stage %s (%s) is out of order", p.Name, s.Name(), s.Kind())
		}
		last = order
	}
	return nil
}

// Fitted 所有 Fitter 是否都已拟合
func (p *Pipeline) Fitted() bool {
	for _, s := range p.Stages {
		if f, ok := s.(Fitter); ok && !f.Fitted() {
			return false
		}
	}
	return true
}

// Run 依次执行各 Stage。遇到未拟合的 Stage 直接失败。
func (p *Pipeline) Run(ctx context.Context, table *core.FeatureTable) (*core.FeatureTable, error) {
	cur := table
	for _, s := range p.Stages {
		if f, ok := s.(Fitter); ok && !f.Fitted() {
			return nil, fmt.Errorf("stage %s: %w", s.Name(), ErrNotFitted)
		}
		next, err := s.Process(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Fit 在训练表上逐个拟合 Stage，返回冻结后的新 Pipeline 以及训练表的变换结果。
// 每个 Fitter 看到的是前序 Stage 的输出。
func (p *Pipeline) Fit(ctx context.Context, table *core.FeatureTable) (*Pipeline, *core.FeatureTable, error) {
	fitted := &Pipeline{Name: p.Name, Stages: make([]Stage, 0, len(p.Stages))}
	cur := table
	for _, s := range p.Stages {
		stage := s
		if f, ok := s.(Fitter); ok {
			fs, err := f.Fit(ctx, cur)
			if err != nil {
				return nil, nil, fmt.Errorf("fit stage %s: %w", s.Name(), err)
			}
			stage = fs
		}
		next, err := stage.Process(ctx, cur)
		if err != nil {
			return nil, nil, err
		}
		fitted.Stages = append(fitted.Stages, stage)
		cur = next
	}
	return fitted, cur, nil
}

// Export 导出为可持久化的配置，所有 Stage 必须实现 Exporter。
func (p *Pipeline) Export() (*Config, error) {
	cfg := &Config{}
	cfg.Pipeline.Name = p.Name
	for _, s := range p.Stages {
		e, ok := s.(Exporter)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: stage %s cannot be exported", p.Name, s.Name())
		}
		cfg.Pipeline.Stages = append(cfg.Pipeline.Stages, e.Export())
	}
	return cfg, nil
}
