// Package service 编排一次预测：质量检查 → 特征转换 → 分类 → 解释 → 风险分层。
//
// Predictor 构造后只读，可被所有请求协程共享。批量预测按分片并发转换和打分，
// 结果与不分片时逐行一致。
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/churnkit/artifact"
	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/explain"
	"github.com/rushteam/churnkit/feature"
)

// DefaultShardSize 批量预测的默认分片大小
const DefaultShardSize = 256

// Monitor 是预测服务使用的输入监控
type Monitor interface {
	RecordTable(ctx context.Context, table *core.FeatureTable)
	RecordQualityIssue(ctx context.Context, issue string)
	Summary(ctx context.Context) *feature.MonitorSummary
	GetFeatureStats(ctx context.Context, featureName string) (*feature.FeatureStats, error)
}

// Prediction 单个客户的预测结果
type Prediction struct {
	ChurnPrediction     int              `json:"churn_prediction"`
	ChurnProbability    float64          `json:"churn_probability"`
	RiskLevel           string           `json:"risk_level"`
	Confidence          float64          `json:"confidence"`
	TopRiskFactors      []explain.Factor `json:"top_risk_factors"`
	ExplanationDegraded bool             `json:"explanation_degraded,omitempty"`
}

// BatchResult 批量预测结果
type BatchResult struct {
	Predictions      []Prediction `json:"predictions"`
	TotalCustomers   int          `json:"total_customers"`
	HighRiskCount    int          `json:"high_risk_count"`
	ProcessingTimeMS float64      `json:"processing_time_ms"`
}

// Predictor 预测服务
type Predictor struct {
	bundle        *artifact.Bundle
	ranker        *explain.Ranker
	quality       *feature.QualityChecker
	monitor       Monitor
	metrics       *Metrics
	topK          int
	positiveClass int
	shardSize     int
	logger        *zap.Logger
}

// Option 预测服务选项
type Option func(*Predictor)

// WithTopK 设置返回的风险因子数
func WithTopK(k int) Option {
	return func(p *Predictor) { p.topK = k }
}

// WithPositiveClass 设置正类（流失）下标
func WithPositiveClass(c int) Option {
	return func(p *Predictor) { p.positiveClass = c }
}

// WithShardSize 设置批量预测分片大小
func WithShardSize(n int) Option {
	return func(p *Predictor) {
		if n > 0 {
			p.shardSize = n
		}
	}
}

// WithMonitor 设置输入监控
func WithMonitor(m Monitor) Option {
	return func(p *Predictor) { p.monitor = m }
}

// WithMetrics 设置 Prometheus 指标
func WithMetrics(m *Metrics) Option {
	return func(p *Predictor) { p.metrics = m }
}

// WithQualityChecker 设置数据质量检查器
func WithQualityChecker(c *feature.QualityChecker) Option {
	return func(p *Predictor) { p.quality = c }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(p *Predictor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPredictor 基于已加载的模型产物创建预测服务
func NewPredictor(bundle *artifact.Bundle, opts ...Option) (*Predictor, error) {
	if bundle == nil || bundle.Transformer == nil || bundle.Classifier == nil {
		return nil, artifact.ErrNoModel
	}
	p := &Predictor{
		bundle:        bundle,
		topK:          explain.DefaultTopK,
		positiveClass: 1,
		shardSize:     DefaultShardSize,
		logger:        zap.L(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.quality == nil {
		p.quality = feature.NewQualityChecker(p.logger)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	p.ranker = explain.NewRanker(p.topK, p.positiveClass, p.logger)
	p.metrics.ModelInfo.WithLabelValues(bundle.Name(), bundle.Version(), bundle.Source).Set(1)
	return p, nil
}

// Bundle 当前模型产物
func (p *Predictor) Bundle() *artifact.Bundle {
	return p.bundle
}

// Monitor 输入监控，未配置时为 nil
func (p *Predictor) Monitor() Monitor {
	return p.monitor
}

// Predict 预测单个客户并给出解释
func (p *Predictor) Predict(ctx context.Context, record core.RawRecord) (pred *Prediction, err error) {
	start := time.Now()
	defer func() { p.observe(ModeSingle, start, err) }()

	table, err := feature.FromRecords([]core.RawRecord{record})
	if err != nil {
		return nil, err
	}
	p.inspect(ctx, table)

	x, err := p.bundle.Transformer.TransformAligned(ctx, table)
	if err != nil {
		return nil, err
	}
	labels, proba, err := p.score(ctx, x)
	if err != nil {
		return nil, err
	}

	exp := p.ranker.Explain(ctx, p.bundle.Explainer, x)
	if exp.Degraded {
		p.metrics.ExplanationsDegraded.Inc()
	}
	out := newPrediction(labels[0], proba[0])
	out.TopRiskFactors = exp.Factors
	out.ExplanationDegraded = exp.Degraded
	p.metrics.Predictions.WithLabelValues(ModeSingle, out.RiskLevel).Inc()
	return &out, nil
}

// PredictBatch 批量预测（不计算解释）
func (p *Predictor) PredictBatch(ctx context.Context, records []core.RawRecord) (*BatchResult, error) {
	return p.predictBatch(ctx, ModeBatch, records)
}

// PredictCSV 读取带表头的 CSV 并批量预测。表头可以是外部字段名或内部列名。
func (p *Predictor) PredictCSV(ctx context.Context, r io.Reader) (*BatchResult, error) {
	records, err := feature.ReadCSVRecords(ctx, r)
	if err != nil {
		p.observe(ModeCSV, time.Now(), err)
		return nil, err
	}
	return p.predictBatch(ctx, ModeCSV, records)
}

func (p *Predictor) predictBatch(ctx context.Context, mode string, records []core.RawRecord) (res *BatchResult, err error) {
	start := time.Now()
	defer func() { p.observe(mode, start, err) }()

	table, err := feature.FromRecords(records)
	if err != nil {
		return nil, err
	}
	p.inspect(ctx, table)

	n := table.NumRows()
	preds := make([]Prediction, n)
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += p.shardSize {
		hi := min(lo+p.shardSize, n)
		g.Go(func() error {
			x, err := p.bundle.Transformer.TransformAligned(gctx, table.Slice(lo, hi))
			if err != nil {
				return err
			}
			labels, proba, err := p.score(gctx, x)
			if err != nil {
				return err
			}
			for i := range labels {
				pr := newPrediction(labels[i], proba[i])
				pr.TopRiskFactors = explain.Empty().Factors
				preds[lo+i] = pr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res = &BatchResult{Predictions: preds, TotalCustomers: len(records)}
	for _, pr := range preds {
		if pr.RiskLevel == RiskHigh {
			res.HighRiskCount++
		}
		p.metrics.Predictions.WithLabelValues(mode, pr.RiskLevel).Inc()
	}
	res.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000
	return res, nil
}

// score 调用分类器，返回标签与正类概率
func (p *Predictor) score(ctx context.Context, x *core.FeatureTable) ([]int, []float64, error) {
	clf := p.bundle.Classifier
	proba, err := clf.PredictProba(ctx, x)
	if err != nil {
		return nil, nil, inferenceFailed(clf.Name(), err)
	}
	labels, err := clf.Predict(ctx, x)
	if err != nil {
		return nil, nil, inferenceFailed(clf.Name(), err)
	}
	if len(proba) != x.NumRows() || len(labels) != x.NumRows() {
		return nil, nil, inferenceFailed(clf.Name(),
			fmt.Errorf("got %d probabilities and %d labels for %d rows", len(proba), len(labels), x.NumRows()))
	}

	pos := make([]float64, len(proba))
	for i, row := range proba {
		if p.positiveClass < 0 || p.positiveClass >= len(row) {
			return nil, nil, inferenceFailed(clf.Name(),
				fmt.Errorf("row %d has %d classes, positive class is %d", i, len(row), p.positiveClass))
		}
		pos[i] = row[p.positiveClass]
	}
	return labels, pos, nil
}

func inferenceFailed(name string, err error) error {
	return core.WrapDomainError(core.ModuleService, core.ErrorCodeInferenceFailed, err, "service: classifier "+name+" failed")
}

// inspect 质量检查与监控，只告警不阻断
func (p *Predictor) inspect(ctx context.Context, table *core.FeatureTable) {
	report := p.quality.Check(ctx, table)
	for _, issue := range report.Issues {
		p.metrics.QualityIssues.WithLabelValues(issue).Inc()
		if p.monitor != nil {
			p.monitor.RecordQualityIssue(ctx, issue)
		}
	}
	if p.monitor != nil {
		p.monitor.RecordTable(ctx, table)
	}
}

func (p *Predictor) observe(mode string, start time.Time, err error) {
	p.metrics.Latency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	code := core.ErrorCodeInternalError
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
	}
	p.metrics.Failures.WithLabelValues(mode, code).Inc()
	p.logger.Warn("prediction failed", zap.String("mode", mode), zap.String("code", code), zap.Error(err))
}

func newPrediction(label int, p float64) Prediction {
	return Prediction{
		ChurnPrediction:  label,
		ChurnProbability: p,
		RiskLevel:        RiskLevel(p),
		Confidence:       Confidence(p, label),
	}
}
