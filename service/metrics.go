package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 预测模式（指标标签）
const (
	ModeSingle = "single"
	ModeBatch  = "batch"
	ModeCSV    = "csv"
)

// Metrics 预测服务的 Prometheus 指标
type Metrics struct {
	// 按模式与风险等级统计的预测条数
	Predictions *prometheus.CounterVec
	// 一次调用（单条或整批）的耗时
	Latency *prometheus.HistogramVec
	// 按错误代码统计的失败调用
	Failures *prometheus.CounterVec
	// 降级的解释
	ExplanationsDegraded prometheus.Counter
	// 数据质量告警
	QualityIssues *prometheus.CounterVec
	// 当前加载的模型，值恒为 1
	ModelInfo *prometheus.GaugeVec
}

// NewMetrics 创建并注册指标；reg 为 nil 时只创建不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "churnkit_predictions_total",
			Help: "Number of customers scored, by mode and risk level",
		}, []string{"mode", "risk_level"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "churnkit_prediction_latency_seconds",
			Help:    "Latency of prediction calls, by mode",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "churnkit_prediction_failures_total",
			Help: "Number of failed prediction calls, by mode and error code",
		}, []string{"mode", "code"}),
		ExplanationsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "churnkit_explanations_degraded_total",
			Help: "Number of explanations replaced by an empty result",
		}),
		QualityIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "churnkit_quality_issues_total",
			Help: "Number of data quality warnings on raw input",
		}, []string{"issue"}),
		ModelInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "churnkit_model_info",
			Help: "Loaded model, value is always 1",
		}, []string{"name", "version", "source"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Predictions,
			m.Latency,
			m.Failures,
			m.ExplanationsDegraded,
			m.QualityIssues,
			m.ModelInfo,
		)
	}
	return m
}
