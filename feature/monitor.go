package feature

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/churnkit/core"
)

// ErrFeatureNotFound 监控中没有该特征的记录
var ErrFeatureNotFound = core.NewDomainError(core.ModuleFeature, core.ErrorCodeNotFound, "feature: feature not found")

// FeatureStats 特征统计信息
type FeatureStats struct {
	FeatureName    string    `json:"feature_name"`
	UsageCount     int64     `json:"usage_count"`
	MissingCount   int64     `json:"missing_count"`
	Mean           float64   `json:"mean"`
	Std            float64   `json:"std"`
	Min            float64   `json:"min"`
	Max            float64   `json:"max"`
	P50            float64   `json:"p50"`
	P95            float64   `json:"p95"`
	P99            float64   `json:"p99"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// MonitorSummary 监控汇总（/monitoring）
type MonitorSummary struct {
	Status        string           `json:"status"`
	RecordsSeen   int64            `json:"records_seen"`
	QualityIssues map[string]int64 `json:"quality_issues"`
	Features      []FeatureStats   `json:"features"`
}

// MemoryFeatureMonitor 记录线上原始输入的分布、缺失与质量告警，供 /monitoring 展示。
// 样本按特征保留最近 maxSamples 个，统计信息由后台协程定期刷新。
type MemoryFeatureMonitor struct {
	mu             sync.RWMutex
	featureStats   map[string]*FeatureStats
	featureValues  map[string][]float64 // 用于计算统计信息
	qualityIssues  map[string]int64
	recordsSeen    int64
	maxSamples     int // 每个特征保留的最大样本数
	updateInterval time.Duration
	updateTicker   *time.Ticker
	stopUpdate     chan struct{}
	closeOnce      sync.Once
}

// NewMemoryFeatureMonitor 创建内存特征监控
func NewMemoryFeatureMonitor(maxSamples int, updateInterval time.Duration) *MemoryFeatureMonitor {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	if updateInterval <= 0 {
		updateInterval = 10 * time.Second
	}
	monitor := &MemoryFeatureMonitor{
		featureStats:   make(map[string]*FeatureStats),
		featureValues:  make(map[string][]float64),
		qualityIssues:  make(map[string]int64),
		maxSamples:     maxSamples,
		updateInterval: updateInterval,
		stopUpdate:     make(chan struct{}),
	}

	monitor.updateTicker = time.NewTicker(monitor.updateInterval)
	go monitor.updateStats()

	return monitor
}

func (m *MemoryFeatureMonitor) updateStats() {
	for {
		select {
		case <-m.updateTicker.C:
			m.Refresh()
		case <-m.stopUpdate:
			m.updateTicker.Stop()
			return
		}
	}
}

// Refresh 立即重算统计信息
func (m *MemoryFeatureMonitor) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for featureName, values := range m.featureValues {
		if len(values) == 0 {
			continue
		}

		stats := m.statsLocked(featureName)
		computed := ComputeStatistics(values)
		stats.Mean = computed.Mean
		stats.Std = computed.Std
		stats.Min = computed.Min
		stats.Max = computed.Max
		stats.P50 = computed.Median
		stats.P95 = computed.P95
		stats.P99 = computed.P99
		stats.LastUpdateTime = time.Now()
	}
}

func (m *MemoryFeatureMonitor) statsLocked(featureName string) *FeatureStats {
	stats := m.featureStats[featureName]
	if stats == nil {
		stats = &FeatureStats{FeatureName: featureName}
		m.featureStats[featureName] = stats
	}
	return stats
}

func (m *MemoryFeatureMonitor) recordLocked(featureName string, value float64) {
	m.statsLocked(featureName).UsageCount++

	values := m.featureValues[featureName]
	if len(values) >= m.maxSamples {
		values = values[1:]
	}
	m.featureValues[featureName] = append(values, value)
}

// RecordQualityIssue 累加一次质量告警
func (m *MemoryFeatureMonitor) RecordQualityIssue(ctx context.Context, issue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qualityIssues[issue]++
}

// RecordTable 记录一张原始输入表：非缺失值计入样本，NaN 计入缺失
func (m *MemoryFeatureMonitor) RecordTable(ctx context.Context, table *core.FeatureTable) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recordsSeen += int64(table.NumRows())
	for _, row := range table.Rows {
		for j, col := range table.Columns {
			if math.IsNaN(row[j]) {
				m.statsLocked(col).MissingCount++
				continue
			}
			m.recordLocked(col, row[j])
		}
	}
}

// GetFeatureStats 单个特征的统计快照
func (m *MemoryFeatureMonitor) GetFeatureStats(ctx context.Context, featureName string) (*FeatureStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.featureStats[featureName]
	if !ok {
		return nil, ErrFeatureNotFound
	}
	cp := *stats
	return &cp, nil
}

// Summary 返回监控汇总，特征按名称排序
func (m *MemoryFeatureMonitor) Summary(ctx context.Context) *MonitorSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := &MonitorSummary{
		Status:        "active",
		RecordsSeen:   m.recordsSeen,
		QualityIssues: make(map[string]int64, len(m.qualityIssues)),
		Features:      make([]FeatureStats, 0, len(m.featureStats)),
	}
	for k, v := range m.qualityIssues {
		summary.QualityIssues[k] = v
	}
	for _, s := range m.featureStats {
		summary.Features = append(summary.Features, *s)
	}
	sort.Slice(summary.Features, func(i, j int) bool {
		return summary.Features[i].FeatureName < summary.Features[j].FeatureName
	})
	return summary
}

// Close 关闭监控，停止更新协程
func (m *MemoryFeatureMonitor) Close() {
	m.closeOnce.Do(func() { close(m.stopUpdate) })
}
