package feature

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/pkg/dsl"
)

// 质量检查结果状态
const (
	QualityPassed  = "passed"
	QualityWarning = "warning"
)

// QualityReport 一批输入的数据质量报告。质量问题只告警，不阻断预测。
type QualityReport struct {
	Status         string         `json:"status"`
	Issues         []string       `json:"issues"`
	MissingValues  map[string]int `json:"missing_values,omitempty"`
	RuleViolations map[string]int `json:"rule_violations,omitempty"`
}

// QualityChecker 在原始输入表上运行数据质量检查：缺失值统计 + CEL 规则。
type QualityChecker struct {
	rules  []*dsl.Rule
	logger *zap.Logger
}

// DefaultQualityRules 默认规则：关键数值列不能为负
func DefaultQualityRules() []*dsl.Rule {
	cols := []string{ColSecondsOfUse, ColSubscriptionLength, ColAge}
	rules := make([]*dsl.Rule, 0, len(cols))
	for _, c := range cols {
		expr := fmt.Sprintf(`!(%q in record) || record[%q] >= 0.0`, c, c)
		rules = append(rules, dsl.MustRule("non_negative:"+c, expr, "Negative values in "+c))
	}
	return rules
}

// NewQualityChecker 创建质量检查器，rules 为空时使用默认规则
func NewQualityChecker(logger *zap.Logger, rules ...*dsl.Rule) *QualityChecker {
	if logger == nil {
		logger = zap.L()
	}
	if len(rules) == 0 {
		rules = DefaultQualityRules()
	}
	return &QualityChecker{rules: rules, logger: logger}
}

// Check 检查输入表
func (c *QualityChecker) Check(ctx context.Context, table *core.FeatureTable) *QualityReport {
	report := &QualityReport{
		Status:         QualityPassed,
		MissingValues:  make(map[string]int),
		RuleViolations: make(map[string]int),
	}

	for i := range table.Rows {
		// 缺失值不进入规则环境，规则按字段不存在处理
		record := table.RowMap(i)
		for col, v := range record {
			if math.IsNaN(v) {
				report.MissingValues[col]++
				delete(record, col)
			}
		}
		for _, r := range c.rules {
			ok, err := r.Evaluate(record)
			if err != nil {
				c.logger.Warn("quality rule failed", zap.String("rule", r.Name), zap.Error(err))
				continue
			}
			if !ok {
				report.RuleViolations[r.Name]++
			}
		}
	}

	if len(report.MissingValues) > 0 {
		report.Issues = append(report.Issues, "Missing values detected")
	}
	for _, r := range c.rules {
		if report.RuleViolations[r.Name] > 0 {
			report.Issues = append(report.Issues, r.Message)
		}
	}

	if len(report.Issues) > 0 {
		report.Status = QualityWarning
		c.logger.Warn("data quality issues", zap.Strings("issues", report.Issues), zap.Int("rows", table.NumRows()))
	}
	return report
}
