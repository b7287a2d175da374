package service

// 风险等级
const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// 风险分层阈值（流失概率）
const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.4
)

// RiskLevel 按流失概率分层：>= 0.7 High，>= 0.4 Medium，其余 Low
func RiskLevel(p float64) string {
	switch {
	case p >= HighRiskThreshold:
		return RiskHigh
	case p >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Confidence 预测标签对应类别的概率
func Confidence(p float64, label int) float64 {
	if label == 1 {
		return p
	}
	return 1 - p
}
