package feature

// SchemaVersion 是外部字段名 -> 内部列名映射表的版本。
// 内部列名来自原始数据集的列标签（部分含两个连续空格），与训练时冻结的特征契约一致；
// 修改任何列名都必须同时更新特征契约并提升版本。
const SchemaVersion = "v1"

// 原始输入列（内部命名）
const (
	ColCallFailure           = "Call  Failure"
	ColComplains             = "Complains"
	ColSubscriptionLength    = "Subscription  Length"
	ColChargeAmount          = "Charge  Amount"
	ColSecondsOfUse          = "Seconds of Use"
	ColFrequencyOfUse        = "Frequency of use"
	ColFrequencyOfSMS        = "Frequency of SMS"
	ColDistinctCalledNumbers = "Distinct Called Numbers"
	ColAgeGroup              = "Age Group"
	ColTariffPlan            = "Tariff Plan"
	ColStatus                = "Status"
	ColAge                   = "Age"
	ColCustomerValue         = "Customer Value"

	// LabelColumn 训练集标签列（1 = 流失）
	LabelColumn = "Churn"
)

// 派生列
const (
	ColUsagePerMonth          = "Usage_Per_Month"
	ColComplainsPerMonth      = "Complains_Per_Month"
	ColValuePerSecond         = "Value_Per_Second"
	ColCostPerSecond          = "Cost_Per_Second"
	ColFailureRate            = "Failure_Rate"
	ColUsageFrequencyPerMonth = "Usage_Frequency_Per_Month"
	ColTotalActivity          = "Total_Activity"
	ColAgeBin                 = "Age_Bin"

	// LogPrefix 偏态修正列前缀：Log_<name>
	LogPrefix = "Log_"
)

// FieldMapping 是一条 外部字段名 -> 内部列名 的映射。
type FieldMapping struct {
	APIName      string
	InternalName string
}

// FieldMappings 是版本化的字段映射表，顺序即 InputColumns 的列顺序。
var FieldMappings = []FieldMapping{
	{APIName: "Call_Failure", InternalName: ColCallFailure},
	{APIName: "Complains", InternalName: ColComplains},
	{APIName: "Subscription_Length", InternalName: ColSubscriptionLength},
	{APIName: "Charge_Amount", InternalName: ColChargeAmount},
	{APIName: "Seconds_of_Use", InternalName: ColSecondsOfUse},
	{APIName: "Frequency_of_use", InternalName: ColFrequencyOfUse},
	{APIName: "Frequency_of_SMS", InternalName: ColFrequencyOfSMS},
	{APIName: "Distinct_Called_Numbers", InternalName: ColDistinctCalledNumbers},
	{APIName: "Age_Group", InternalName: ColAgeGroup},
	{APIName: "Tariff_Plan", InternalName: ColTariffPlan},
	{APIName: "Status", InternalName: ColStatus},
	{APIName: "Age", InternalName: ColAge},
	{APIName: "Customer_Value", InternalName: ColCustomerValue},
}

var (
	apiToInternal = func() map[string]string {
		m := make(map[string]string, len(FieldMappings))
		for _, fm := range FieldMappings {
			m[fm.APIName] = fm.InternalName
		}
		return m
	}()
	internalNames = func() map[string]struct{} {
		m := make(map[string]struct{}, len(FieldMappings))
		for _, fm := range FieldMappings {
			m[fm.InternalName] = struct{}{}
		}
		return m
	}()
)

// InputColumns 返回原始输入列（内部命名，固定顺序）
func InputColumns() []string {
	cols := make([]string, len(FieldMappings))
	for i, fm := range FieldMappings {
		cols[i] = fm.InternalName
	}
	return cols
}

// Rename 把外部字段名转为内部列名。已经是内部列名的原样返回；未知字段返回 ("", false)。
func Rename(name string) (string, bool) {
	if internal, ok := apiToInternal[name]; ok {
		return internal, true
	}
	if _, ok := internalNames[name]; ok {
		return name, true
	}
	return "", false
}

// SkewedColumns 需要做 log1p 修正的长尾列
var SkewedColumns = []string{ColSecondsOfUse, ColFrequencyOfUse, ColFrequencyOfSMS}

// AgeBinEdges 年龄分桶边界，区间右闭：(0,18] (18,30] (30,45] (45,60] (60,100]
var AgeBinEdges = []float64{0, 18, 30, 45, 60, 100}

// DefaultRatios 交互特征（比值）
var DefaultRatios = []Ratio{
	{Name: ColUsagePerMonth, Numerator: ColSecondsOfUse, Denominator: ColSubscriptionLength},
	{Name: ColComplainsPerMonth, Numerator: ColComplains, Denominator: ColSubscriptionLength},
	{Name: ColValuePerSecond, Numerator: ColCustomerValue, Denominator: ColSecondsOfUse},
	{Name: ColCostPerSecond, Numerator: ColChargeAmount, Denominator: ColSecondsOfUse},
	{Name: ColFailureRate, Numerator: ColCallFailure, Denominator: ColSubscriptionLength},
	{Name: ColUsageFrequencyPerMonth, Numerator: ColFrequencyOfUse, Denominator: ColSubscriptionLength},
}

// DefaultSums 交互特征（求和）
var DefaultSums = []Sum{
	{Name: ColTotalActivity, Columns: []string{ColFrequencyOfUse, ColFrequencyOfSMS, ColDistinctCalledNumbers}},
}

// RequiredColumns 返回默认转换流程（交互、偏态修正、分桶）需要的源列，按 InputColumns 顺序。
func RequiredColumns() []string {
	need := make(map[string]struct{})
	for _, r := range DefaultRatios {
		need[r.Numerator] = struct{}{}
		need[r.Denominator] = struct{}{}
	}
	for _, s := range DefaultSums {
		for _, c := range s.Columns {
			need[c] = struct{}{}
		}
	}
	for _, c := range SkewedColumns {
		need[c] = struct{}{}
	}
	need[ColAge] = struct{}{}

	var out []string
	for _, c := range InputColumns() {
		if _, ok := need[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
