package feature

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rushteam/churnkit/core"
)

func sampleRecord() core.RawRecord {
	return core.RawRecord{
		"Call_Failure":            8,
		"Complains":               0,
		"Subscription_Length":     38,
		"Charge_Amount":           0,
		"Seconds_of_Use":          4370,
		"Frequency_of_use":        71,
		"Frequency_of_SMS":        5,
		"Distinct_Called_Numbers": 17,
		"Age_Group":               3,
		"Tariff_Plan":             1,
		"Status":                  1,
		"Age":                     30,
		"Customer_Value":          197.64,
	}
}

func trainingRecords() []core.RawRecord {
	a := sampleRecord()
	b := sampleRecord()
	b["Seconds_of_Use"] = 0
	b["Subscription_Length"] = 0
	b["Complains"] = 1
	b["Age"] = 55
	c := sampleRecord()
	c["Seconds_of_Use"] = 12000
	c["Frequency_of_SMS"] = nil
	c["Age"] = 15
	d := sampleRecord()
	d["Charge_Amount"] = 9
	d["Customer_Value"] = 1500.5
	d["Age"] = 45
	return []core.RawRecord{a, b, c, d}
}

// fittedTransformer 在小训练集上拟合默认流水线，契约取转换后的全部列
func fittedTransformer(t *testing.T, scaling string) *Transformer {
	t.Helper()
	ctx := context.Background()

	table, err := FromRecords(trainingRecords())
	require.NoError(t, err)

	p, err := DefaultPipeline(scaling)
	require.NoError(t, err)

	fitted, out, err := p.Fit(ctx, table)
	require.NoError(t, err)

	tr, err := NewTransformer(fitted, NewFeatureMetadata(out.Columns, "test", scaling))
	require.NoError(t, err)
	return tr
}

// hasNaN 表中是否还有缺失值
func hasNaN(table *core.FeatureTable) bool {
	for _, row := range table.Rows {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}
