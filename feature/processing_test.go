package feature

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/pipeline"
)

func mustTable(t *testing.T, cols []string, rows ...[]float64) *core.FeatureTable {
	t.Helper()
	tbl, err := core.NewFeatureTableFromRows(cols, rows)
	require.NoError(t, err)
	return tbl
}

func TestInteractionStage_ZeroDenominatorsStayFinite(t *testing.T) {
	rec := sampleRecord()
	rec["Seconds_of_Use"] = 0
	rec["Subscription_Length"] = 0
	table, err := FromRecords([]core.RawRecord{rec})
	require.NoError(t, err)

	out, err := DefaultInteractionStage().Process(context.Background(), table)
	require.NoError(t, err)

	for _, name := range []string{ColUsagePerMonth, ColComplainsPerMonth, ColValuePerSecond, ColCostPerSecond, ColFailureRate, ColUsageFrequencyPerMonth} {
		col, ok := out.Column(name)
		require.True(t, ok, name)
		assert.False(t, math.IsInf(col[0], 0) || math.IsNaN(col[0]), "%s = %v", name, col[0])
	}
	usage, _ := out.Column(ColUsagePerMonth)
	assert.Equal(t, 0.0, usage[0])
}

func TestInteractionStage_Values(t *testing.T) {
	table, err := FromRecords([]core.RawRecord{sampleRecord()})
	require.NoError(t, err)

	out, err := DefaultInteractionStage().Process(context.Background(), table)
	require.NoError(t, err)

	row := out.RowMap(0)
	assert.InDelta(t, 4370/(38+Epsilon), row[ColUsagePerMonth], 1e-9)
	assert.InDelta(t, 197.64/(4370+Epsilon), row[ColValuePerSecond], 1e-12)
	assert.Equal(t, 71.0+5+17, row[ColTotalActivity])
	// 原始列保留
	assert.Equal(t, 4370.0, row[ColSecondsOfUse])
	// 输入表不被修改
	assert.False(t, table.HasColumn(ColUsagePerMonth))
}

func TestInteractionStage_MissingSourceColumn(t *testing.T) {
	table := mustTable(t, []string{ColSecondsOfUse}, []float64{1})
	_, err := DefaultInteractionStage().Process(context.Background(), table)
	require.Error(t, err)

	var mce *core.MissingColumnError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, -1, mce.Row)
	assert.Contains(t, mce.Columns, ColSubscriptionLength)
	assert.True(t, core.IsContractViolation(err))
}

func TestLog1p(t *testing.T) {
	assert.Equal(t, 0.0, Log1p(0))
	assert.InDelta(t, 1.0, Log1p(math.E-1), 1e-12)
	assert.True(t, math.IsNaN(Log1p(-1)))
	assert.True(t, math.IsNaN(Log1p(-0.5)))
	assert.True(t, math.IsNaN(Log1p(math.NaN())))
}

func TestBinStage_RightClosed(t *testing.T) {
	s := DefaultAgeBinStage()
	tests := []struct {
		age  float64
		want float64 // NaN 表示未分桶
	}{
		{0, math.NaN()},
		{10, 0},
		{18, 0},
		{18.5, 1},
		{30, 1},
		{45, 2},
		{60, 3},
		{61, 4},
		{100, 4},
		{101, math.NaN()},
		{-3, math.NaN()},
		{math.NaN(), math.NaN()},
	}
	for _, tt := range tests {
		got := s.BinValue(tt.age)
		if math.IsNaN(tt.want) {
			assert.True(t, math.IsNaN(got), "age %v -> %v", tt.age, got)
			continue
		}
		assert.Equal(t, tt.want, got, "age %v", tt.age)
	}
}

func TestNewBinStage_RejectsTooFewEdges(t *testing.T) {
	_, err := NewBinStage(ColAge, ColAgeBin, []float64{1})
	assert.Error(t, err)
}

func TestImputeStage_FitFreezesMeans(t *testing.T) {
	ctx := context.Background()
	train := mustTable(t, []string{"a", "b"},
		[]float64{1, math.NaN()},
		[]float64{math.NaN(), math.NaN()},
		[]float64{3, math.NaN()},
	)

	s := NewImputeStage()
	assert.False(t, s.Fitted())

	fitted, err := s.Fit(ctx, train)
	require.NoError(t, err)
	fs := fitted.(*ImputeStage)
	assert.True(t, fs.Fitted())
	assert.Equal(t, map[string]float64{"a": 2}, fs.Means)

	// 推理批次的分布不影响填充值
	infer := mustTable(t, []string{"a", "b", "c"},
		[]float64{math.NaN(), math.NaN(), math.Inf(1)},
		[]float64{100, 5, 7},
	)
	out, err := fs.Process(ctx, infer)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0, 0}, out.Rows[0])
	assert.Equal(t, []float64{100, 5, 7}, out.Rows[1])
	assert.True(t, hasNaN(infer), "input must not be mutated")
}

func TestScaleStage(t *testing.T) {
	ctx := context.Background()
	train := mustTable(t, []string{"x", "const"},
		[]float64{1, 4},
		[]float64{3, 4},
	)

	tests := []struct {
		method string
		input  []float64
		want   []float64
	}{
		{ScalingStandard, []float64{3, 4}, []float64{1, 0}},
		{ScalingStandard, []float64{1, 5}, []float64{-1, 1}},
		{ScalingMinMax, []float64{2, 4}, []float64{0.5, 0}},
		{ScalingMinMax, []float64{5, 6}, []float64{2, 2}},
		{ScalingNone, []float64{7, 8}, []float64{7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s, err := NewScaleStage(tt.method)
			require.NoError(t, err)
			fitted, err := s.Fit(ctx, train)
			require.NoError(t, err)

			out, err := fitted.Process(ctx, mustTable(t, []string{"x", "const"}, tt.input))
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, out.Rows[0], 1e-12)
		})
	}
}

func TestScaleStage_UnknownMethod(t *testing.T) {
	_, err := NewScaleStage("robust")
	assert.Error(t, err)
}

func TestDefaultPipeline_RejectsUnfittedRun(t *testing.T) {
	p, err := DefaultPipeline(ScalingStandard)
	require.NoError(t, err)
	assert.False(t, p.Fitted())

	table, err := FromRecords([]core.RawRecord{sampleRecord()})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), table)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrNotFitted)
	assert.True(t, core.IsArtifactCorrupted(err))
}

func TestPipeline_RejectsReorderedStages(t *testing.T) {
	scale, err := NewScaleStage(ScalingStandard)
	require.NoError(t, err)

	_, err = pipeline.New("bad", DefaultInteractionStage(), scale, NewImputeStage())
	assert.Error(t, err)

	_, err = pipeline.New("bad", DefaultAgeBinStage(), NewLogStage(SkewedColumns))
	assert.Error(t, err)

	_, err = pipeline.New("dup", NewImputeStage(), NewImputeStage())
	assert.Error(t, err)
}

func TestComputeStatistics(t *testing.T) {
	stats := ComputeStatistics([]float64{4, 1, 3, 2})
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 4.0, stats.Max)
	assert.Equal(t, 2.5, stats.Mean)
	assert.Equal(t, 2.5, stats.Median)
	assert.InDelta(t, math.Sqrt(1.25), stats.Std, 1e-12)

	empty := ComputeStatistics(nil)
	assert.Equal(t, 0.0, empty.Mean)
}
