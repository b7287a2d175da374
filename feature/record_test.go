package feature

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/churnkit/core"
)

func TestRename(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Call_Failure", "Call  Failure", true},
		{"Subscription_Length", "Subscription  Length", true},
		{"Charge_Amount", "Charge  Amount", true},
		{"Seconds_of_Use", "Seconds of Use", true},
		{"Seconds of Use", "Seconds of Use", true},
		{"Customer_ID", "", false},
	}
	for _, tt := range tests {
		got, ok := Rename(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFromRecords(t *testing.T) {
	rec := sampleRecord()
	rec["Frequency_of_SMS"] = nil
	rec["Tariff_Plan"] = ""
	rec["unknown_field"] = 12
	delete(rec, "Status")

	table, err := FromRecords([]core.RawRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, InputColumns(), table.Columns)
	row := table.RowMap(0)
	assert.True(t, math.IsNaN(row[ColFrequencyOfSMS]))
	assert.True(t, math.IsNaN(row[ColTariffPlan]))
	// 非必需列缺失按缺失值处理
	assert.True(t, math.IsNaN(row[ColStatus]))
	assert.Equal(t, 4370.0, row[ColSecondsOfUse])
}

func TestFromRecords_MissingRequired(t *testing.T) {
	ok := sampleRecord()
	bad := sampleRecord()
	delete(bad, "Age")
	delete(bad, "Complains")

	_, err := FromRecords([]core.RawRecord{ok, bad})
	require.Error(t, err)

	var mce *core.MissingColumnError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, 1, mce.Row)
	assert.Equal(t, []string{ColComplains, ColAge}, mce.Columns)
}

func TestFromRecords_NonNumeric(t *testing.T) {
	rec := sampleRecord()
	rec["Age"] = "thirty"
	_, err := FromRecords([]core.RawRecord{rec})
	require.Error(t, err)
	assert.True(t, core.IsContractViolation(err))
}

func TestReadCSVRecords(t *testing.T) {
	data := "Seconds of Use,Age,Extra\n4370,30,x\n,25,\n"
	records, err := ReadCSVRecords(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "4370", records[0]["Seconds of Use"])
	assert.Nil(t, records[1]["Seconds of Use"])
	assert.Equal(t, "25", records[1]["Age"])
}

func TestReadCSVRecords_Empty(t *testing.T) {
	_, err := ReadCSVRecords(context.Background(), strings.NewReader(""))
	assert.True(t, core.IsContractViolation(err))
}

func TestFromRecords_NameCollision(t *testing.T) {
	rec := sampleRecord()
	rec["Call  Failure"] = 188.0

	for i := 0; i < 50; i++ {
		_, err := FromRecords([]core.RawRecord{rec})
		require.Error(t, err)
		assert.True(t, core.IsContractViolation(err))
		assert.Contains(t, err.Error(), `"Call_Failure"`)
	}
}

func TestFromRecords_InternalNamesDeterministic(t *testing.T) {
	rec := core.RawRecord{}
	for k, v := range sampleRecord() {
		internal, ok := Rename(k)
		require.True(t, ok, k)
		rec[internal] = v
	}
	want, err := FromRecords([]core.RawRecord{sampleRecord()})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		got, err := FromRecords([]core.RawRecord{rec})
		require.NoError(t, err)
		require.True(t, want.Equal(got))
	}
}

func TestReadCSVRecords_DuplicateHeader(t *testing.T) {
	data := "Call_Failure,Call  Failure,Age\n1,2,30\n"
	_, err := ReadCSVRecords(context.Background(), strings.NewReader(data))
	require.Error(t, err)
	assert.True(t, core.IsContractViolation(err))
}

func TestReadCSVRecords_ByteOrderMark(t *testing.T) {
	data := "\ufeffAge,Status\n30,1\n"
	records, err := ReadCSVRecords(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "30", records[0]["Age"])
}
