package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFeatureTableFromRows(t *testing.T) {
	_, err := NewFeatureTableFromRows([]string{"a", "a"}, nil)
	assert.Error(t, err)

	_, err = NewFeatureTableFromRows([]string{"a", "b"}, [][]float64{{1}})
	assert.Error(t, err)

	rows := [][]float64{{1, 2}}
	tbl, err := NewFeatureTableFromRows([]string{"a", "b"}, rows)
	require.NoError(t, err)
	rows[0][0] = 99
	assert.Equal(t, 1.0, tbl.Rows[0][0], "rows must be copied")
}

func TestFeatureTable_WithColumnsAndSelect(t *testing.T) {
	tbl, err := NewFeatureTableFromRows([]string{"a", "b"}, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	out := tbl.WithColumns([]string{"b", "c"}, [][]float64{{20, 40}, {5, 6}})
	assert.Equal(t, []string{"a", "b", "c"}, out.Columns)
	assert.Equal(t, []float64{1, 20, 5}, out.Rows[0])
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	assert.Equal(t, []float64{1, 2}, tbl.Rows[0])

	sel := out.Select([]string{"c", "z", "a"}, 0)
	assert.Equal(t, [][]float64{{5, 0, 1}, {6, 0, 3}}, sel.Rows)
	assert.Equal(t, []string{"z"}, out.MissingColumns("a", "z"))
}

func TestFeatureTable_SliceEqual(t *testing.T) {
	tbl, err := NewFeatureTableFromRows([]string{"a"}, [][]float64{{1}, {math.NaN()}, {3}})
	require.NoError(t, err)

	tail := tbl.Slice(1, 3)
	want, _ := NewFeatureTableFromRows([]string{"a"}, [][]float64{{math.NaN()}, {3}})
	assert.True(t, tail.Equal(want), "NaN compares equal")
	assert.False(t, tail.Equal(tbl.Slice(0, 2)))

	other, _ := NewFeatureTableFromRows([]string{"b"}, [][]float64{{math.NaN()}, {3}})
	assert.False(t, tail.Equal(other))
	assert.Equal(t, map[string]float64{"a": 3}, tbl.RowMap(2))
}

func TestDomainErrors(t *testing.T) {
	mce := NewMissingColumnError("interaction", -1, "Age")
	assert.True(t, IsContractViolation(mce))
	assert.False(t, IsArtifactCorrupted(mce))
	assert.Contains(t, mce.Error(), `"Age"`)

	wrapped := WrapDomainError(ModuleModel, ErrorCodeInferenceFailed, mce, "model: predict")
	assert.True(t, IsInferenceFailed(wrapped))
	assert.ErrorIs(t, wrapped, mce)

	assert.True(t, IsStoreNotFound(ErrStoreNotFound))
	assert.False(t, IsDomainError(nil))
}
