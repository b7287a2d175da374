package core

import (
	"fmt"
	"math"
)

// RawRecord 是一条原始客户观测：外部字段名 -> 标量值（数值或类别）。
// 值为 nil 表示该字段存在但取值缺失。
type RawRecord map[string]any

// FeatureTable 是按列名有序的数值表，行是观测。
//
// 约定：
//   - 缺失值统一用 NaN 表示
//   - FeatureTable 是值语义：所有变换都返回新表，不修改输入
//   - 列名唯一，顺序即模型输入顺序
type FeatureTable struct {
	Columns []string
	Rows    [][]float64
}

// NewFeatureTable 创建一张空表（仅列名）。
func NewFeatureTable(columns []string) *FeatureTable {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &FeatureTable{Columns: cols}
}

// NewFeatureTableFromRows 用给定列名和行创建表，会校验每行宽度与列名唯一性。
func NewFeatureTableFromRows(columns []string, rows [][]float64) (*FeatureTable, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("feature table: duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	t := NewFeatureTable(columns)
	t.Rows = make([][]float64, len(rows))
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("feature table: row %d has %d values, want %d", i, len(r), len(columns))
		}
		t.Rows[i] = append([]float64(nil), r...)
	}
	return t, nil
}

// NumRows 返回行数
func (t *FeatureTable) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// NumColumns 返回列数
func (t *FeatureTable) NumColumns() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// ColumnIndex 返回列的下标
func (t *FeatureTable) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// HasColumn 判断列是否存在
func (t *FeatureTable) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// MissingColumns 返回 names 中表里不存在的列（保持 names 的顺序）
func (t *FeatureTable) MissingColumns(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !t.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Column 返回某列的值副本
func (t *FeatureTable) Column(name string) ([]float64, bool) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, true
}

// Row 返回第 i 行的副本
func (t *FeatureTable) Row(i int) []float64 {
	return append([]float64(nil), t.Rows[i]...)
}

// RowMap 返回第 i 行的 列名 -> 值 映射
func (t *FeatureTable) RowMap(i int) map[string]float64 {
	m := make(map[string]float64, len(t.Columns))
	for j, c := range t.Columns {
		m[c] = t.Rows[i][j]
	}
	return m
}

// Clone 深拷贝
func (t *FeatureTable) Clone() *FeatureTable {
	out := NewFeatureTable(t.Columns)
	out.Rows = make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]float64(nil), r...)
	}
	return out
}

// Slice 返回 [from, to) 行组成的新表
func (t *FeatureTable) Slice(from, to int) *FeatureTable {
	out := NewFeatureTable(t.Columns)
	out.Rows = make([][]float64, 0, to-from)
	for _, r := range t.Rows[from:to] {
		out.Rows = append(out.Rows, append([]float64(nil), r...))
	}
	return out
}

// WithColumns 返回追加（或覆盖同名）列后的新表。values[k][i] 是第 k 个新列第 i 行的值。
func (t *FeatureTable) WithColumns(names []string, values [][]float64) *FeatureTable {
	out := t.Clone()
	for k, name := range names {
		col := values[k]
		if idx, ok := out.ColumnIndex(name); ok {
			for i := range out.Rows {
				out.Rows[i][idx] = col[i]
			}
			continue
		}
		out.Columns = append(out.Columns, name)
		for i := range out.Rows {
			out.Rows[i] = append(out.Rows[i], col[i])
		}
	}
	return out
}

// Select 按给定列名顺序投影；不存在的列用 fill 填充。
func (t *FeatureTable) Select(columns []string, fill float64) *FeatureTable {
	idx := make([]int, len(columns))
	for j, c := range columns {
		if i, ok := t.ColumnIndex(c); ok {
			idx[j] = i
		} else {
			idx[j] = -1
		}
	}
	out := NewFeatureTable(columns)
	out.Rows = make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		nr := make([]float64, len(columns))
		for j, i := range idx {
			if i < 0 {
				nr[j] = fill
			} else {
				nr[j] = row[i]
			}
		}
		out.Rows[r] = nr
	}
	return out
}

// Equal 比较两张表：列名、顺序、取值均相同（NaN 视为相等）。
func (t *FeatureTable) Equal(o *FeatureTable) bool {
	if len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Rows {
		for j := range t.Rows[i] {
			a, b := t.Rows[i][j], o.Rows[i][j]
			if math.IsNaN(a) && math.IsNaN(b) {
				continue
			}
			if a != b {
				return false
			}
		}
	}
	return true
}

