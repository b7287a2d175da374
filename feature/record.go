package feature

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/pkg/conv"
)

// FromRecords 把原始记录转为输入表。
//
// 规则：
//   - 字段名先经过 Rename（外部名 -> 内部名），未知字段忽略
//   - 同一列同时以外部名和内部名出现 -> INVALID_INPUT
//   - 输出表总是包含完整的 InputColumns，保证单行与批量转换逐行一致
//   - 记录缺少 RequiredColumns 中的任意字段 -> MissingColumnError
//   - 字段存在但值为 nil/空字符串 -> NaN（缺失值，由填充阶段处理）
//   - 字段值无法转为数值 -> INVALID_INPUT
func FromRecords(records []core.RawRecord) (*core.FeatureTable, error) {
	cols := InputColumns()
	required := RequiredColumns()
	table := core.NewFeatureTable(cols)
	table.Rows = make([][]float64, 0, len(records))

	for i, rec := range records {
		renamed, err := renameRecord(i, rec)
		if err != nil {
			return nil, err
		}

		var missing []string
		for _, c := range required {
			if _, ok := renamed[c]; !ok {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return nil, core.NewMissingColumnError("records", i, missing...)
		}

		row := make([]float64, len(cols))
		for j, c := range cols {
			v, ok := renamed[c]
			if !ok || isBlank(v) {
				row[j] = math.NaN()
				continue
			}
			f, ok := conv.ToFloat64(v)
			if !ok {
				return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
					fmt.Sprintf("feature: record %d field %q has non-numeric value %v", i, c, v))
			}
			row[j] = f
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// ReadCSVRecords 读取带表头的 CSV，每行转为一条 RawRecord（表头即字段名，空单元格为 nil）。
func ReadCSVRecords(ctx context.Context, r io.Reader) ([]core.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature: csv is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var records []core.RawRecord
	for line := 2; ; line++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, err,
				fmt.Sprintf("feature: csv line %d", line))
		}
		rec := make(core.RawRecord, len(header))
		for j, name := range header {
			if j >= len(row) || strings.TrimSpace(row[j]) == "" {
				rec[name] = nil
				continue
			}
			rec[name] = row[j]
		}
		records = append(records, rec)
	}
	return records, nil
}

// renameRecord 按 FieldMappings 的顺序把记录转为内部列名，结果与 map 遍历顺序无关
func renameRecord(i int, rec core.RawRecord) (map[string]any, error) {
	renamed := make(map[string]any, len(FieldMappings))
	for _, fm := range FieldMappings {
		apiVal, hasAPI := rec[fm.APIName]
		internalVal, hasInternal := rec[fm.InternalName]
		switch {
		case hasAPI && hasInternal && fm.APIName != fm.InternalName:
			return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
				fmt.Sprintf("feature: record %d has both %q and %q", i, fm.APIName, fm.InternalName))
		case hasAPI:
			renamed[fm.InternalName] = apiVal
		case hasInternal:
			renamed[fm.InternalName] = internalVal
		}
	}
	return renamed, nil
}

// checkHeader 拒绝映射到同一内部列的重复表头（例如同时出现 Call_Failure 与 "Call  Failure"）
func checkHeader(header []string) error {
	seen := make(map[string]string, len(header))
	for _, name := range header {
		internal, ok := Rename(name)
		if !ok {
			continue
		}
		if prev, dup := seen[internal]; dup {
			return core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
				fmt.Sprintf("feature: csv header has both %q and %q", prev, name))
		}
		seen[internal] = name
	}
	return nil
}
