package feature

import "github.com/rushteam/churnkit/core"

// Align 把表对齐到契约：缺失列补 0，多余列静默丢弃，列顺序与契约一致。
// Align 是全函数，列差异不是错误。
func Align(table *core.FeatureTable, contract []string) *core.FeatureTable {
	return table.Select(contract, 0)
}
