// Package store 提供 core.Store 的实现，用于承载模型产物（特征契约、预处理参数、模型参数）。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
//	rs, err := store.NewRedisStore("localhost:6379", 0)
package store
