package core

import "context"

// Classifier 是已训练好的二分类器的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（model）实现
//   - 输入是已经按特征契约对齐的 FeatureTable
//   - 分类器在进程启动时加载，之后只读，可被并发请求共享
//
// 实现：
//   - model.LRModel：本地逻辑回归
//   - model.RPCModel：远程模型服务
type Classifier interface {
	// Name 返回模型名称（用于日志/监控）
	Name() string

	// Predict 返回每行的预测标签（0/1）
	Predict(ctx context.Context, table *FeatureTable) ([]int, error)

	// PredictProba 返回每行各类别的概率，[i][1] 为正类（流失）概率
	PredictProba(ctx context.Context, table *FeatureTable) ([][]float64, error)
}
