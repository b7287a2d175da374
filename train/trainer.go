package train

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/churnkit/artifact"
	"github.com/rushteam/churnkit/feature"
	"github.com/rushteam/churnkit/model"
	"github.com/rushteam/churnkit/pipeline"
)

const (
	// ModelType 写入产物的模型类型
	ModelType = "LogisticRegression"
	// DefaultModelName 默认模型名称
	DefaultModelName = "ChurnPredictionModel"
)

// Config 训练配置
type Config struct {
	ModelName string   `mapstructure:"-"`
	Version   string   `mapstructure:"-"`
	TestSize  float64  `mapstructure:"test_size"`
	Seed      uint64   `mapstructure:"seed"`
	Scaling   string   `mapstructure:"-"`
	LR        LRConfig `mapstructure:",squash"`
}

// Result 训练产出
type Result struct {
	Pipeline *pipeline.Pipeline
	Metadata *feature.FeatureMetadata
	Model    *model.LRModel
	Baseline map[string]float64 // 训练集特征均值（线性解释器基线）
	Metrics  Metrics
	// OptimalThreshold 测试集上 F1 最优阈值，仅写入 model_metadata.json；服务判定仍用 Model.Threshold
	OptimalThreshold float64
	TrainSize        int
	TestSize         int
	Config           Config
	CreatedAt        time.Time
}

// Trainer 训练器
type Trainer struct {
	cfg    Config
	logger *zap.Logger
}

// NewTrainer 创建训练器
func NewTrainer(cfg Config, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.L()
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.Scaling == "" {
		cfg.Scaling = feature.ScalingStandard
	}
	if cfg.Version == "" {
		cfg.Version = time.Now().UTC().Format("20060102150405")
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Run 执行训练
func (t *Trainer) Run(ctx context.Context, ds *Dataset) (*Result, error) {
	trainIdx, testIdx, err := StratifiedSplit(ds.Labels, t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	trainSet, testSet := ds.Subset(trainIdx), ds.Subset(testIdx)
	t.logger.Info("dataset split", zap.Int("train", trainSet.Len()), zap.Int("test", testSet.Len()))

	trainTable, err := feature.FromRecords(trainSet.Records)
	if err != nil {
		return nil, fmt.Errorf("train records: %w", err)
	}
	testTable, err := feature.FromRecords(testSet.Records)
	if err != nil {
		return nil, fmt.Errorf("test records: %w", err)
	}

	p, err := feature.DefaultPipeline(t.cfg.Scaling)
	if err != nil {
		return nil, err
	}
	fitted, xTrain, err := p.Fit(ctx, trainTable)
	if err != nil {
		return nil, fmt.Errorf("fit pipeline: %w", err)
	}

	meta := feature.NewFeatureMetadata(xTrain.Columns, t.cfg.Version, t.cfg.Scaling)
	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	transformer, err := feature.NewTransformer(fitted, meta)
	if err != nil {
		return nil, err
	}
	t.logger.Info("features processed", zap.Int("features", len(meta.FeatureColumns)))

	lr, err := FitLogistic(ctx, xTrain, trainSet.Labels, t.cfg.LR)
	if err != nil {
		return nil, err
	}

	xTest, err := transformer.TransformAligned(ctx, testTable)
	if err != nil {
		return nil, fmt.Errorf("transform test set: %w", err)
	}
	proba, err := lr.PredictProba(ctx, xTest)
	if err != nil {
		return nil, fmt.Errorf("score test set: %w", err)
	}
	scores := make([]float64, len(proba))
	for i, p := range proba {
		scores[i] = p[1]
	}

	// 概率、风险等级与标签必须一致，服务阈值固定为 DefaultThreshold
	lr.Threshold = model.DefaultThreshold
	metrics := Evaluate(scores, testSet.Labels, lr.Threshold)
	optimal := OptimalThreshold(scores, testSet.Labels)
	t.logger.Info("model evaluated",
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("roc_auc", metrics.ROCAUC),
		zap.Float64("f1", metrics.F1),
		zap.Float64("threshold", lr.Threshold),
		zap.Float64("optimal_threshold", optimal))

	baseline := make(map[string]float64, xTrain.NumColumns())
	for _, c := range xTrain.Columns {
		col, _ := xTrain.Column(c)
		baseline[c] = feature.ComputeStatistics(col).Mean
	}

	return &Result{
		Pipeline:         fitted,
		Metadata:         meta,
		Model:            lr,
		Baseline:         baseline,
		Metrics:          metrics,
		OptimalThreshold: optimal,
		TrainSize:        trainSet.Len(),
		TestSize:         testSet.Len(),
		Config:           t.cfg,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// Files 把训练结果序列化为产物文件
func (r *Result) Files() (map[string][]byte, error) {
	files := make(map[string][]byte, 6)

	var err error
	if files[artifact.FileFeatureMeta], err = r.Metadata.Marshal(); err != nil {
		return nil, err
	}

	cfg, err := r.Pipeline.Export()
	if err != nil {
		return nil, err
	}
	if files[artifact.FilePreprocess], err = json.MarshalIndent(cfg, "", "  "); err != nil {
		return nil, err
	}

	if files[artifact.FileModel], err = r.Model.Marshal(); err != nil {
		return nil, err
	}

	if files[artifact.FileExplainer], err = artifact.MarshalExplainerBaseline(r.Baseline); err != nil {
		return nil, err
	}

	info := artifact.ModelMetadata{
		ModelType: ModelType,
		ModelName: r.Config.ModelName,
		Version:   r.Config.Version,
		Dataset:   DatasetName,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		Metrics: map[string]any{
			"accuracy":         r.Metrics.Accuracy,
			"roc_auc":          r.Metrics.ROCAUC,
			"f1":               r.Metrics.F1,
			"precision":        r.Metrics.Precision,
			"recall":           r.Metrics.Recall,
			"confusion_matrix": r.Metrics.ConfusionMatrix,
		},
		OptimalThreshold: r.OptimalThreshold,
		FeatureCount:     len(r.Metadata.FeatureColumns),
		TrainSize:        r.TrainSize,
		TestSize:         r.TestSize,
		Params: map[string]any{
			"epochs":        r.Config.LR.Epochs,
			"learning_rate": r.Config.LR.LearningRate,
			"l2":            r.Config.LR.L2,
			"scaling":       r.Config.Scaling,
			"seed":          r.Config.Seed,
			"test_size":     r.Config.TestSize,
		},
	}
	if files[artifact.FileModelMetadata], err = json.MarshalIndent(info, "", "  "); err != nil {
		return nil, err
	}

	manifest := &artifact.Manifest{
		Name:       r.Config.ModelName,
		Version:    r.Config.Version,
		ModelType:  ModelType,
		CreatedAt:  info.CreatedAt,
		Classifier: artifact.ComponentSpec{Type: "lr"},
		Explainer:  artifact.ComponentSpec{Type: "linear"},
		Files: []string{
			artifact.FileFeatureMeta,
			artifact.FilePreprocess,
			artifact.FileModel,
			artifact.FileExplainer,
			artifact.FileModelMetadata,
		},
	}
	if files[artifact.FileManifest], err = manifest.Marshal(); err != nil {
		return nil, err
	}
	return files, nil
}
