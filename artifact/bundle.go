package artifact

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/feature"
	"github.com/rushteam/churnkit/pkg/conv"
)

// ModelMetadata 是 model_metadata.json：训练指标与参数
type ModelMetadata struct {
	ModelType        string         `json:"model_type"`
	ModelName        string         `json:"model_name"`
	Version          string         `json:"version"`
	Dataset          string         `json:"dataset"`
	CreatedAt        string         `json:"created_at"`
	Metrics          map[string]any `json:"metrics"`
	OptimalThreshold float64        `json:"optimal_threshold"`
	FeatureCount     int            `json:"feature_count"`
	TrainSize        int            `json:"train_size"`
	TestSize         int            `json:"test_size"`
	Params           map[string]any `json:"params,omitempty"`
}

// Accuracy 测试集准确率，未知时返回 (0, false)
func (m ModelMetadata) Accuracy() (float64, bool) {
	v, ok := m.Metrics["accuracy"]
	if !ok {
		return 0, false
	}
	return conv.ToFloat64(v)
}

// Bundle 是一次加载得到的全部推理产物。构造后只读，请求之间共享，不做任何运行时替换。
type Bundle struct {
	Manifest    *Manifest
	Metadata    *feature.FeatureMetadata
	Transformer *feature.Transformer
	Classifier  core.Classifier
	Explainer   core.Explainer // 可能为 nil
	Info        ModelMetadata
	Source      string
}

// Version 模型版本
func (b *Bundle) Version() string { return b.Manifest.Version }

// Name 模型名称
func (b *Bundle) Name() string { return b.Manifest.Name }

// Load 从单个来源加载并校验。
// 清单不存在或来源不可达时返回 NOT_FOUND / UNAVAILABLE；清单存在但其余产物缺失或非法时返回 ARTIFACT_CORRUPTED。
func Load(ctx context.Context, src Source) (*Bundle, error) {
	data, err := src.Fetch(ctx, FileManifest)
	if err != nil {
		return nil, err
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	data, err = src.Fetch(ctx, FileFeatureMeta)
	if err != nil {
		return nil, wrapCorrupted(err, "fetch %s", FileFeatureMeta)
	}
	meta, err := feature.ParseFeatureMetadata(data)
	if err != nil {
		return nil, wrapCorrupted(err, "parse %s", FileFeatureMeta)
	}

	data, err = src.Fetch(ctx, FilePreprocess)
	if err != nil {
		return nil, wrapCorrupted(err, "fetch %s", FilePreprocess)
	}
	p, err := feature.LoadPipeline(data)
	if err != nil {
		return nil, wrapCorrupted(err, "parse %s", FilePreprocess)
	}
	transformer, err := feature.NewTransformer(p, meta)
	if err != nil {
		return nil, wrapCorrupted(err, "build transformer")
	}

	bc := BuildContext{Source: src, Spec: manifest.Classifier, Metadata: meta}
	classifier, err := buildClassifier(ctx, bc)
	if err != nil {
		return nil, wrapCorrupted(err, "build classifier %q", manifest.Classifier.Type)
	}

	bc.Spec = manifest.Explainer
	bc.Classifier = classifier
	explainer, err := buildExplainer(ctx, bc)
	if err != nil {
		return nil, wrapCorrupted(err, "build explainer %q", manifest.Explainer.Type)
	}

	var info ModelMetadata
	data, err = src.Fetch(ctx, FileModelMetadata)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, wrapCorrupted(err, "parse %s", FileModelMetadata)
		}
	case core.IsNotFound(err):
		// 训练指标是可选的
	default:
		return nil, wrapCorrupted(err, "fetch %s", FileModelMetadata)
	}
	if info.ModelType == "" {
		info.ModelType = manifest.ModelType
	}

	return &Bundle{
		Manifest:    manifest,
		Metadata:    meta,
		Transformer: transformer,
		Classifier:  classifier,
		Explainer:   explainer,
		Info:        info,
		Source:      src.Name(),
	}, nil
}

// ErrNoModel 所有来源都没有可用的模型
var ErrNoModel = core.NewDomainError(core.ModuleArtifact, core.ErrorCodeUnavailable, "artifact: no model available from any source")

// LoadFirst 依次尝试各来源，第一个成功的生效。
// 来源缺失或不可达时降级到下一个；产物损坏立即失败，不会悄悄回退到其他来源。
func LoadFirst(ctx context.Context, logger *zap.Logger, sources ...Source) (*Bundle, error) {
	if logger == nil {
		logger = zap.L()
	}
	var errs []error
	for _, src := range sources {
		b, err := Load(ctx, src)
		if err == nil {
			logger.Info("model loaded",
				zap.String("source", b.Source),
				zap.String("name", b.Name()),
				zap.String("version", b.Version()),
				zap.Int("features", len(b.Metadata.FeatureColumns)))
			return b, nil
		}
		if core.IsArtifactCorrupted(err) {
			logger.Error("model artifacts corrupted", zap.String("source", src.Name()), zap.Error(err))
			return nil, err
		}
		logger.Warn("model source unavailable, trying next", zap.String("source", src.Name()), zap.Error(err))
		errs = append(errs, err)
	}
	return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeUnavailable, errors.Join(errs...), ErrNoModel.Message)
}
