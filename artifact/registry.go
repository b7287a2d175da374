package artifact

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/explain"
	"github.com/rushteam/churnkit/feature"
	"github.com/rushteam/churnkit/model"
)

// BuildContext 是构建分类器/解释器时可用的上下文
type BuildContext struct {
	Source     Source
	Spec       ComponentSpec
	Metadata   *feature.FeatureMetadata
	Classifier core.Classifier // 仅解释器构建时有值
}

// ClassifierBuilder 根据清单构建分类器
type ClassifierBuilder func(ctx context.Context, bc BuildContext) (core.Classifier, error)

// ExplainerBuilder 根据清单构建解释器；返回 nil 表示不提供解释
type ExplainerBuilder func(ctx context.Context, bc BuildContext) (core.Explainer, error)

var (
	classifierBuilders = make(map[string]ClassifierBuilder)
	explainerBuilders  = make(map[string]ExplainerBuilder)
	buildersMu         sync.RWMutex
)

func init() {
	RegisterClassifier("lr", buildLRClassifier)
	RegisterClassifier("rpc", buildRPCClassifier)
	RegisterExplainer("linear", buildLinearExplainer)
	RegisterExplainer("rpc", buildRPCExplainer)
	RegisterExplainer("none", func(context.Context, BuildContext) (core.Explainer, error) { return nil, nil })
}

// RegisterClassifier 注册一种分类器类型，建议在 init 中调用
func RegisterClassifier(typeName string, builder ClassifierBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	classifierBuilders[typeName] = builder
}

// RegisterExplainer 注册一种解释器类型，建议在 init 中调用
func RegisterExplainer(typeName string, builder ExplainerBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	explainerBuilders[typeName] = builder
}

// SupportedClassifiers 已注册的分类器类型（排序）
func SupportedClassifiers() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	return sortedKeys(classifierBuilders)
}

// SupportedExplainers 已注册的解释器类型（排序）
func SupportedExplainers() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	return sortedKeys(explainerBuilders)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func buildClassifier(ctx context.Context, bc BuildContext) (core.Classifier, error) {
	buildersMu.RLock()
	b, ok := classifierBuilders[bc.Spec.Type]
	buildersMu.RUnlock()
	if !ok {
		return nil, corrupted("unsupported classifier type %q (supported: %v)", bc.Spec.Type, SupportedClassifiers())
	}
	return b(ctx, bc)
}

func buildExplainer(ctx context.Context, bc BuildContext) (core.Explainer, error) {
	if bc.Spec.Type == "" {
		bc.Spec.Type = "none"
	}
	buildersMu.RLock()
	b, ok := explainerBuilders[bc.Spec.Type]
	buildersMu.RUnlock()
	if !ok {
		return nil, corrupted("unsupported explainer type %q (supported: %v)", bc.Spec.Type, SupportedExplainers())
	}
	return b(ctx, bc)
}

func specTimeout(spec ComponentSpec) time.Duration {
	return time.Duration(spec.TimeoutMS) * time.Millisecond
}

func buildLRClassifier(ctx context.Context, bc BuildContext) (core.Classifier, error) {
	data, err := bc.Source.Fetch(ctx, FileModel)
	if err != nil {
		return nil, wrapCorrupted(err, "fetch %s", FileModel)
	}
	m, err := model.ParseLRModel(data)
	if err != nil {
		return nil, wrapCorrupted(err, "parse %s", FileModel)
	}
	contract := make(map[string]struct{}, len(bc.Metadata.FeatureColumns))
	for _, c := range bc.Metadata.FeatureColumns {
		contract[c] = struct{}{}
	}
	for name := range m.Weights {
		if _, ok := contract[name]; !ok {
			return nil, corrupted("model weight %q is not in the feature contract", name)
		}
	}
	return m, nil
}

func buildRPCClassifier(ctx context.Context, bc BuildContext) (core.Classifier, error) {
	if bc.Spec.Endpoint == "" {
		return nil, corrupted("rpc classifier needs an endpoint")
	}
	return model.NewRPCModel("rpc", bc.Spec.Endpoint, specTimeout(bc.Spec)), nil
}

// explainerFile 是 explainer.json 的结构
type explainerFile struct {
	Baseline map[string]float64 `json:"baseline"`
}

func buildLinearExplainer(ctx context.Context, bc BuildContext) (core.Explainer, error) {
	lr, ok := bc.Classifier.(*model.LRModel)
	if !ok {
		return nil, corrupted("linear explainer requires an lr classifier, got %T", bc.Classifier)
	}
	data, err := bc.Source.Fetch(ctx, FileExplainer)
	if err != nil {
		return nil, wrapCorrupted(err, "fetch %s", FileExplainer)
	}
	var ef explainerFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, wrapCorrupted(err, "parse %s", FileExplainer)
	}
	return explain.NewLinearExplainer(lr.Weights, ef.Baseline), nil
}

func buildRPCExplainer(ctx context.Context, bc BuildContext) (core.Explainer, error) {
	if bc.Spec.Endpoint == "" {
		return nil, corrupted("rpc explainer needs an endpoint")
	}
	return explain.NewRPCExplainer(bc.Spec.Endpoint, specTimeout(bc.Spec)), nil
}

// MarshalExplainerBaseline 生成 explainer.json
func MarshalExplainerBaseline(baseline map[string]float64) ([]byte, error) {
	return json.MarshalIndent(explainerFile{Baseline: baseline}, "", "  ")
}
