package feature

import (
	"errors"

	"github.com/rushteam/churnkit/pipeline"
)

// DefaultFactory 返回注册了全部内置 Stage 的工厂，用于从 preprocess.json 重建拟合后的流水线。
func DefaultFactory() *pipeline.StageFactory {
	f := pipeline.NewStageFactory()
	f.Register("interaction", buildInteractionStage)
	f.Register("log", buildLogStage)
	f.Register("bin", buildBinStage)
	f.Register("impute", buildImputeStage)
	f.Register("scale", buildScaleStage)
	return f
}

// LoadPipeline 从 JSON 配置重建流水线
func LoadPipeline(data []byte) (*pipeline.Pipeline, error) {
	cfg, err := pipeline.ParseJSON(data)
	if err != nil {
		return nil, err
	}
	if len(cfg.Pipeline.Stages) == 0 {
		return nil, errors.New("preprocess: pipeline has no stages")
	}
	return cfg.BuildPipeline(DefaultFactory())
}
