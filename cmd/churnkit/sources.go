package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rushteam/churnkit/artifact"
	"github.com/rushteam/churnkit/config"
	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/service"
	"github.com/rushteam/churnkit/store"
)

// modelSources 按 registry → redis → 本地目录 的顺序组装模型来源。
// 返回的 closer 关闭期间打开的 Store。
func modelSources(c *config.Config) ([]artifact.Source, func(), error) {
	var (
		sources []artifact.Source
		closers []func()
	)
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	if c.Artifacts.RegistryURL != "" {
		timeout := time.Duration(c.Artifacts.RegistryTimeout) * time.Second
		sources = append(sources, artifact.NewHTTPSource(c.Artifacts.RegistryURL, c.Model.Name, timeout))
	}
	if c.Artifacts.RedisAddr != "" {
		rs, err := store.NewRedisStore(c.Artifacts.RedisAddr, c.Artifacts.RedisDB)
		if err != nil {
			// Redis 不可达时降级到下一个来源
			zap.L().Warn("redis model store unavailable", zap.String("addr", c.Artifacts.RedisAddr), zap.Error(err))
		} else {
			closers = append(closers, func() { _ = rs.Close() })
			sources = append(sources, artifact.NewStoreSource(rs, c.Artifacts.Prefix))
		}
	}
	if c.Artifacts.Dir != "" {
		sources = append(sources, artifact.NewFileSource(c.Artifacts.Dir))
	}
	if len(sources) == 0 {
		closeAll()
		return nil, nil, eris.New("no model source configured")
	}
	return sources, closeAll, nil
}

// loadBundle 加载模型产物。没有可用模型时返回 (nil, nil)；产物损坏时返回错误。
func loadBundle(ctx context.Context, c *config.Config) (*artifact.Bundle, error) {
	sources, closeSources, err := modelSources(c)
	if err != nil {
		return nil, err
	}
	defer closeSources()

	bundle, err := artifact.LoadFirst(ctx, zap.L(), sources...)
	if err != nil {
		if core.IsArtifactCorrupted(err) {
			return nil, err
		}
		zap.L().Warn("no model available, starting without predictions", zap.Error(err))
		return nil, nil
	}
	return bundle, nil
}

// predictorOptions 由配置生成预测服务参数
func predictorOptions(c *config.Config) []service.Option {
	return []service.Option{
		service.WithTopK(c.Prediction.TopK),
		service.WithShardSize(c.Prediction.ShardSize),
		service.WithPositiveClass(c.Prediction.PositiveClass),
		service.WithLogger(zap.L()),
	}
}
