// Package config 加载 churnkit 配置（churnkit.yaml + CHURNKIT_ 环境变量）并初始化全局日志。
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix 环境变量前缀，例如 CHURNKIT_SERVER_PORT
const EnvPrefix = "CHURNKIT"

// Config 完整配置
type Config struct {
	Server             ServerConfig             `yaml:"server" mapstructure:"server"`
	Log                LogConfig                `yaml:"log" mapstructure:"log"`
	Artifacts          ArtifactsConfig          `yaml:"artifacts" mapstructure:"artifacts"`
	Model              ModelConfig              `yaml:"model" mapstructure:"model"`
	Prediction         PredictionConfig         `yaml:"prediction" mapstructure:"prediction"`
	FeatureEngineering FeatureEngineeringConfig `yaml:"feature_engineering" mapstructure:"feature_engineering"`
	Monitor            MonitorConfig            `yaml:"monitor" mapstructure:"monitor"`
	Train              TrainConfig              `yaml:"train" mapstructure:"train"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	SlowRequestMS    int      `yaml:"slow_request_ms" mapstructure:"slow_request_ms"`
	RateLimit        float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst        int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxBodyMB        int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	RequestTimeoutMS int      `yaml:"request_timeout_ms" mapstructure:"request_timeout_ms"`
}

// SlowRequest 慢请求告警阈值
func (c ServerConfig) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMS) * time.Millisecond
}

// RequestTimeout 预测接口超时
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// LogConfig 日志
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ArtifactsConfig 模型产物来源，按 registry → redis → dir 的顺序尝试
type ArtifactsConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	RegistryURL     string `yaml:"registry_url" mapstructure:"registry_url"`
	RegistryTimeout int    `yaml:"registry_timeout_secs" mapstructure:"registry_timeout_secs"`
	RedisAddr       string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB         int    `yaml:"redis_db" mapstructure:"redis_db"`
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
}

// ModelConfig 模型
type ModelConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
}

// PredictionConfig 预测
type PredictionConfig struct {
	TopK          int `yaml:"top_k" mapstructure:"top_k"`
	ShardSize     int `yaml:"shard_size" mapstructure:"shard_size"`
	PositiveClass int `yaml:"positive_class" mapstructure:"positive_class"`
}

// FeatureEngineeringConfig 特征工程
type FeatureEngineeringConfig struct {
	Scaling string `yaml:"scaling" mapstructure:"scaling"`
}

// MonitorConfig 特征监控
type MonitorConfig struct {
	MaxSamples      int `yaml:"max_samples" mapstructure:"max_samples"`
	UpdateIntervalS int `yaml:"update_interval_secs" mapstructure:"update_interval_secs"`
}

// TrainConfig 训练
type TrainConfig struct {
	TestSize     float64 `yaml:"test_size" mapstructure:"test_size"`
	Seed         uint64  `yaml:"seed" mapstructure:"seed"`
	Epochs       int     `yaml:"epochs" mapstructure:"epochs"`
	LearningRate float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
	L2           float64 `yaml:"l2" mapstructure:"l2"`
}

// Load 读取配置：默认值 < churnkit.yaml < 环境变量
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("churnkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.slow_request_ms", 50)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_mb", 32)
	v.SetDefault("server.request_timeout_ms", 30000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.registry_url", "")
	v.SetDefault("artifacts.registry_timeout_secs", 5)
	v.SetDefault("artifacts.redis_addr", "")
	v.SetDefault("artifacts.redis_db", 0)
	v.SetDefault("artifacts.prefix", "churn:model:")
	v.SetDefault("model.name", "ChurnPredictionModel")
	v.SetDefault("prediction.top_k", 3)
	v.SetDefault("prediction.shard_size", 256)
	v.SetDefault("prediction.positive_class", 1)
	v.SetDefault("feature_engineering.scaling", "standard")
	v.SetDefault("monitor.max_samples", 1000)
	v.SetDefault("monitor.update_interval_secs", 60)
	v.SetDefault("train.test_size", 0.2)
	v.SetDefault("train.seed", 42)
	v.SetDefault("train.epochs", 500)
	v.SetDefault("train.learning_rate", 0.1)
	v.SetDefault("train.l2", 0.001)
}

// InitLogger 初始化全局 zap logger，format 为 console 时使用开发模式输出
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// 校验场景
const (
	ModeServe   = "serve"
	ModeTrain   = "train"
	ModePublish = "publish"
)

// Validate 按运行场景校验必填项，一次返回所有问题
func (c *Config) Validate(mode string) error {
	var errs []string
	switch c.FeatureEngineering.Scaling {
	case "standard", "minmax", "none":
	default:
		errs = append(errs, "feature_engineering.scaling must be standard, minmax or none")
	}

	switch mode {
	case ModeServe:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Prediction.TopK < 0 {
			errs = append(errs, "prediction.top_k must be >= 0")
		}
		if c.Prediction.ShardSize <= 0 {
			errs = append(errs, "prediction.shard_size must be > 0")
		}
		if c.Artifacts.Dir == "" && c.Artifacts.RegistryURL == "" && c.Artifacts.RedisAddr == "" {
			errs = append(errs, "one of artifacts.dir, artifacts.registry_url, artifacts.redis_addr is required")
		}
	case ModeTrain:
		if c.Train.TestSize <= 0 || c.Train.TestSize >= 1 {
			errs = append(errs, "train.test_size must be in (0, 1)")
		}
		if c.Train.Epochs <= 0 {
			errs = append(errs, "train.epochs must be > 0")
		}
		if c.Train.LearningRate <= 0 {
			errs = append(errs, "train.learning_rate must be > 0")
		}
	case ModePublish:
		if c.Artifacts.RedisAddr == "" {
			errs = append(errs, "artifacts.redis_addr is required")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
