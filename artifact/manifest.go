// Package artifact 负责模型产物的读写：清单、来源（本地目录 / HTTP 注册中心 / Store）、
// 加载校验为不可变的 Bundle，以及发布。
package artifact

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/churnkit/core"
)

// 产物文件名
const (
	FileManifest      = "manifest.yaml"
	FileFeatureMeta   = "feature_meta.json"
	FilePreprocess    = "preprocess.json"
	FileModel         = "model.json"
	FileModelMetadata = "model_metadata.json"
	FileExplainer     = "explainer.json"
)

// ComponentSpec 描述分类器或解释器的实现类型
type ComponentSpec struct {
	Type      string `yaml:"type"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty"`
}

// Manifest 是产物清单（manifest.yaml），列出版本与各组件的类型
type Manifest struct {
	Name       string        `yaml:"name"`
	Version    string        `yaml:"version"`
	ModelType  string        `yaml:"model_type"`
	CreatedAt  string        `yaml:"created_at"`
	Classifier ComponentSpec `yaml:"classifier"`
	Explainer  ComponentSpec `yaml:"explainer"`
	Files      []string      `yaml:"files"`
}

// ParseManifest 解析并校验清单
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeArtifactCorrupted, err, "artifact: parse manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate 必填字段检查
func (m *Manifest) Validate() error {
	switch {
	case m.Name == "":
		return corrupted("manifest: name is required")
	case m.Version == "":
		return corrupted("manifest: version is required")
	case m.Classifier.Type == "":
		return corrupted("manifest: classifier.type is required")
	}
	return nil
}

// Marshal 序列化为 YAML
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

func corrupted(format string, args ...any) error {
	return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeArtifactCorrupted, "artifact: "+fmt.Sprintf(format, args...))
}

func wrapCorrupted(err error, format string, args ...any) error {
	return core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeArtifactCorrupted, err, "artifact: "+fmt.Sprintf(format, args...))
}
