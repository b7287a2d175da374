package feature

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rushteam/churnkit/core"
)

// FeatureMetadata 特征元数据，对应 feature_meta.json。
// FeatureColumns 即特征契约：训练时冻结的有序列名，模型输入必须严格按此顺序。
type FeatureMetadata struct {
	// FeatureColumns 特征列名列表（按顺序）
	FeatureColumns []string `json:"feature_columns"`
	// FeatureCount 特征数量
	FeatureCount int `json:"feature_count"`
	// LabelColumn 标签列名
	LabelColumn string `json:"label_column"`
	// ModelVersion 模型版本
	ModelVersion string `json:"model_version"`
	// SchemaVersion 外部字段映射表版本
	SchemaVersion string `json:"schema_version"`
	// Scaling 缩放方法
	Scaling string `json:"scaling"`
	// CreatedAt 创建时间
	CreatedAt string `json:"created_at"`
}

// NewFeatureMetadata 从列名创建契约
func NewFeatureMetadata(columns []string, modelVersion, scaling string) *FeatureMetadata {
	return &FeatureMetadata{
		FeatureColumns: append([]string(nil), columns...),
		FeatureCount:   len(columns),
		LabelColumn:    LabelColumn,
		ModelVersion:   modelVersion,
		SchemaVersion:  SchemaVersion,
		Scaling:        scaling,
	}
}

// LoadFeatureMetadata 从文件加载特征元数据
func LoadFeatureMetadata(path string) (*FeatureMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature metadata: %w", err)
	}
	return ParseFeatureMetadata(data)
}

// ParseFeatureMetadata 解析并校验 feature_meta.json
func ParseFeatureMetadata(data []byte) (*FeatureMetadata, error) {
	var meta FeatureMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse feature metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Validate 校验契约：非空、无重复列、数量一致、映射表版本匹配
func (m *FeatureMetadata) Validate() error {
	if len(m.FeatureColumns) == 0 {
		return core.NewDomainError(core.ModuleFeature, core.ErrorCodeArtifactCorrupted, "feature metadata: empty feature_columns")
	}
	seen := make(map[string]struct{}, len(m.FeatureColumns))
	for _, c := range m.FeatureColumns {
		if c == "" {
			return core.NewDomainError(core.ModuleFeature, core.ErrorCodeArtifactCorrupted, "feature metadata: empty column name")
		}
		if _, dup := seen[c]; dup {
			return core.NewDomainError(core.ModuleFeature, core.ErrorCodeArtifactCorrupted,
				fmt.Sprintf("feature metadata: duplicate column %q", c))
		}
		seen[c] = struct{}{}
	}
	if m.FeatureCount != 0 && m.FeatureCount != len(m.FeatureColumns) {
		return core.NewDomainError(core.ModuleFeature, core.ErrorCodeArtifactCorrupted,
			fmt.Sprintf("feature metadata: feature_count=%d but %d columns listed", m.FeatureCount, len(m.FeatureColumns)))
	}
	if m.SchemaVersion != "" && m.SchemaVersion != SchemaVersion {
		return core.NewDomainError(core.ModuleFeature, core.ErrorCodeArtifactCorrupted,
			fmt.Sprintf("feature metadata: schema version %q, this build speaks %q", m.SchemaVersion, SchemaVersion))
	}
	return nil
}

// Contract 返回契约列副本
func (m *FeatureMetadata) Contract() []string {
	return append([]string(nil), m.FeatureColumns...)
}

// GetMissingFeatures 返回表中缺失的契约列
func (m *FeatureMetadata) GetMissingFeatures(table *core.FeatureTable) []string {
	return table.MissingColumns(m.FeatureColumns...)
}

// BuildFeatureVector 按 feature_columns 顺序构建特征向量，缺失特征填 0.0
func (m *FeatureMetadata) BuildFeatureVector(features map[string]float64) []float64 {
	vector := make([]float64, len(m.FeatureColumns))
	for i, col := range m.FeatureColumns {
		if v, ok := features[col]; ok {
			vector[i] = v
		}
	}
	return vector
}

// Marshal 序列化为缩进 JSON
func (m *FeatureMetadata) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
