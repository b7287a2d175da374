package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rushteam/churnkit/core"
)

// RPCModel 是通过 HTTP 调用外部模型服务的 core.Classifier 实现。
// 适用于 GBDT、XGBoost、sklearn 等在独立进程中服务的模型。
type RPCModel struct {
	name      string
	Endpoint  string // 例如 "http://localhost:8080/predict"
	Timeout   time.Duration
	Threshold float64
	Client    *http.Client
}

func NewRPCModel(name, endpoint string, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPCModel{
		name:      name,
		Endpoint:  endpoint,
		Timeout:   timeout,
		Threshold: DefaultThreshold,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (m *RPCModel) Name() string {
	return m.name
}

// PredictProba 调用远程模型服务进行批量预测。
// 请求格式（JSON）：
//
//	{"columns": ["Age", ...], "rows": [[30, ...], ...]}
//
// 响应格式（JSON），scores 为正类概率：
//
//	{"scores": [0.85, 0.72, ...]}
func (m *RPCModel) PredictProba(ctx context.Context, table *core.FeatureTable) ([][]float64, error) {
	if table.NumRows() == 0 {
		return [][]float64{}, nil
	}
	if err := checkFinite(table); err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(map[string]any{
		"columns": table.Columns,
		"rows":    table.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result.Scores) != table.NumRows() {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", table.NumRows(), len(result.Scores))
	}

	out := make([][]float64, len(result.Scores))
	for i, s := range result.Scores {
		if s < 0 || s > 1 {
			return nil, fmt.Errorf("response score %d out of range: %v", i, s)
		}
		out[i] = []float64{1 - s, s}
	}
	return out, nil
}

func (m *RPCModel) Predict(ctx context.Context, table *core.FeatureTable) ([]int, error) {
	proba, err := m.PredictProba(ctx, table)
	if err != nil {
		return nil, err
	}
	return LabelsFromProba(proba, m.Threshold), nil
}
