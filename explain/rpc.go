package explain

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

// RPCExplainer 通过 HTTP 调用外部归因服务（如 SHAP sidecar）。
//
// 请求格式（JSON）：
//
//	{"columns": ["Age", ...], "rows": [[30, ...]]}
//
// 响应格式（JSON），shape 取值 matrix / class_pair / tensor，其余按 unknown 处理：
//
//	{"shape": "class_pair", "values": [[[...]], [[...]]]}
type RPCExplainer struct {
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
}

func NewRPCExplainer(endpoint string, timeout time.Duration) *RPCExplainer {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPCExplainer{
		Endpoint: endpoint,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (e *RPCExplainer) Name() string { return "rpc" }

func (e *RPCExplainer) Attribute(ctx context.Context, row *core.FeatureTable) (core.Attribution, error) {
	body, err := json.Marshal(map[string]any{
		"columns": row.Columns,
		"rows":    row.Rows,
	})
	if err != nil {
		return core.Attribution{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return core.Attribution{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return core.Attribution{}, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Attribution{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.Attribution{}, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(data))
	}
	return DecodeAttribution(data)
}

// DecodeAttribution 把 {"shape", "values"} 信封解码为带标签的 Attribution。
func DecodeAttribution(data []byte) (core.Attribution, error) {
	var env struct {
		Shape  string          `json:"shape"`
		Values json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return core.Attribution{}, fmt.Errorf("decode attribution: %w", err)
	}

	switch shape := core.ParseAttributionShape(env.Shape); shape {
	case core.ShapeMatrix:
		var m [][]float64
		if err := json.Unmarshal(env.Values, &m); err != nil {
			return core.Attribution{}, fmt.Errorf("decode matrix attribution: %w", err)
		}
		return core.NewMatrixAttribution(m), nil
	case core.ShapeClassPair:
		var pc [][][]float64
		if err := json.Unmarshal(env.Values, &pc); err != nil {
			return core.Attribution{}, fmt.Errorf("decode class_pair attribution: %w", err)
		}
		return core.NewClassPairAttribution(pc...), nil
	case core.ShapeTensor:
		var t [][][]float64
		if err := json.Unmarshal(env.Values, &t); err != nil {
			return core.Attribution{}, fmt.Errorf("decode tensor attribution: %w", err)
		}
		return core.NewTensorAttribution(t), nil
	default:
		var raw [][]float64
		if err := json.Unmarshal(env.Values, &raw); err == nil {
			return core.NewUnknownAttribution(raw), nil
		}
		var flat []float64
		if err := json.Unmarshal(env.Values, &flat); err != nil {
			return core.Attribution{}, fmt.Errorf("decode %q attribution: %w", env.Shape, err)
		}
		return core.NewUnknownAttribution([][]float64{flat}), nil
	}
}
