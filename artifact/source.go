package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rushteam/churnkit/core"
)

// Source 是产物来源：按文件名读取产物内容。
// 文件不存在返回 NOT_FOUND，来源不可达返回 UNAVAILABLE。
type Source interface {
	// Name 来源名称（用于日志与 /health 的 source 字段）
	Name() string

	// Fetch 读取一个产物文件
	Fetch(ctx context.Context, file string) ([]byte, error)
}

// ErrArtifactNotFound 产物文件不存在
var ErrArtifactNotFound = core.NewDomainError(core.ModuleArtifact, core.ErrorCodeNotFound, "artifact: file not found")

// FileSource 本地目录
type FileSource struct {
	Dir string
}

// NewFileSource 创建本地目录来源
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

func (s *FileSource) Name() string { return "local:" + s.Dir }

func (s *FileSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, file))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", file, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeUnavailable, err, "artifact: read "+file)
	}
	return data, nil
}

// HTTPSource 模型注册中心：GET {BaseURL}/{Name}/{file}
type HTTPSource struct {
	BaseURL string
	Model   string
	client  *http.Client
}

// NewHTTPSource 创建注册中心来源
//
// 用法：
//
//	src := artifact.NewHTTPSource("http://registry:8080/models", "ChurnPredictionModel", 5*time.Second)
//	data, err := src.Fetch(ctx, artifact.FileManifest)
func NewHTTPSource(baseURL, model string, timeout time.Duration) *HTTPSource {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return "registry:" + s.BaseURL }

func (s *HTTPSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	u := s.BaseURL + "/" + url.PathEscape(s.Model) + "/" + url.PathEscape(file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeUnavailable, err, "artifact: registry request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", file, ErrArtifactNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeUnavailable,
			fmt.Sprintf("artifact: registry status=%d, body=%s", resp.StatusCode, string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeUnavailable, err, "artifact: read registry response")
	}
	return data, nil
}

// StoreSource 从 core.Store（如 Redis）读取，key = Prefix + file
type StoreSource struct {
	Store  core.Store
	Prefix string
}

// NewStoreSource 创建 Store 来源
func NewStoreSource(store core.Store, prefix string) *StoreSource {
	return &StoreSource{Store: store, Prefix: prefix}
}

func (s *StoreSource) Name() string { return "store:" + s.Store.Name() }

func (s *StoreSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	data, err := s.Store.Get(ctx, s.Prefix+file)
	if core.IsStoreNotFound(err) {
		return nil, fmt.Errorf("%s: %w", file, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeUnavailable, err, "artifact: store get "+file)
	}
	return data, nil
}
