package artifact

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/rushteam/churnkit/core"
)

// WriteDir 把产物写入本地目录（清单最后写入）
func WriteDir(dir string, files map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create artifact dir %s", dir)
	}
	for name, data := range files {
		if name == FileManifest {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", name)
		}
	}
	if data, ok := files[FileManifest]; ok {
		if err := os.WriteFile(filepath.Join(dir, FileManifest), data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", FileManifest)
		}
	}
	return nil
}

// Publish 把一个来源中的完整产物复制到 Store（key = prefix + 文件名）。
// 先校验产物可以加载，再一次性原子写入，读方不会看到新旧文件混杂的版本。
func Publish(ctx context.Context, src Source, store core.Store, prefix string) (*Manifest, error) {
	bundle, err := Load(ctx, src)
	if err != nil {
		return nil, eris.Wrapf(err, "validate artifacts in %s", src.Name())
	}
	manifest := bundle.Manifest

	kvs := make(map[string][]byte, len(manifest.Files)+1)
	for _, name := range append([]string{FileManifest}, manifest.Files...) {
		if _, ok := kvs[prefix+name]; ok {
			continue
		}
		data, err := src.Fetch(ctx, name)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch %s", name)
		}
		kvs[prefix+name] = data
	}
	if err := store.BatchSet(ctx, kvs, 0); err != nil {
		return nil, eris.Wrap(err, "store artifacts")
	}
	return manifest, nil
}
