package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// tempPrefix 写入中的临时文件前缀，列举时跳过
const tempPrefix = ".tmp-"

// FileStore 基于 afero 文件系统的对象存储；
// file 驱动使用限定在根目录内的 OS 文件系统，memory 驱动使用内存文件系统
type FileStore struct {
	fs     afero.Fs
	scheme string
	root   string
}

// NewFileStore 以本地目录为根创建存储
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &FileStore{
		fs:     afero.NewBasePathFs(afero.NewOsFs(), abs),
		scheme: "file",
		root:   abs,
	}, nil
}

// NewMemoryStore 内存存储，进程退出即丢失
func NewMemoryStore() *FileStore {
	return &FileStore{
		fs:     afero.NewMemMapFs(),
		scheme: "memory",
	}
}

// Put 先写临时文件再重命名，读者只会看到完整对象
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := s.name(key)
	dir := filepath.Dir(name)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录 %s 失败: %w", dir, err)
	}

	tmp := filepath.Join(dir, tempPrefix+uuid.NewString())
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("写入 %s 失败: %w", s.URL(key), err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("提交 %s 失败: %w", s.URL(key), err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, s.name(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("读取 %s 失败: %w", s.URL(key), err)
	}
	return data, nil
}

func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 从前缀中最长的目录部分开始遍历
	start := "/"
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		start = s.name(prefix[:i])
	}

	keys := []string{}
	exists, err := afero.DirExists(s.fs, start)
	if err != nil {
		return nil, fmt.Errorf("列举 %s 失败: %w", s.URL(prefix), err)
	}
	if !exists {
		return keys, nil
	}

	err = afero.Walk(s.fs, start, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), tempPrefix) {
			return nil
		}
		key := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("列举 %s 失败: %w", s.URL(prefix), err)
	}
	return keys, nil
}

func (s *FileStore) URL(key string) string {
	if s.scheme == "file" {
		return joinURL("file://"+filepath.ToSlash(s.root), key)
	}
	return joinURL(s.scheme+"://", key)
}

func (s *FileStore) Driver() string {
	return s.scheme
}

func (s *FileStore) Close() error {
	return nil
}

// name 对象键映射为文件系统路径
func (s *FileStore) name(key string) string {
	return filepath.FromSlash(path.Join("/", key))
}
