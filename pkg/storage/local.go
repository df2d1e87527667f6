package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStorage 本地文件存储实现
// 文件按内容摘要命名，保存在 {base}/{摘要前两位}/{摘要}{扩展名}
type LocalStorage struct {
	basePath string
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if cfg.Path == "" {
		cfg.Path = "./downloads"
	}
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: absPath}, nil
}

// BasePath 返回存储根目录
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// Save 写入临时文件并计算摘要，再移动到最终位置
func (s *LocalStorage) Save(ctx context.Context, reader io.Reader, filename string) (FileInfo, error) {
	tmp, err := os.CreateTemp(s.basePath, ".download-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), &ctxReader{ctx: ctx, r: reader})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	id := hex.EncodeToString(hasher.Sum(nil))[:32]
	relPath := filepath.Join(id[:2], id+filepath.Ext(filename))
	fullPath := filepath.Join(s.basePath, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return FileInfo{}, fmt.Errorf("failed to move file: %w", err)
	}

	return FileInfo{
		ID:        id,
		Name:      filename,
		Size:      size,
		MimeType:  getMimeType(filename),
		Path:      relPath,
		LocalPath: fullPath,
	}, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	path, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete 删除文件
func (s *LocalStorage) Delete(ctx context.Context, id string) error {
	path, err := s.find(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// List 列出所有文件
func (s *LocalStorage) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name()[0] == '.' {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			ID:        idFromName(path),
			Name:      d.Name(),
			Size:      info.Size(),
			MimeType:  getMimeType(path),
			Path:      rel,
			LocalPath: path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.find(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// find 在摘要前缀目录下查找文件
func (s *LocalStorage) find(id string) (string, error) {
	if len(id) < 2 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	matches, err := filepath.Glob(filepath.Join(s.basePath, id[:2], id+"*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if idFromName(m) == id {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ctxReader 在复制过程中响应取消
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
