package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	ID        string // 内容摘要生成的标识符，同一内容重复下载得到相同ID
	Name      string // 原始文件名
	Size      int64  // 文件大小(字节)
	MimeType  string // 文件MIME类型
	Path      string // 存储内部路径或对象名
	LocalPath string // 本地磁盘上的绝对路径，远端存储为空
}

// Storage 下载文件的存储接口
// 本地实现用于解析，MinIO实现用于归档
type Storage interface {
	// Save 保存文件并返回文件信息
	Save(ctx context.Context, reader io.Reader, filename string) (FileInfo, error)

	// Get 获取文件内容
	Get(ctx context.Context, id string) (io.ReadCloser, error)

	// Delete 删除文件
	Delete(ctx context.Context, id string) error

	// List 列出所有文件
	List(ctx context.Context) ([]FileInfo, error)

	// Exists 检查文件是否存在
	Exists(ctx context.Context, id string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type  string      // local 或 minio
	Path  string      // 本地下载目录，minio模式下作为本地暂存目录
	Minio MinioConfig // MinIO配置
}

// New 根据配置创建存储
// minio模式返回本地暂存+MinIO归档的组合存储，解析始终使用本地文件
func New(ctx context.Context, cfg Config, log logrus.FieldLogger) (Storage, error) {
	local, err := NewLocalStorage(LocalConfig{Path: cfg.Path})
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Type) {
	case "", "local":
		return local, nil
	case "minio":
		archive, err := NewMinioStorage(ctx, cfg.Minio)
		if err != nil {
			return nil, err
		}
		return NewMirrorStorage(local, archive, log), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// getMimeType 根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// idFromName 从存储文件名中取出ID
func idFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
