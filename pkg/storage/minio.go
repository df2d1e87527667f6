package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO归档存储
// 对象名为 {前缀}/{摘要前两位}/{摘要}{扩展名}
type MinioStorage struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
	Prefix    string // 对象名前缀
}

// NewMinioStorage 创建MinIO存储实例，桶不存在时创建
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "downloads"
	}
	return &MinioStorage{client: client, bucketName: cfg.Bucket, prefix: prefix}, nil
}

// Save 上传文件到MinIO
// 先缓冲到临时文件计算摘要，避免整文件读入内存
func (s *MinioStorage) Save(ctx context.Context, reader io.Reader, filename string) (FileInfo, error) {
	tmp, err := os.CreateTemp("", "minio-upload-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to buffer file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return FileInfo{}, err
	}

	id := hex.EncodeToString(hasher.Sum(nil))[:32]
	return s.put(ctx, tmp, size, id, filename)
}

// SaveWithID 以已知ID上传，供组合存储复用本地摘要
func (s *MinioStorage) SaveWithID(ctx context.Context, reader io.Reader, size int64, id, filename string) (FileInfo, error) {
	return s.put(ctx, reader, size, id, filename)
}

func (s *MinioStorage) put(ctx context.Context, reader io.Reader, size int64, id, filename string) (FileInfo, error) {
	objectName := path.Join(s.prefix, id[:2], id+filepath.Ext(filename))
	contentType := getMimeType(filename)

	_, err := s.client.PutObject(ctx, s.bucketName, objectName, reader, size,
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{"original-name": filename},
		})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     size,
		MimeType: contentType,
		Path:     objectName,
	}, nil
}

// Get 获取MinIO中的文件
func (s *MinioStorage) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	objectName, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// Delete 从MinIO中删除文件
func (s *MinioStorage) Delete(ctx context.Context, id string) error {
	objectName, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List 列出前缀下的所有文件
func (s *MinioStorage) List(ctx context.Context) ([]FileInfo, error) {
	return s.list(ctx, s.prefix+"/")
}

// Exists 检查MinIO中是否存在指定ID的文件
func (s *MinioStorage) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.find(ctx, id)
	if err == nil {
		return true, nil
	}
	if errorsIsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *MinioStorage) list(ctx context.Context, prefix string) ([]FileInfo, error) {
	var files []FileInfo
	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		files = append(files, FileInfo{
			ID:       idFromName(object.Key),
			Name:     path.Base(object.Key),
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
			Path:     object.Key,
		})
	}
	return files, nil
}

// find 只列出摘要前缀目录
func (s *MinioStorage) find(ctx context.Context, id string) (string, error) {
	if len(id) < 2 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	files, err := s.list(ctx, path.Join(s.prefix, id[:2])+"/")
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.ID == id {
			return f.Path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}
