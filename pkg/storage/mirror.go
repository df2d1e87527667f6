package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Archiver 可按已知ID上传的远端存储
type Archiver interface {
	Storage
	SaveWithID(ctx context.Context, reader io.Reader, size int64, id, filename string) (FileInfo, error)
}

// MirrorStorage 本地暂存+远端归档
// 读操作优先本地，本地缺失时回退到远端
type MirrorStorage struct {
	local   *LocalStorage
	archive Archiver
	log     logrus.FieldLogger
}

// NewMirrorStorage 创建组合存储
func NewMirrorStorage(local *LocalStorage, archive Archiver, log logrus.FieldLogger) *MirrorStorage {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MirrorStorage{local: local, archive: archive, log: log}
}

// Save 先写本地，再以相同ID上传归档
// 归档失败只记录警告，本地副本仍可用于解析
func (m *MirrorStorage) Save(ctx context.Context, reader io.Reader, filename string) (FileInfo, error) {
	info, err := m.local.Save(ctx, reader, filename)
	if err != nil {
		return FileInfo{}, err
	}

	if err := m.upload(ctx, info); err != nil {
		m.log.WithFields(logrus.Fields{
			"file": filename,
			"id":   info.ID,
		}).WithError(err).Warn("Failed to archive downloaded file")
	}
	return info, nil
}

func (m *MirrorStorage) upload(ctx context.Context, info FileInfo) error {
	f, err := os.Open(info.LocalPath)
	if err != nil {
		return fmt.Errorf("reopen local copy: %w", err)
	}
	defer f.Close()

	_, err = m.archive.SaveWithID(ctx, f, info.Size, info.ID, info.Name)
	return err
}

// Get 优先读取本地副本
func (m *MirrorStorage) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	rc, err := m.local.Get(ctx, id)
	if err == nil {
		return rc, nil
	}
	if !errorsIsNotFound(err) {
		return nil, err
	}
	return m.archive.Get(ctx, id)
}

// Delete 删除两侧副本
func (m *MirrorStorage) Delete(ctx context.Context, id string) error {
	localErr := m.local.Delete(ctx, id)
	if errorsIsNotFound(localErr) {
		localErr = nil
	}
	return errors.Join(localErr, m.archive.Delete(ctx, id))
}

// List 以归档为准
func (m *MirrorStorage) List(ctx context.Context) ([]FileInfo, error) {
	return m.archive.List(ctx)
}

// Exists 任一侧存在即可
func (m *MirrorStorage) Exists(ctx context.Context, id string) (bool, error) {
	if ok, err := m.local.Exists(ctx, id); err == nil && ok {
		return true, nil
	}
	return m.archive.Exists(ctx, id)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
