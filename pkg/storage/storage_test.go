package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	content := "Resolución BCP 2024"
	info, err := local.Save(ctx, strings.NewReader(content), "resolucion.pdf")
	require.NoError(t, err)

	t.Run("Save", func(t *testing.T) {
		assert.Len(t, info.ID, 32)
		assert.Equal(t, "resolucion.pdf", info.Name)
		assert.Equal(t, int64(len(content)), info.Size)
		assert.Equal(t, "application/pdf", info.MimeType)
		assert.FileExists(t, info.LocalPath)
		assert.True(t, strings.HasSuffix(info.LocalPath, ".pdf"))
	})

	t.Run("SameContentSameID", func(t *testing.T) {
		again, err := local.Save(ctx, strings.NewReader(content), "otra.pdf")
		require.NoError(t, err)
		assert.Equal(t, info.ID, again.ID)
	})

	t.Run("Get", func(t *testing.T) {
		rc, err := local.Get(ctx, info.ID)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})

	t.Run("ListAndExists", func(t *testing.T) {
		files, err := local.List(ctx)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, info.ID, files[0].ID)

		ok, err := local.Exists(ctx, info.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = local.Exists(ctx, "ffffffff")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, local.Delete(ctx, info.ID))
		_, err := local.Get(ctx, info.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, local.Delete(ctx, info.ID), ErrNotFound)
	})
}

func TestLocalStorageCanceledContext(t *testing.T) {
	local, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = local.Save(ctx, strings.NewReader("x"), "a.txt")
	assert.ErrorIs(t, err, context.Canceled)

	files, err := local.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

// memArchive 内存归档实现
type memArchive struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  bool
}

func newMemArchive() *memArchive {
	return &memArchive{files: make(map[string][]byte)}
}

func (a *memArchive) Save(ctx context.Context, r io.Reader, filename string) (FileInfo, error) {
	return FileInfo{}, errors.New("not used")
}

func (a *memArchive) SaveWithID(ctx context.Context, r io.Reader, size int64, id, filename string) (FileInfo, error) {
	if a.fail {
		return FileInfo{}, errors.New("archive unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return FileInfo{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[id] = data
	return FileInfo{ID: id, Name: filename, Size: size}, nil
}

func (a *memArchive) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *memArchive) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.files, id)
	return nil
}

func (a *memArchive) List(ctx context.Context) ([]FileInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []FileInfo
	for id, data := range a.files {
		out = append(out, FileInfo{ID: id, Size: int64(len(data))})
	}
	return out, nil
}

func (a *memArchive) Exists(ctx context.Context, id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.files[id]
	return ok, nil
}

func TestMirrorStorage(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	archive := newMemArchive()
	mirror := NewMirrorStorage(local, archive, logrus.New())

	info, err := mirror.Save(ctx, strings.NewReader("planilla"), "datos.xlsx")
	require.NoError(t, err)
	assert.FileExists(t, info.LocalPath)
	assert.Equal(t, []byte("planilla"), archive.files[info.ID])

	// 本地副本删除后从归档读取
	require.NoError(t, os.Remove(info.LocalPath))
	rc, err := mirror.Get(ctx, info.ID)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "planilla", string(data))

	ok, err := mirror.Exists(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mirror.Delete(ctx, info.ID))
	ok, _ = mirror.Exists(ctx, info.ID)
	assert.False(t, ok)
}

func TestMirrorStorageArchiveFailure(t *testing.T) {
	local, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	archive := newMemArchive()
	archive.fail = true

	info, err := NewMirrorStorage(local, archive, logrus.New()).
		Save(context.Background(), strings.NewReader("x"), "a.pdf")
	require.NoError(t, err)
	assert.FileExists(t, info.LocalPath)
	assert.Empty(t, archive.files)
}

func TestNewStorage(t *testing.T) {
	s, err := New(context.Background(), Config{Type: "local", Path: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(context.Background(), Config{Type: "s3", Path: t.TempDir()}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Type: "minio", Path: t.TempDir()}, nil)
	assert.Error(t, err)
}

// TestMinioStorage 需要本地MinIO服务，设置MINIO_ENDPOINT时才运行
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set, skipping MinIO test")
	}
	ctx := context.Background()
	ms, err := NewMinioStorage(ctx, MinioConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    "finpipe-test",
	})
	require.NoError(t, err)

	info, err := ms.Save(ctx, strings.NewReader("contenido"), "a.txt")
	require.NoError(t, err)
	ok, err := ms.Exists(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, ms.Delete(ctx, info.ID))
}
