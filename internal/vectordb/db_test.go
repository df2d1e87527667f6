package vectordb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestRecord 创建用于测试的向量记录
func createTestRecord(id, source string, vector []float32) Record {
	return Record{
		ID:     id,
		Values: vector,
		Metadata: map[string]interface{}{
			"source_url": source,
			"chunk_text": "texto de prueba " + id,
		},
	}
}

// TestMemoryRepository 测试内存向量仓库
func TestMemoryRepository(t *testing.T) {
	repo, err := NewRepository(Config{Type: "memory", Dimension: 4, DistanceType: Cosine})
	require.NoError(t, err)
	defer repo.Close()

	testRepository(t, repo)
}

// TestFaissRepository 测试FAISS向量仓库
func TestFaissRepository(t *testing.T) {
	tempDir := t.TempDir()
	repo, err := NewRepository(Config{
		Type:              "faiss",
		Dimension:         4,
		DistanceType:      Cosine,
		Path:              filepath.Join(tempDir, "test_index"),
		CreateIfNotExists: true,
	})
	if err != nil {
		t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
	}
	defer repo.Close()

	testRepository(t, repo)
}

// TestFaissSaveAndLoad 测试FAISS索引的保存和加载功能
func TestFaissSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	indexPath := filepath.Join(t.TempDir(), "save_load_index")
	config := Config{
		Type:              "faiss",
		Dimension:         4,
		DistanceType:      Cosine,
		Path:              indexPath,
		CreateIfNotExists: true,
	}

	// 第一步：创建并填充索引
	{
		repo, err := NewRepository(config)
		if err != nil {
			t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
		}
		err = repo.Upsert(ctx, []Record{
			createTestRecord("rec1", "https://a", []float32{0.1, 0.2, 0.3, 0.4}),
			createTestRecord("rec2", "https://a", []float32{0.9, 0.1, 0.1, 0.1}),
		})
		require.NoError(t, err)
		require.NoError(t, repo.Close())
	}

	_, err := os.Stat(indexPath + ".meta.json")
	require.NoError(t, err)

	// 第二步：加载索引并验证数据
	repo, err := NewRepository(config)
	require.NoError(t, err)
	defer repo.Close()

	rec, err := repo.Get(ctx, "rec1")
	require.NoError(t, err)
	assert.Equal(t, "https://a", rec.Metadata["source_url"])

	filter := DefaultSearchFilter()
	filter.MaxResults = 1
	results, err := repo.Search(ctx, []float32{0.15, 0.25, 0.35, 0.45}, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec1", results[0].Record.ID)
}

// TestFaissAutoSave 测试FAISS的自动保存功能
func TestFaissAutoSave(t *testing.T) {
	ctx := context.Background()
	indexPath := filepath.Join(t.TempDir(), "autosave_index")
	config := Config{
		Type:              "faiss",
		Dimension:         4,
		DistanceType:      Cosine,
		Path:              indexPath,
		CreateIfNotExists: true,
	}

	repo, err := NewFaissRepository(config)
	if err != nil {
		t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
	}
	faissRepo, ok := repo.(*FaissRepository)
	require.True(t, ok)
	faissRepo.autoSaveCount = 3

	for i := 0; i < 5; i++ {
		v := float32(i+1) * 0.1
		err := repo.Upsert(ctx, []Record{createTestRecord(fmt.Sprintf("auto_%d", i), "https://a", []float32{v, v * 2, v * 3, v * 4})})
		require.NoError(t, err)
	}

	// 未关闭前索引文件应已由自动保存写出
	_, err = os.Stat(indexPath)
	assert.NoError(t, err)
	require.NoError(t, repo.Close())

	reloaded, err := NewRepository(config)
	require.NoError(t, err)
	defer reloaded.Close()

	count, err := reloaded.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

// TestFaissOverwrite 同一ID重复写入只保留最新记录
func TestFaissOverwrite(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(Config{Type: "faiss", Dimension: 4, DistanceType: Cosine})
	if err != nil {
		t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
	}
	defer repo.Close()

	require.NoError(t, repo.Upsert(ctx, []Record{createTestRecord("same", "https://old", []float32{1, 0, 0, 0})}))
	require.NoError(t, repo.Upsert(ctx, []Record{createTestRecord("same", "https://new", []float32{0, 1, 0, 0})}))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := repo.Search(ctx, []float32{1, 0, 0, 0}, DefaultSearchFilter())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://new", results[0].Record.Metadata["source_url"])
}

// testRepository 向量仓库通用测试逻辑
func testRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	v1 := []float32{0.1, 0.2, 0.3, 0.4}
	v2 := []float32{0.5, 0.5, 0.5, 0.5}
	v3 := []float32{0.9, 0.1, 0.0, 0.0}

	t.Run("upsert and get", func(t *testing.T) {
		err := repo.Upsert(ctx, []Record{createTestRecord("rec1", "https://a", v1)})
		require.NoError(t, err)

		got, err := repo.Get(ctx, "rec1")
		require.NoError(t, err)
		assert.Equal(t, "rec1", got.ID)
		assert.Equal(t, "https://a", got.Metadata["source_url"])
		assert.Equal(t, 4, repo.Dimension())
	})

	t.Run("batch upsert", func(t *testing.T) {
		err := repo.Upsert(ctx, []Record{
			createTestRecord("rec2", "https://a", v2),
			createTestRecord("rec3", "https://b", v3),
		})
		require.NoError(t, err)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		err := repo.Upsert(ctx, []Record{createTestRecord("rec2", "https://a", v2)})
		require.NoError(t, err)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("dimension mismatch rejects whole batch", func(t *testing.T) {
		err := repo.Upsert(ctx, []Record{
			createTestRecord("ok", "https://a", v1),
			createTestRecord("bad", "https://a", []float32{1, 2}),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidDimension)

		_, err = repo.Get(ctx, "ok")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("vector search", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.MaxResults = 2
		results, err := repo.Search(ctx, []float32{0.45, 0.55, 0.45, 0.55}, filter)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "rec2", results[0].Record.ID)
	})

	t.Run("metadata filter", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.Metadata = map[string]interface{}{"source_url": "https://b"}
		results, err := repo.Search(ctx, v2, filter)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "rec3", results[0].Record.ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "rec1"))
		_, err := repo.Get(ctx, "rec1")
		assert.ErrorIs(t, err, ErrRecordNotFound)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}
