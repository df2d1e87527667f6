package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository 基于Faiss平面索引的向量仓库
// 覆盖写入时旧向量位置被标记为失效，搜索时跳过
type FaissRepository struct {
	mu            sync.RWMutex
	index         faiss.Index
	records       map[string]Record // ID到记录
	idToPosition  map[string]int    // ID到索引内位置
	positionToID  map[int]string    // 有效位置到ID
	indexPath     string
	metaPath      string
	dimension     int
	distanceType  DistanceType
	autoSaveCount int
	pending       int
}

// faissMeta 与索引文件并存的元数据文件结构
type faissMeta struct {
	Records      map[string]Record `json:"records"`
	IDToPosition map[string]int    `json:"id_to_position"`
}

// NewFaissRepository 创建新的Faiss向量仓库
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	repo := &FaissRepository{
		records:       make(map[string]Record),
		idToPosition:  make(map[string]int),
		positionToID:  make(map[int]string),
		indexPath:     config.Path,
		dimension:     config.Dimension,
		distanceType:  distType,
		autoSaveCount: 100,
	}
	if config.Path != "" {
		repo.metaPath = config.Path + ".meta.json"
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	var err error
	if config.Path != "" && fileExists(config.Path) {
		repo.index, err = faiss.ReadIndex(config.Path, 0)
		if err == nil {
			err = repo.loadMetadata()
		}
		if err != nil && !config.CreateIfNotExists {
			return nil, fmt.Errorf("failed to load faiss index %s: %v", config.Path, err)
		}
	}
	if repo.index == nil || err != nil {
		repo.index, err = createFaissIndex(config.Dimension, distType)
		if err != nil {
			return nil, fmt.Errorf("failed to create Faiss index: %v", err)
		}
		repo.records = make(map[string]Record)
		repo.idToPosition = make(map[string]int)
		repo.positionToID = make(map[int]string)
	}
	return repo, nil
}

// createFaissIndex 创建Faiss索引
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	metric := faiss.MetricL2
	if distType == Cosine || distType == DotProduct {
		metric = faiss.MetricInnerProduct
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// Upsert 批量写入，已存在的ID会使旧位置失效
func (r *FaissRepository) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	prepared, err := prepareRecords(records, r.dimension, r.distanceType)
	if err != nil {
		return err
	}

	flat := make([]float32, 0, len(prepared)*r.dimension)
	for _, rec := range prepared {
		flat = append(flat, rec.Values...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := int(r.index.Ntotal())
	if err := r.index.Add(flat); err != nil {
		return fmt.Errorf("failed to add vectors to index: %v", err)
	}
	for i, rec := range prepared {
		if old, ok := r.idToPosition[rec.ID]; ok {
			delete(r.positionToID, old)
		}
		r.records[rec.ID] = rec
		r.idToPosition[rec.ID] = start + i
		r.positionToID[start+i] = rec.ID
	}

	r.pending += len(prepared)
	if r.pending >= r.autoSaveCount {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("auto-save failed: %v", err)
		}
		r.pending = 0
	}
	return nil
}

// Get 获取单条记录
func (r *FaissRepository) Get(_ context.Context, id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, exists := r.records[id]
	if !exists {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

// Delete 删除单条记录，索引中的向量仅标记失效
func (r *FaissRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[id]; !exists {
		return ErrRecordNotFound
	}
	delete(r.positionToID, r.idToPosition[id])
	delete(r.idToPosition, id)
	delete(r.records, id)
	r.pending++
	return nil
}

// Search 相似度搜索
func (r *FaissRepository) Search(_ context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distanceType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	k := filter.MaxResults
	if k <= 0 {
		k = 10
	}
	total := int(r.index.Ntotal())
	// 失效位置和过滤条件会丢弃部分结果，多取一些
	queryLimit := k * 2
	if len(filter.Metadata) > 0 || len(r.positionToID) < total {
		queryLimit = total
	}
	if queryLimit > total {
		queryLimit = total
	}
	if queryLimit == 0 {
		return []SearchResult{}, nil
	}

	distances, indices, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %v", err)
	}

	results := make([]SearchResult, 0, k)
	for i, idx := range indices {
		id, ok := r.positionToID[int(idx)]
		if idx < 0 || !ok {
			continue
		}
		rec := r.records[id]
		if !matchMetadata(rec.Metadata, filter.Metadata) {
			continue
		}
		dist := distances[i]
		score := r.score(dist)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{Record: rec, Score: score, Distance: dist})
		if len(results) >= k {
			break
		}
	}
	SortSearchResults(results)
	return results, nil
}

// score 内积索引返回的是相似度而不是距离
func (r *FaissRepository) score(raw float32) float32 {
	switch r.distanceType {
	case Cosine:
		return raw
	case DotProduct:
		return DistanceToScore(raw, DotProduct)
	default:
		// IndexFlatL2返回平方距离
		return DistanceToScore(float32(math.Sqrt(float64(raw))), Euclidean)
	}
}

// Count 获取有效记录总数
func (r *FaissRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// Ping 索引已加载即可用
func (r *FaissRepository) Ping(_ context.Context) error {
	if r.index == nil {
		return fmt.Errorf("faiss index not initialized")
	}
	return nil
}

// Dimension 返回向量维数
func (r *FaissRepository) Dimension() int {
	return r.dimension
}

// Close 落盘并释放索引
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.saveIndex(); err != nil {
		return fmt.Errorf("failed to save index on close: %v", err)
	}
	return nil
}

// saveIndex 保存索引和元数据到文件
func (r *FaissRepository) saveIndex() error {
	if r.indexPath == "" {
		return nil
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write index to file: %v", err)
	}

	data, err := json.Marshal(faissMeta{Records: r.records, IDToPosition: r.idToPosition})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %v", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %v", err)
	}
	return nil
}

// loadMetadata 从元数据文件恢复ID和位置映射
func (r *FaissRepository) loadMetadata() error {
	if r.metaPath == "" || !fileExists(r.metaPath) {
		return nil
	}
	data, err := os.ReadFile(r.metaPath)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %v", err)
	}
	var meta faissMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %v", err)
	}
	if meta.Records != nil {
		r.records = meta.Records
	}
	if meta.IDToPosition != nil {
		r.idToPosition = meta.IDToPosition
	}
	for id, pos := range r.idToPosition {
		r.positionToID[pos] = id
	}
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
