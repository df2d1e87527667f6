package vectordb

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// MemoryRepository 内存向量仓库实现
// 用于开发、模拟运行和测试
type MemoryRepository struct {
	mu        sync.RWMutex
	dimension int
	distType  DistanceType
	records   map[string]Record
}

// NewMemoryRepository 创建内存向量仓库
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType != Cosine && distType != DotProduct && distType != Euclidean {
		distType = Cosine
	}

	return &MemoryRepository{
		dimension: config.Dimension,
		distType:  distType,
		records:   make(map[string]Record),
	}, nil
}

// Upsert 批量写入，ID相同的记录被覆盖
func (r *MemoryRepository) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	prepared, err := prepareRecords(records, r.dimension, r.distType)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range prepared {
		r.records[rec.ID] = rec
	}
	return nil
}

// Get 获取单条记录
func (r *MemoryRepository) Get(_ context.Context, id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

// Delete 删除单条记录
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return ErrRecordNotFound
	}
	delete(r.records, id)
	return nil
}

// Search 相似度搜索
func (r *MemoryRepository) Search(_ context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	candidates := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if matchMetadata(rec.Metadata, filter.Metadata) {
			candidates = append(candidates, rec)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	// 根据CPU核心数量决定线程数，小数据量不使用并发
	threads := runtime.NumCPU() * 4 / 5
	var results []SearchResult
	var err error
	if len(candidates) < 100 || threads <= 1 {
		results, err = r.score(vector, candidates, filter.MinScore)
	} else {
		results, err = r.parallelScore(vector, candidates, filter.MinScore, threads)
	}
	if err != nil {
		return nil, err
	}

	SortSearchResults(results)
	if filter.MaxResults > 0 && len(results) > filter.MaxResults {
		results = results[:filter.MaxResults]
	}
	return results, nil
}

// score 串行计算得分
func (r *MemoryRepository) score(vector []float32, records []Record, minScore float32) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(records))
	for _, rec := range records {
		dist, err := ComputeDistance(vector, rec.Values, r.distType)
		if err != nil {
			return nil, fmt.Errorf("error computing distance: %v", err)
		}
		score := DistanceToScore(dist, r.distType)
		if score >= minScore {
			results = append(results, SearchResult{Record: rec, Score: score, Distance: dist})
		}
	}
	return results, nil
}

// parallelScore 分片并行计算得分
func (r *MemoryRepository) parallelScore(vector []float32, records []Record, minScore float32, threads int) ([]SearchResult, error) {
	perThread := (len(records) + threads - 1) / threads

	type part struct {
		results []SearchResult
		err     error
	}
	parts := make(chan part, threads)
	started := 0

	for start := 0; start < len(records); start += perThread {
		end := start + perThread
		if end > len(records) {
			end = len(records)
		}
		started++
		go func(slice []Record) {
			res, err := r.score(vector, slice, minScore)
			parts <- part{results: res, err: err}
		}(records[start:end])
	}

	var all []SearchResult
	var firstErr error
	for i := 0; i < started; i++ {
		p := <-parts
		if p.err != nil && firstErr == nil {
			firstErr = p.err
		}
		all = append(all, p.results...)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

// Count 获取记录总数
func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// Ping 内存实现始终可用
func (r *MemoryRepository) Ping(_ context.Context) error {
	return nil
}

// Dimension 返回向量维数
func (r *MemoryRepository) Dimension() int {
	return r.dimension
}

// Close 内存实现无需释放资源
func (r *MemoryRepository) Close() error {
	return nil
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
