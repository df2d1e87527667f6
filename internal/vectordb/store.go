package vectordb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
)

// IndexStats 单个索引的统计信息
type IndexStats struct {
	Count     int `json:"count"`
	Dimension int `json:"dimension"`
}

// IndexSet 为每个向量索引维护一个仓库实例
type IndexSet struct {
	mu    sync.RWMutex
	repos map[string]Repository
}

// NewIndexSet 按索引模式创建仓库
// base中的Path对faiss是索引目录，对qdrant是服务地址
func NewIndexSet(base Config, defs []schema.Definition) (*IndexSet, error) {
	set := &IndexSet{repos: make(map[string]Repository, len(defs))}
	for _, def := range defs {
		cfg := base
		cfg.Collection = def.Name
		cfg.Dimension = def.Dimension
		if cfg.Type == "faiss" {
			cfg.Path = filepath.Join(base.Path, def.Name+".index")
			cfg.CreateIfNotExists = true
		}
		repo, err := NewRepository(cfg)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to open vector index %s: %w", def.Name, err)
		}
		set.repos[def.Name] = repo
	}
	return set, nil
}

// NewIndexSetFromRepos 直接使用给定仓库，主要用于测试
func NewIndexSetFromRepos(repos map[string]Repository) *IndexSet {
	set := &IndexSet{repos: make(map[string]Repository, len(repos))}
	for name, repo := range repos {
		set.repos[name] = repo
	}
	return set
}

// Index 按名称获取仓库，名称不区分大小写
func (s *IndexSet) Index(name string) (Repository, error) {
	def, ok := schema.Indexes.Get(name)
	if ok {
		name = def.Name
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	repo, exists := s.repos[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, name)
	}
	return repo, nil
}

// Upsert 向指定索引写入记录
func (s *IndexSet) Upsert(ctx context.Context, index string, records []Record) error {
	repo, err := s.Index(index)
	if err != nil {
		return err
	}
	return repo.Upsert(ctx, records)
}

// Names 返回已打开的索引名
func (s *IndexSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.repos))
	for n := range s.repos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Ping 检查所有索引，返回第一个错误
func (s *IndexSet) Ping(ctx context.Context) error {
	for _, name := range s.Names() {
		repo, _ := s.Index(name)
		if err := repo.Ping(ctx); err != nil {
			return fmt.Errorf("vector index %s unreachable: %w", name, err)
		}
	}
	return nil
}

// Stats 返回各索引的记录数和维度
func (s *IndexSet) Stats(ctx context.Context) (map[string]IndexStats, error) {
	out := make(map[string]IndexStats)
	for _, name := range s.Names() {
		repo, _ := s.Index(name)
		count, err := repo.Count(ctx)
		if err != nil {
			return out, fmt.Errorf("failed to count index %s: %w", name, err)
		}
		out[name] = IndexStats{Count: count, Dimension: repo.Dimension()}
	}
	return out, nil
}

// Close 关闭所有仓库
func (s *IndexSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, repo := range s.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
