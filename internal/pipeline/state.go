package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/extraction"
	"github.com/fyerfyer/fin-data-pipeline/internal/loading"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/internal/structuring"
	"github.com/fyerfyer/fin-data-pipeline/internal/usage"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
)

// Work 单个抽取条目在各阶段的处理结果
// 每个条目只由一个协程修改
type Work struct {
	Item    extraction.Item
	Route   schema.Route
	Records []structuring.Record // 通过校验的记录
	Invalid int                  // 未通过校验的记录数
	Vectors []vectordb.Record
	Load    *loading.LoadResult
	Errors  []string
}

func (w *Work) fail(stage string, err error) {
	w.Errors = append(w.Errors, fmt.Sprintf("%s: %v", stage, err))
}

// RunState 一次运行在阶段之间传递的状态
type RunState struct {
	Sources []config.Source
	Usage   *usage.Usage

	mu            sync.Mutex
	work          []*Work
	failedSources map[string]string
	pool          *ants.Pool
}

func newRunState(sources []config.Source, pool *ants.Pool) *RunState {
	return &RunState{
		Sources:       sources,
		Usage:         usage.New(),
		failedSources: make(map[string]string),
		pool:          pool,
	}
}

// AddItems 追加抽取结果，可并发调用
func (s *RunState) AddItems(items ...extraction.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.work = append(s.work, &Work{Item: it})
	}
}

// SourceFailed 记录数据源失败，可并发调用
func (s *RunState) SourceFailed(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedSources[name] = err.Error()
}

// WorkItems 返回当前条目
func (s *RunState) WorkItems() []*Work {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Work, len(s.work))
	copy(out, s.work)
	return out
}

// ForEach 对每个下标执行fn，有协程池时并发执行
// 单个fn的panic被恢复并交给onPanic，不影响其他下标
func (s *RunState) ForEach(ctx context.Context, n int, fn func(i int), onPanic func(i int, r interface{})) error {
	run := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				onPanic(i, r)
			}
		}()
		fn(i)
	}

	if s.pool == nil || n <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			run(i)
		}
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			run(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("submit task: %w", err)
		}
	}
	wg.Wait()
	return ctx.Err()
}
