package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// BatchProcessor 批处理器
// 将大量文本切成小批次，在协程池中并行调用嵌入客户端
type BatchProcessor struct {
	client    Client
	batchSize int
	pool      *ants.Pool
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) (*BatchProcessor, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	pool, err := ants.NewPool(maxWorkers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}

	return &BatchProcessor{
		client:    client,
		batchSize: batchSize,
		pool:      pool,
	}, nil
}

// Release 释放协程池
func (p *BatchProcessor) Release() {
	p.pool.Release()
}

// Name 返回底层模型名称
func (p *BatchProcessor) Name() string {
	return p.client.Name()
}

// Embed 直接调用底层客户端
func (p *BatchProcessor) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.client.Embed(ctx, text)
}

// EmbedBatch 分批并行生成向量，结果与输入一一对应
// 空文本不发送给模型，对应位置为nil
func (p *BatchProcessor) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// 记录非空文本的原始位置
	positions := make([]int, 0, len(texts))
	filtered := make([]string, 0, len(texts))
	for i, text := range texts {
		if text != "" {
			positions = append(positions, i)
			filtered = append(filtered, text)
		}
	}

	results := make([][]float32, len(texts))
	if len(filtered) == 0 {
		return results, nil
	}

	batches := splitIntoBatches(filtered, p.batchSize)
	batchVectors := make([][][]float32, len(batches))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	for i, batch := range batches {
		i, batch := i, batch
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				fail(ctx.Err())
				return
			}
			vectors, err := p.client.EmbedBatch(ctx, batch)
			if err != nil {
				fail(fmt.Errorf("batch %d: %w", i, err))
				return
			}
			if len(vectors) != len(batch) {
				fail(NewEmbeddingError(ErrCodeCountMismatch,
					fmt.Sprintf("batch %d: expected %d embeddings, got %d", i, len(batch), len(vectors))))
				return
			}
			batchVectors[i] = vectors
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit batch %d: %w", i, submitErr))
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	k := 0
	for _, vectors := range batchVectors {
		for _, v := range vectors {
			results[positions[k]] = v
			k++
		}
	}
	return results, nil
}

// splitIntoBatches 将文本列表分割成多个批次
func splitIntoBatches(texts []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = 1
	}
	batches := make([][]string, 0, (len(texts)+batchSize-1)/batchSize)
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}
