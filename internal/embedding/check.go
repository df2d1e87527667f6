package embedding

import (
	"context"
	"fmt"
	"time"
)

// ProbeText 连通性检查使用的探测文本
const ProbeText = "Prueba de conexión del modelo de embeddings"

// CheckResult 嵌入服务连通性检查结果
type CheckResult struct {
	Model     string        `json:"model"`
	Dimension int           `json:"dimension"`
	Latency   time.Duration `json:"latency"`
	Sample    []float32     `json:"sample,omitempty"`
}

// ConnectionCheck 嵌入一段探测文本并校验返回维度
// expectedDim为0时不校验维度
func ConnectionCheck(ctx context.Context, client Client, expectedDim int) (*CheckResult, error) {
	start := time.Now()
	vector, err := client.Embed(ctx, ProbeText)
	if err != nil {
		return nil, fmt.Errorf("embedding probe failed: %w", err)
	}

	result := &CheckResult{
		Model:     client.Name(),
		Dimension: len(vector),
		Latency:   time.Since(start),
	}
	if n := len(vector); n > 0 {
		result.Sample = vector[:min(5, n)]
	}
	if expectedDim > 0 && len(vector) != expectedDim {
		return result, NewEmbeddingError(ErrCodeDimensionMismatch,
			fmt.Sprintf("model returned dimension %d, expected %d", len(vector), expectedDim))
	}
	return result, nil
}
