package embedding

import (
	"context"
	"fmt"
	"net/http"
)

const (
	defaultDashScopeEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
	defaultTongyiModel       = "text-embedding-v3"
)

// TongyiClient 通义千问DashScope嵌入客户端
// OpenAI兼容模式请使用openai客户端并设置compatible-mode地址
type TongyiClient struct {
	cfg        *Config
	endpoint   string
	httpClient *http.Client
}

// NewTongyiClient 创建新的通义千问嵌入客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = defaultTongyiModel
	}
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultDashScopeEndpoint
	}

	c := &TongyiClient{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if c.isV3Model() && cfg.Dimensions != 0 && !isValidDimension(cfg.Dimensions) {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("invalid dimension: %d", cfg.Dimensions))
	}
	return c, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.cfg.Model
}

// Embed 生成单条文本的向量表示
func (c *TongyiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成文本的向量表示
func (c *TongyiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if limit := c.maxBatch(); len(texts) > limit {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("%s supports at most %d texts per batch", c.cfg.Model, limit))
	}

	req := DashScopeRequest{
		Model: c.cfg.Model,
		Input: DashScopeRequestInput{Texts: texts},
	}
	if c.isV3Model() {
		req.Parameters = &DashScopeParameters{OutputType: "dense", Dimension: c.cfg.Dimensions}
	}

	var resp DashScopeResponse
	err := doPost(ctx, c.httpClient, c.endpoint,
		map[string]string{"Authorization": "Bearer " + c.cfg.APIKey},
		req, &resp, c.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 0 && resp.StatusCode != http.StatusOK {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("API error: %s (%s)", resp.Message, resp.Code))
	}
	if len(resp.Output.Embeddings) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeCountMismatch,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Output.Embeddings)))
	}

	// 按text_index还原输入顺序
	result := make([][]float32, len(texts))
	for _, emb := range resp.Output.Embeddings {
		if emb.TextIndex < 0 || emb.TextIndex >= len(texts) {
			return nil, NewEmbeddingError(ErrCodeServerError,
				fmt.Sprintf("text_index out of range: %d", emb.TextIndex))
		}
		result[emb.TextIndex] = emb.Embedding
	}
	return result, nil
}

func (c *TongyiClient) maxBatch() int {
	if c.isV3Model() {
		return 10
	}
	return 25
}

func (c *TongyiClient) isV3Model() bool {
	return c.cfg.Model == "text-embedding-v3"
}

// isValidDimension v3模型支持的输出维度
func isValidDimension(dim int) bool {
	switch dim {
	case 1024, 768, 512, 256, 128, 64:
		return true
	}
	return false
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
