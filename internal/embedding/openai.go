package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultOpenAIEmbeddingModel = "text-embedding-3-small"

// OpenAIClient 兼容OpenAI嵌入接口的客户端
// 适用于OpenAI、Ollama、vLLM、LM Studio等服务
type OpenAIClient struct {
	cfg      *Config
	embedder embeddings.Embedder
}

// NewOpenAIClient 创建OpenAI兼容嵌入客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIEmbeddingModel
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	clientOpts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("create openai client: %v", err))
	}

	embedOpts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		embedOpts = append(embedOpts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(llm, embedOpts...)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("create embedder: %v", err))
	}

	return &OpenAIClient{cfg: cfg, embedder: embedder}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.cfg.Model
}

// Embed 生成单条文本的向量表示
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成向量
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
		}
		return nil, NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("embed documents: %v", err))
	}
	if len(vectors) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeCountMismatch,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	return vectors, nil
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
