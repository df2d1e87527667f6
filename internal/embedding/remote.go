package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// RemoteClient 托管嵌入服务客户端
// 服务通过隧道暴露/embed接口，请求需带bypass-tunnel-reminder头
type RemoteClient struct {
	cfg        *Config
	endpoint   string
	httpClient *http.Client
}

// NewRemoteClient 创建托管嵌入客户端
func NewRemoteClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.BaseURL == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, "remote embedding endpoint is required")
	}
	return &RemoteClient{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/embed",
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name 返回模型名称
func (c *RemoteClient) Name() string {
	if c.cfg.Model != "" {
		return c.cfg.Model
	}
	return "remote"
}

// Embed 生成单条文本的向量表示
func (c *RemoteClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	var resp RemoteResponse
	if err := c.post(ctx, RemoteSingleRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, NewEmbeddingError(ErrCodeServerError, "no embeddings returned from model")
	}
	return resp.Embeddings[0], nil
}

// EmbedBatch 一次请求嵌入多条文本
func (c *RemoteClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp RemoteResponse
	if err := c.post(ctx, RemoteBatchRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeCountMismatch,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}
	return resp.Embeddings, nil
}

func (c *RemoteClient) post(ctx context.Context, payload, out interface{}) error {
	return doPost(ctx, c.httpClient, c.endpoint,
		map[string]string{"bypass-tunnel-reminder": "true"},
		payload, out, c.cfg.MaxRetries)
}

func init() {
	RegisterClient("remote", NewRemoteClient)
}
