package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RemoteClient 托管模型服务客户端
// 服务通过隧道暴露/generate接口
type RemoteClient struct {
	cfg        *Config
	endpoint   string
	httpClient *http.Client
}

// NewRemoteClient 创建托管模型客户端
func NewRemoteClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.BaseURL == "" {
		return nil, NewLLMError(ErrCodeInvalidRequest, "remote llm endpoint is required")
	}
	return &RemoteClient{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/generate",
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

// Generate 调用/generate并去掉回显的提示词
func (c *RemoteClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	maxTokens, temperature, _ := resolve(c.cfg, options)

	body, status, err := postJSON(ctx, c.httpClient, c.endpoint,
		map[string]string{"bypass-tunnel-reminder": "true"},
		RemoteRequest{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature},
		c.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("API error (status %d): %s", status, truncate(string(body), 200)))
	}

	var remoteResp RemoteResponse
	if err := json.Unmarshal(body, &remoteResp); err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}

	text := remoteResp.Response
	echoed := remoteResp.Prompt
	if echoed == "" {
		echoed = prompt
	}
	text = strings.TrimSpace(strings.TrimPrefix(text, echoed))

	return &Response{
		Text:       text,
		ModelName:  c.Name(),
		FinishTime: time.Now(),
	}, nil
}

func init() {
	RegisterClient("remote", NewRemoteClient)
}
