package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// 通义千问API端点
	defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
)

// TongyiClient 通义千问大模型客户端实现
type TongyiClient struct {
	cfg        *Config
	baseURL    string
	httpClient *http.Client
}

// NewTongyiClient 创建新的通义千问大模型客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = ModelQwenTurbo
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTongyiEndpoint
	}

	return &TongyiClient{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.cfg.Model
}

// Generate 根据提示词生成回答
func (c *TongyiClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	maxTokens, temperature, _ := resolve(c.cfg, options)

	params := &TongyiParameters{ResultFormat: "message"}
	if maxTokens > 0 {
		params.MaxTokens = &maxTokens
	}
	if temperature > 0 {
		params.Temperature = &temperature
	}

	req := &TongyiRequest{
		Model:      c.cfg.Model,
		Input:      &TongyiRequestInput{Messages: []Message{{Role: RoleUser, Content: prompt}}},
		Parameters: params,
	}

	body, status, err := postJSON(ctx, c.httpClient, c.baseURL,
		map[string]string{"Authorization": "Bearer " + c.cfg.APIKey},
		req, c.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Message != "" {
			code := ErrCodeServerError
			if status == http.StatusUnauthorized {
				code = ErrCodeInvalidAPIKey
			} else if status == http.StatusTooManyRequests {
				code = ErrCodeRateLimited
			}
			return nil, NewLLMError(code, fmt.Sprintf("API error: %s (%s)", errResp.Message, errResp.Code))
		}
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error (status %d): %s", status, truncate(string(body), 200)))
	}

	var tongyiResp TongyiResponse
	if err := json.Unmarshal(body, &tongyiResp); err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}
	if tongyiResp.Code != "" {
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error: %s (%s)", tongyiResp.Message, tongyiResp.Code))
	}
	return c.processResponse(&tongyiResp)
}

// processResponse 处理通义千问的响应
func (c *TongyiClient) processResponse(resp *TongyiResponse) (*Response, error) {
	result := &Response{
		ModelName:  c.cfg.Model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}

	if resp.Output.Text != nil {
		result.Text = *resp.Output.Text
	} else if len(resp.Output.Choices) > 0 {
		result.Text = resp.Output.Choices[0].Message.Content
	} else {
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}
	return result, nil
}

// 在包初始化时注册通义千问客户端
func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
