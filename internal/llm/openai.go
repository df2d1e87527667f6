package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// OpenAIClient 兼容OpenAI接口的模型客户端
// 适用于OpenAI、Ollama、vLLM等服务
type OpenAIClient struct {
	cfg   *Config
	model llms.Model
}

// NewOpenAIClient 创建OpenAI兼容客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.Model == "" {
		cfg.Model = ModelGPT4oMini
	}
	token := cfg.APIKey
	if token == "" {
		// 本地服务不校验密钥
		token = "none"
	}

	clientOpts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(clientOpts...)
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest)
	}
	return &OpenAIClient{cfg: cfg, model: model}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.cfg.Model
}

// Generate 以单条用户消息调用对话接口
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	maxTokens, temperature, jsonMode := resolve(c.cfg, options)

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	content := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}
	callOpts := []llms.CallOption{
		llms.WithTemperature(float64(temperature)),
		llms.WithMaxTokens(maxTokens),
	}
	if jsonMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := c.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
		}
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("generate content failed: %v", err))
	}
	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}

	choice := resp.Choices[0]
	tokens := 0
	if total, ok := choice.GenerationInfo["TotalTokens"].(int); ok {
		tokens = total
	}
	return &Response{
		Text:       choice.Content,
		TokenCount: tokens,
		ModelName:  c.cfg.Model,
		FinishTime: time.Now(),
	}, nil
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
