package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestMockClientGenerate 测试使用Mock客户端的文本生成
func TestMockClientGenerate(t *testing.T) {
	mockClient := NewMockClient(t)

	expectedResp := &Response{
		Text:       `{"indicador_nombre":"IPC"}`,
		TokenCount: 5,
		ModelName:  "mock-model",
		FinishTime: time.Now(),
	}
	mockClient.EXPECT().Generate(mock.Anything, "extrae", mock.Anything).Return(expectedResp, nil)

	resp, err := mockClient.Generate(context.Background(), "extrae", WithJSONMode())
	assert.NoError(t, err)
	assert.Equal(t, expectedResp.Text, resp.Text)
	assert.Equal(t, expectedResp.TokenCount, resp.TokenCount)
}

// TestMockClientErrors 测试错误处理
func TestMockClientErrors(t *testing.T) {
	mockClient := NewMockClient(t)

	emptyPromptErr := NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	mockClient.EXPECT().Generate(mock.Anything, "", mock.Anything).Return(nil, emptyPromptErr)

	_, err := mockClient.Generate(context.Background(), "")
	assert.Error(t, err)
	var llmErr LLMError
	assert.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
}

// TestRemoteClientGenerate 托管服务回显提示词时应被去掉
func TestRemoteClientGenerate(t *testing.T) {
	var got RemoteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("bypass-tunnel-reminder"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(RemoteResponse{
			Response: got.Prompt + "\n  {\"a\": 1}  ",
			Prompt:   got.Prompt,
		})
	}))
	defer server.Close()

	client, err := NewClient("remote", WithBaseURL(server.URL+"/"), WithMaxRetries(0))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "PROMPT", WithGenerateTemperature(0.1))
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, resp.Text)
	assert.Equal(t, "PROMPT", got.Prompt)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.1, got.Temperature, 1e-6)
	assert.Equal(t, "remote", client.Name())
}

// TestRemoteClientRetries 5xx响应会重试
func TestRemoteClientRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(RemoteResponse{Response: "ok"})
	}))
	defer server.Close()

	client, err := NewRemoteClient(WithBaseURL(server.URL), WithMaxRetries(2))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// TestRemoteClientClientError 4xx不重试并返回错误
func TestRemoteClientClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewRemoteClient(WithBaseURL(server.URL), WithMaxRetries(3))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hola")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeServerError, llmErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteClientRequiresEndpoint(t *testing.T) {
	_, err := NewRemoteClient()
	assert.Error(t, err)
}

// TestTongyiClientGenerate 使用本地服务模拟DashScope接口
func TestTongyiClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req TongyiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ModelQwenTurbo, req.Model)
		require.Len(t, req.Input.Messages, 1)

		_ = json.NewEncoder(w).Encode(TongyiResponse{
			Output: TongyiOutput{Choices: []TongyiChoice{{Message: Message{Role: RoleAssistant, Content: "{}"}}}},
			Usage:  TongyiUsage{TotalTokens: 12},
		})
	}))
	defer server.Close()

	client, err := NewTongyiClient(WithAPIKey("key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Text)
	assert.Equal(t, 12, resp.TokenCount)
}

func TestTongyiClientRequiresKey(t *testing.T) {
	_, err := NewTongyiClient()
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
}

// TestOpenAIClientIntegration 只有在设置OPENAI_API_KEY环境变量时才运行
func TestOpenAIClientIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Haven't set OPENAI_API_KEY environment variable, skipping test")
	}

	client, err := NewOpenAIClient(WithAPIKey(apiKey), WithTimeout(15*time.Second))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), `Return {"ok": true} as JSON.`, WithJSONMode(), WithGenerateMaxTokens(20))
	if err != nil {
		t.Skip("Skipping API test: " + err.Error())
	}
	assert.Contains(t, resp.Text, "ok")
}

// TestConfigAndOptions 测试配置选项
func TestConfigAndOptions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 1000, cfg.MaxTokens)
	assert.Equal(t, float32(0.3), cfg.Temperature)

	cfg = NewConfig(
		WithAPIKey("test-key"),
		WithModel("custom-model"),
		WithTimeout(30*time.Second),
		WithMaxRetries(5),
		WithMaxTokens(100),
		WithTemperature(0.5),
	)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "custom-model", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxRetries)

	maxTokens, temp, jsonMode := resolve(cfg, []GenerateOption{WithGenerateMaxTokens(10), WithJSONMode()})
	assert.Equal(t, 10, maxTokens)
	assert.Equal(t, float32(0.5), temp)
	assert.True(t, jsonMode)
}

// TestClientFactory 测试客户端工厂功能
func TestClientFactory(t *testing.T) {
	RegisterClient("test-factory", func(opts ...Option) (Client, error) {
		return NewMockClient(t), nil
	})

	client, err := NewClient("test-factory")
	assert.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient("invalid-type")
	var llmErr LLMError
	assert.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)
}

func TestErrorCodes(t *testing.T) {
	wrapped := WrapError(NewLLMError(ErrCodeTimeout, "deadline"), ErrCodeServerError)
	assert.Equal(t, ErrCodeTimeout, wrapped.Code)
	assert.Equal(t, ErrCodeServerError, WrapError(assert.AnError, ErrCodeServerError).Code)

	assert.Equal(t, 0, CodeOf(assert.AnError))
	assert.True(t, Unreachable(NewLLMError(ErrCodeNetworkError, "refused")))
	assert.True(t, Unreachable(WrapError(NewLLMError(ErrCodeTimeout, "t"), 0)))
	assert.False(t, Unreachable(NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)))
}
