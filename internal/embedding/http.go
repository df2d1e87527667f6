package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// doPost 发送JSON请求并解码响应
// 网络错误和5xx按指数退避重试，4xx直接返回
func doPost(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out interface{}, maxRetries int) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
			}
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, clip(body))
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
		case resp.StatusCode == http.StatusTooManyRequests:
			return NewEmbeddingError(ErrCodeRateLimited, clip(body))
		case resp.StatusCode != http.StatusOK:
			return NewEmbeddingError(ErrCodeServerError,
				fmt.Sprintf("API error (status %d): %s", resp.StatusCode, clip(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
		}
		return nil
	}

	return NewEmbeddingError(ErrCodeNetworkError,
		fmt.Sprintf("request failed after %d attempts: %v", maxRetries+1, lastErr))
}

func clip(body []byte) string {
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}
