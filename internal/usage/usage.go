// Package usage 一次运行中模型调用和嵌入调用的计数
package usage

import "sync/atomic"

// Usage 并发安全的用量累加器，nil接收者上的调用被忽略
type Usage struct {
	llmCalls      atomic.Int64
	llmTokens     atomic.Int64
	llmFailures   atomic.Int64
	cacheHits     atomic.Int64
	embedCalls    atomic.Int64
	embeddedTexts atomic.Int64
}

// New 创建用量累加器
func New() *Usage {
	return &Usage{}
}

// AddLLMCall 记录一次模型调用
func (u *Usage) AddLLMCall(tokens int) {
	if u == nil {
		return
	}
	u.llmCalls.Add(1)
	u.llmTokens.Add(int64(tokens))
}

// AddLLMFailure 记录一次失败的模型调用
func (u *Usage) AddLLMFailure() {
	if u == nil {
		return
	}
	u.llmFailures.Add(1)
}

// AddCacheHit 记录一次缓存命中
func (u *Usage) AddCacheHit() {
	if u == nil {
		return
	}
	u.cacheHits.Add(1)
}

// AddEmbedCall 记录一次批量嵌入调用及文本数
func (u *Usage) AddEmbedCall(texts int) {
	if u == nil {
		return
	}
	u.embedCalls.Add(1)
	u.embeddedTexts.Add(int64(texts))
}

// Summary 用量快照
type Summary struct {
	LLMCalls      int64 `json:"llm_calls"`
	LLMTokens     int64 `json:"llm_tokens"`
	LLMFailures   int64 `json:"llm_failures"`
	CacheHits     int64 `json:"cache_hits"`
	EmbedCalls    int64 `json:"embed_calls"`
	EmbeddedTexts int64 `json:"embedded_texts"`
}

// Snapshot 读取当前计数
func (u *Usage) Snapshot() Summary {
	if u == nil {
		return Summary{}
	}
	return Summary{
		LLMCalls:      u.llmCalls.Load(),
		LLMTokens:     u.llmTokens.Load(),
		LLMFailures:   u.llmFailures.Load(),
		CacheHits:     u.cacheHits.Load(),
		EmbedCalls:    u.embedCalls.Load(),
		EmbeddedTexts: u.embeddedTexts.Load(),
	}
}
