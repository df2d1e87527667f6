// Package chunker 文本分块策略
package chunker

import (
	"fmt"
	"strings"
)

// Chunk 文本块
type Chunk struct {
	Text     string `json:"text"`
	Position int    `json:"position"` // 从0开始的顺序编号
}

// StrategyType 分块策略类型
type StrategyType string

const (
	// Fixed 固定长度滑动窗口
	Fixed StrategyType = "fixed"
	// Paragraph 按段落打包，超长段落再按窗口切分
	Paragraph StrategyType = "paragraph"
	// Sentence 按句子打包
	Sentence StrategyType = "sentence"
)

// Config 分块配置
type Config struct {
	Strategy     StrategyType // 分块策略
	ChunkSize    int          // 分块大小（按字符数）
	ChunkOverlap int          // 分块重叠大小（字符数）
	MaxChunks    int          // 最大分块数量（0表示不限制）
}

// DefaultConfig 返回默认分块配置
func DefaultConfig() Config {
	return Config{
		Strategy:     Fixed,
		ChunkSize:    500,
		ChunkOverlap: 50,
	}
}

// Validate 检查配置
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// Strategy 分块策略接口
type Strategy interface {
	// Split 将文本切分为按顺序编号的文本块
	Split(text string) []Chunk
	// Name 策略名称
	Name() string
}

// New 根据配置选择分块策略
func New(cfg Config) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case Fixed, "":
		return &FixedStrategy{config: cfg}, nil
	case Paragraph:
		return &ParagraphStrategy{config: cfg}, nil
	case Sentence:
		return &SentenceStrategy{config: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown chunk strategy: %s", cfg.Strategy)
	}
}

// number 按顺序编号并应用数量限制
func number(texts []string, maxChunks int) []Chunk {
	if maxChunks > 0 && len(texts) > maxChunks {
		texts = texts[:maxChunks]
	}
	chunks := make([]Chunk, 0, len(texts))
	for _, t := range texts {
		chunks = append(chunks, Chunk{Text: t, Position: len(chunks)})
	}
	return chunks
}

// window 在rune上做滑动窗口，步长为size-overlap
// 最后一块可能短于size，不做任何修剪
func window(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// Join 去掉后续块开头的重叠部分后拼接，固定策略下可还原原文
func Join(chunks []Chunk, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Text)
			continue
		}
		r := []rune(c.Text)
		if overlap < len(r) {
			b.WriteString(string(r[overlap:]))
		}
	}
	return b.String()
}
