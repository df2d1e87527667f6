package chunker

import (
	"strings"
)

// FixedStrategy 固定长度滑动窗口
type FixedStrategy struct {
	config Config
}

// Name 策略名称
func (s *FixedStrategy) Name() string { return string(Fixed) }

// Split 按字符滑动窗口切分
func (s *FixedStrategy) Split(text string) []Chunk {
	return number(window(text, s.config.ChunkSize, s.config.ChunkOverlap), s.config.MaxChunks)
}

// ParagraphStrategy 按段落打包
type ParagraphStrategy struct {
	config Config
}

// Name 策略名称
func (s *ParagraphStrategy) Name() string { return string(Paragraph) }

// Split 按空行分段，相邻短段落合并到不超过ChunkSize，超长段落按窗口再切分
func (s *ParagraphStrategy) Split(text string) []Chunk {
	paragraphs := splitByParagraph(text)
	paragraphs = mergeSmallChunks(paragraphs, s.config.ChunkSize, "\n\n")
	return number(handleLargeChunks(paragraphs, s.config), s.config.MaxChunks)
}

// SentenceStrategy 按句子打包
type SentenceStrategy struct {
	config Config
}

// Name 策略名称
func (s *SentenceStrategy) Name() string { return string(Sentence) }

// Split 按句子分割后合并到不超过ChunkSize
func (s *SentenceStrategy) Split(text string) []Chunk {
	sentences := splitBySentence(text)
	sentences = mergeSmallChunks(sentences, s.config.ChunkSize, " ")
	return number(handleLargeChunks(sentences, s.config), s.config.MaxChunks)
}

// splitByParagraph 按段落分割文本
func splitByParagraph(text string) []string {
	// 规范化段落分隔符
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentence 按句子分割文本
func splitBySentence(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, char := range text {
		current.WriteRune(char)

		switch char {
		case '.', '!', '?', '；', '。', '！', '？':
			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}

	// 处理最后一个可能不以分隔符结束的句子
	if last := strings.TrimSpace(current.String()); last != "" {
		sentences = append(sentences, last)
	}
	return sentences
}

// mergeSmallChunks 合并过小的片段
func mergeSmallChunks(chunks []string, size int, sep string) []string {
	if len(chunks) <= 1 {
		return chunks
	}

	var result []string
	var current strings.Builder
	currentLen := 0

	for _, chunk := range chunks {
		n := len([]rune(chunk))
		if currentLen > 0 && currentLen+len(sep)+n <= size {
			current.WriteString(sep)
			current.WriteString(chunk)
			currentLen += len(sep) + n
			continue
		}
		if currentLen > 0 {
			result = append(result, current.String())
			current.Reset()
		}
		current.WriteString(chunk)
		currentLen = n
	}

	if currentLen > 0 {
		result = append(result, current.String())
	}
	return result
}

// handleLargeChunks 超长片段按滑动窗口再切分
func handleLargeChunks(chunks []string, cfg Config) []string {
	var result []string
	for _, chunk := range chunks {
		if len([]rune(chunk)) > cfg.ChunkSize {
			result = append(result, window(chunk, cfg.ChunkSize, cfg.ChunkOverlap)...)
		} else {
			result = append(result, chunk)
		}
	}
	return result
}
