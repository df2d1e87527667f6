package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Parser 文档解析器接口
// 负责将下载的文件解析为纯文本，供结构化阶段使用
type Parser interface {
	// Parse 解析文件，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 表示文件的内容类型
type ContentType string

const (
	PDF       ContentType = "pdf"
	Markdown  ContentType = "markdown"
	HTML      ContentType = "html"
	PlainText ContentType = "plaintext"
	Unknown   ContentType = "unknown"
)

var (
	// ErrBinaryContent 文件不是有效的UTF-8文本
	ErrBinaryContent = errors.New("file is not valid utf-8 text")
	// ErrEmptyDocument 文档中没有可用文本
	ErrEmptyDocument = errors.New("no text content found in document")
)

// ParserFactory 根据文件扩展名创建对应的解析器
// 未知类型按纯文本读取
func ParserFactory(filePath string) Parser {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFParser()
	case Markdown:
		return NewMarkdownParser()
	case HTML:
		return NewHTMLParser()
	default:
		return NewPlainTextParser()
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".html", ".htm":
		return HTML
	case ".txt", ".csv", ".json", ".xml":
		return PlainText
	default:
		return Unknown
	}
}

// IsFile 判断字符串是否指向一个已存在的普通文件
func IsFile(path string) bool {
	if path == "" || strings.ContainsRune(path, '\n') {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ParseFile 选择解析器并解析文件
func ParseFile(filePath string) (string, error) {
	text, err := ParserFactory(filePath).Parse(filePath)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Base(filePath), err)
	}
	return text, nil
}

// Document 解析后的文档结构
type Document struct {
	Content string            // 文档文本内容
	Title   string            // 文档标题（可选）
	Source  string            // 源文件信息
	Meta    map[string]string // 元数据（可选）
}

// Load 解析文件并包装为Document
func Load(filePath string) (*Document, error) {
	text, err := ParseFile(filePath)
	if err != nil {
		return nil, err
	}
	return &Document{
		Content: text,
		Title:   strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		Source:  filePath,
		Meta:    map[string]string{"content_type": string(DetectContentType(filePath))},
	}, nil
}
