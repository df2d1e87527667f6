package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser PDF文档解析器
// 通过pdfcpu导出每页内容流，再取出其中的文本操作数
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF文件并提取其文本内容
func (p *PDFParser) Parse(filePath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract content from PDF: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted content dir: %w", err)
	}
	// 按文件名排序（页码顺序）
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var pages []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, e.Name()))
		if err != nil {
			continue
		}
		if text := textFromContentStream(string(data)); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", ErrEmptyDocument
	}
	return strings.Join(pages, "\n\n"), nil
}

// ParseReader 先写入临时文件再解析
func (p *PDFParser) ParseReader(r io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "pdf_reader_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to buffer pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	return p.Parse(tmp.Name())
}

// textFromContentStream 从内容流中取出字符串操作数
// Tj/TJ/'/"输出文本，Td/TD/T*/ET换行
func textFromContentStream(stream string) string {
	var sb strings.Builder
	var line strings.Builder
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(s)
		}
		line.Reset()
	}

	for i := 0; i < len(stream); i++ {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteral(stream, i)
			line.WriteString(s)
			i = next
		case c == 'T' && i+1 < len(stream) && strings.ContainsRune("dD*", rune(stream[i+1])):
			flush()
			i++
		case c == 'E' && i+1 < len(stream) && stream[i+1] == 'T':
			flush()
			i++
		}
	}
	flush()
	return sb.String()
}

// readLiteral 读取从start处'('开始的字面量字符串，返回内容和结束位置
func readLiteral(s string, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	for i := start; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return sb.String(), i
			}
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r', 't':
				sb.WriteByte(' ')
			case '(', ')', '\\':
				sb.WriteByte(s[i])
			default:
				// 八进制转义
				if s[i] >= '0' && s[i] <= '7' {
					v := 0
					j := i
					for ; j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7'; j++ {
						v = v*8 + int(s[j]-'0')
					}
					sb.WriteRune(rune(v))
					i = j - 1
				}
			}
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), len(s)
}
