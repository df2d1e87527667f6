package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page 解析后的HTML页面
type Page struct {
	Title string   // <title>内容
	Text  string   // 可见文本，空白已折叠
	Links []string // 页面中出现的href，按出现顺序，未解析为绝对地址
}

// HTMLParser HTML文档解析器
type HTMLParser struct{}

// NewHTMLParser 创建HTML解析器
func NewHTMLParser() Parser {
	return &HTMLParser{}
}

// Parse 解析HTML文件
func (p *HTMLParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open html file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 返回页面的可见文本
func (p *HTMLParser) ParseReader(r io.Reader, filename string) (string, error) {
	page, err := ParseHTML(r)
	if err != nil {
		return "", err
	}
	return page.Text, nil
}

// 不产生可见文本的元素
var hiddenElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Head:     true,
	atom.Template: true,
}

// 块级元素前后插入换行
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Section: true, atom.Article: true, atom.Ul: true, atom.Ol: true,
}

// ParseHTML 遍历DOM树，提取标题、可见文本和链接
func ParseHTML(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	page := &Page{}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.A {
				for _, attr := range n.Attr {
					if attr.Key == "href" && strings.TrimSpace(attr.Val) != "" {
						page.Links = append(page.Links, strings.TrimSpace(attr.Val))
					}
				}
			}
			if hiddenElements[n.DataAtom] {
				return
			}
			if blockElements[n.DataAtom] {
				sb.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			sb.WriteByte('\n')
		}
	}
	walk(root)

	page.Title = findTitle(root)
	page.Text = CollapseWhitespace(sb.String())
	return page, nil
}

// CollapseWhitespace 行内空白折叠为单个空格，去掉空行
func CollapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}
