// Package extraction 从配置的数据源抓取原始内容
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/document"
	"github.com/fyerfyer/fin-data-pipeline/internal/errs"
	"github.com/fyerfyer/fin-data-pipeline/pkg/storage"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; finpipe/1.0; +https://github.com/fyerfyer/fin-data-pipeline)"

// Config 抽取配置
type Config struct {
	Timeout           time.Duration // 单次请求超时
	RateLimitRPM      int           // 每分钟请求数，0为不限
	UserAgent         string
	MaxFilesPerSource int // 每个数据源最多下载的文件数，0为不限
}

// FromAppConfig 从应用配置转换
func FromAppConfig(c config.ExtractionConfig) Config {
	return Config{
		Timeout:           c.Timeout,
		RateLimitRPM:      c.RateLimitRPM,
		UserAgent:         c.UserAgent,
		MaxFilesPerSource: c.MaxFilesPerSource,
	}
}

// Extractor 数据源抓取器
type Extractor struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	store   storage.Storage
	log     logrus.FieldLogger
}

// Option 抓取器选项
type Option func(*Extractor)

// WithHTTPClient 替换HTTP客户端
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) {
		e.client = c
	}
}

// NewExtractor 创建抓取器，下载的文件写入store
func NewExtractor(cfg Config, store storage.Storage, log logrus.FieldLogger, opts ...Option) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	limit := rate.Inf
	if cfg.RateLimitRPM > 0 {
		limit = rate.Limit(float64(cfg.RateLimitRPM) / 60.0)
	}

	e := &Extractor{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		store:   store,
		log:     log.WithField("component", "extraction"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractSource 抓取单个数据源
// 声明了JSON的数据源只产生一个JSON条目；否则抓取页面文本并下载页面中的文件
func (e *Extractor) ExtractSource(ctx context.Context, src config.Source) ([]Item, error) {
	log := e.log.WithFields(logrus.Fields{"source": src.Name, "url": src.URL})

	if hasType(src.ContentTypes, ContentJSON) {
		value, err := e.fetchJSON(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		log.Info("Fetched JSON source")
		return []Item{e.newItem(src, ContentJSON, value)}, nil
	}

	if !hasAnyType(src.ContentTypes, ContentText, ContentPDF, ContentExcel, ContentPPT, ContentPNG) {
		log.WithField("content_types", src.ContentTypes).Warn("No extraction logic for declared content types")
		return nil, nil
	}

	page, pageURL, err := e.fetchHTML(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	textItem := e.newItem(src, ContentText, page.Text)
	textItem.Title = page.Title
	items := []Item{textItem}

	links := fileLinks(pageURL, page.Links)
	if limit := e.cfg.MaxFilesPerSource; limit > 0 && len(links) > limit {
		log.WithFields(logrus.Fields{"found": len(links), "max": limit}).Info("Limiting downloaded files")
		links = links[:limit]
	}
	log.WithFields(logrus.Fields{"text_chars": len(page.Text), "files": len(links)}).Info("Scraped page")

	for _, link := range links {
		info, err := e.download(ctx, link)
		if err != nil {
			log.WithField("file_url", link).WithError(err).Warn("File download failed")
			continue
		}
		ext := strings.TrimPrefix(path.Ext(info.Name), ".")
		it := e.newItem(src, strings.ToUpper(ext), info.LocalPath)
		it.SourceURL = link
		it.FilePath = info.LocalPath
		it.Title = info.Name
		items = append(items, it)
	}
	return items, nil
}

func (e *Extractor) newItem(src config.Source, contentType string, raw interface{}) Item {
	return Item{
		SourceName:     src.Name,
		SourceCategory: src.Category,
		SourceURL:      src.URL,
		Route:          src.Route,
		ContentType:    contentType,
		RawContent:     raw,
	}
}

// get 限速后发起GET请求，非2xx视为失败
func (e *Extractor) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.KindExtraction, err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindExtraction, err, "build request for %s", rawURL)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept-Language", "es-PY,es;q=0.9,en;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailure, err, "GET %s", rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errs.New(errs.KindExtraction, "GET %s: status %d", rawURL, resp.StatusCode).
			WithDetail("status", resp.StatusCode)
	}
	return resp, nil
}

func (e *Extractor) fetchJSON(ctx context.Context, rawURL string) (interface{}, error) {
	resp, err := e.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var value interface{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, errs.Wrap(errs.KindParseFailure, err, "decode JSON from %s", rawURL)
	}
	return value, nil
}

// fetchHTML 返回解析后的页面和最终地址（跟随重定向后）
func (e *Extractor) fetchHTML(ctx context.Context, rawURL string) (*document.Page, *url.URL, error) {
	resp, err := e.get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	page, err := document.ParseHTML(resp.Body)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindParseFailure, err, "parse HTML from %s", rawURL)
	}
	return page, resp.Request.URL, nil
}

// download 下载文件到存储
func (e *Extractor) download(ctx context.Context, fileURL string) (storage.FileInfo, error) {
	resp, err := e.get(ctx, fileURL)
	if err != nil {
		return storage.FileInfo{}, err
	}
	defer resp.Body.Close()

	name := fileName(fileURL, resp.Header.Get("Content-Type"))
	info, err := e.store.Save(ctx, resp.Body, name)
	if err != nil {
		return storage.FileInfo{}, fmt.Errorf("save %s: %w", name, err)
	}
	// 丢弃未读完的响应体，保证连接复用
	_, _ = io.Copy(io.Discard, resp.Body)
	return info, nil
}

// fileLinks 解析为绝对地址，保留文件扩展名匹配的链接并去重
func fileLinks(base *url.URL, hrefs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		abs.Fragment = ""
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(abs.Path), "."))
		if !fileExtensions[ext] {
			continue
		}
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// fileName 取URL路径最后一段作为文件名，没有扩展名时按Content-Type推断
func fileName(fileURL, contentType string) string {
	name := "download"
	if u, err := url.Parse(fileURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	if path.Ext(name) != "" {
		return name
	}
	return name + "." + extFromContentType(contentType)
}

func extFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	switch {
	case strings.Contains(ct, "pdf"):
		return "pdf"
	case strings.Contains(ct, "excel"), strings.Contains(ct, "spreadsheet"):
		return "xlsx"
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "powerpoint"), strings.Contains(ct, "presentation"):
		return "pptx"
	case strings.Contains(ct, "word"), strings.Contains(ct, "document"):
		return "docx"
	default:
		return "txt"
	}
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func hasAnyType(types []string, wants ...string) bool {
	for _, w := range wants {
		if hasType(types, w) {
			return true
		}
	}
	return false
}
