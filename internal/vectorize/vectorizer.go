// Package vectorize 把文本切块、嵌入并组装为向量记录
package vectorize

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/fin-data-pipeline/internal/chunker"
	"github.com/fyerfyer/fin-data-pipeline/internal/embedding"
	"github.com/fyerfyer/fin-data-pipeline/internal/errs"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/internal/usage"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
)

// 可从来源推导的元数据字段
const (
	MetaContentType = "tipo_contenido"
	MetaSourceURL   = "source_url"
	MetaURLFuente   = "url_fuente"
)

// SourceMeta 条目来源信息
type SourceMeta struct {
	SourceID    string                 // 稳定来源标识，为空时由URL和内容类型生成
	SourceURL   string                 // 原始地址
	ContentType string                 // 写入tipo_contenido
	Title       string                 // 标题，填充titulo*字段
	Fields      map[string]interface{} // 附加元数据，通常来自结构化记录
}

func (m SourceMeta) id() string {
	if m.SourceID != "" {
		return m.SourceID
	}
	return SourceID(m.SourceURL, m.ContentType, "")
}

// Vectorizer 向量化器
type Vectorizer struct {
	strategy chunker.Strategy
	embedder embedding.Client
	log      logrus.FieldLogger
}

// NewVectorizer 创建向量化器
func NewVectorizer(strategy chunker.Strategy, embedder embedding.Client, log logrus.FieldLogger) *Vectorizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Vectorizer{
		strategy: strategy,
		embedder: embedder,
		log:      log.WithField("component", "vectorize"),
	}
}

// Vectorize 切块并批量嵌入，返回与分块一一对应的向量记录
// 任何维度不符都在写入存储之前返回ValidationFailed
func (v *Vectorizer) Vectorize(ctx context.Context, text, indexName string, src SourceMeta, u *usage.Usage) ([]vectordb.Record, error) {
	def, ok := schema.Indexes.Get(indexName)
	if !ok {
		return nil, errs.New(errs.KindUnknownSchema, "unknown vector index: %s", indexName)
	}
	log := v.log.WithFields(logrus.Fields{"index": def.Name, "source": src.SourceURL})

	chunks := v.strategy.Split(strings.TrimSpace(text))
	if len(chunks) == 0 {
		return nil, errs.New(errs.KindEmptyContent, "no text to vectorize for %s", def.Name)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := v.embedder.EmbedBatch(ctx, texts)
	u.AddEmbedCall(len(texts))
	if err != nil {
		if embedding.CodeOf(err) == embedding.ErrCodeCountMismatch {
			return nil, errs.Wrap(errs.KindParseFailure, err, "embedding response for %s", def.Name)
		}
		return nil, errs.Wrap(errs.KindConnectionFailure, err, "embed %d chunks", len(texts))
	}
	if len(vectors) != len(chunks) {
		return nil, errs.New(errs.KindParseFailure, "embedding returned %d vectors for %d chunks", len(vectors), len(chunks)).
			WithDetail("index", def.Name)
	}

	for i, vec := range vectors {
		if len(vec) != def.Dimension {
			return nil, errs.New(errs.KindValidationFailed, "vector %d has dimension %d, index %s expects %d",
				i, len(vec), def.Name, def.Dimension).
				WithDetail("index", def.Name)
		}
	}

	base := baseMetadata(def, src)
	if missing := missingRequired(def, base); len(missing) > 0 {
		log.WithField("missing", missing).Warn("Vector metadata is missing required fields")
	}

	sourceID := src.id()
	now := time.Now()
	records := make([]vectordb.Record, len(chunks))
	for i, c := range chunks {
		meta := make(map[string]interface{}, len(base)+2)
		for k, val := range base {
			meta[k] = val
		}
		meta[schema.MetaChunkText] = c.Text
		meta[schema.MetaChunkID] = c.Position

		records[i] = vectordb.Record{
			ID:        VectorID(sourceID, c.Position),
			Values:    vectors[i],
			Metadata:  meta,
			CreatedAt: now,
		}
	}

	log.WithFields(logrus.Fields{
		"chunks":   len(records),
		"strategy": v.strategy.Name(),
	}).Debug("Vectorized content")
	return records, nil
}

// baseMetadata 合并来源字段和可推导字段，已有的值不会被覆盖
func baseMetadata(def schema.Definition, src SourceMeta) map[string]interface{} {
	meta := make(map[string]interface{}, len(src.Fields)+4)
	for k, val := range src.Fields {
		if val != nil {
			meta[k] = val
		}
	}

	setDefault := func(field string, val interface{}) {
		if _, exists := def.Field(field); !exists {
			return
		}
		if _, set := meta[field]; !set && val != "" {
			meta[field] = val
		}
	}

	// tipo_contenido总是写入，便于按类型过滤
	if _, set := meta[MetaContentType]; !set && src.ContentType != "" {
		meta[MetaContentType] = src.ContentType
	}
	setDefault(MetaSourceURL, src.SourceURL)
	setDefault(MetaURLFuente, src.SourceURL)
	if f, ok := idField(def); ok {
		setDefault(f, src.id())
	}
	for _, f := range def.Fields {
		if strings.HasPrefix(f.Name, "titulo") {
			setDefault(f.Name, src.Title)
		}
	}
	return meta
}

// idField 索引的来源标识字段：第一个必填的外键字段
func idField(def schema.Definition) (string, bool) {
	for _, f := range def.Fields {
		if f.Required && f.Type == schema.TypeRef {
			return f.Name, true
		}
	}
	return "", false
}

func missingRequired(def schema.Definition, meta map[string]interface{}) []string {
	var missing []string
	for _, name := range def.RequiredFields() {
		if name == schema.MetaChunkText || name == schema.MetaChunkID {
			continue
		}
		if v, ok := meta[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}
