package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// QdrantRepository 通过REST接口访问Qdrant集合
// 记录ID必须是UUID或无符号整数
type QdrantRepository struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	distType   DistanceType
	client     *http.Client

	mu      sync.Mutex
	ensured bool
}

// NewQdrantRepository 创建Qdrant向量仓库
// 集合在首次写入时按需创建
func NewQdrantRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if config.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	return &QdrantRepository{
		url:        strings.TrimRight(config.Path, "/"),
		apiKey:     config.APIKey,
		collection: config.Collection,
		dimension:  config.Dimension,
		distType:   distType,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (r *QdrantRepository) distanceName() string {
	switch r.distType {
	case DotProduct:
		return "Dot"
	case Euclidean:
		return "Euclid"
	default:
		return "Cosine"
	}
}

func (r *QdrantRepository) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", r.url, r.collection, suffix)
}

// ensureCollection 集合不存在时创建
func (r *QdrantRepository) ensureCollection(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ensured {
		return nil
	}

	status, err := r.do(ctx, http.MethodGet, r.collectionURL(""), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusNotFound {
		body := map[string]interface{}{
			"vectors": map[string]interface{}{
				"size":     r.dimension,
				"distance": r.distanceName(),
			},
		}
		if _, err := r.do(ctx, http.MethodPut, r.collectionURL(""), body, nil); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", r.collection, err)
		}
	}
	r.ensured = true
	return nil
}

type qdrantPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Upsert 写入点，Qdrant按ID覆盖
func (r *QdrantRepository) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	// Qdrant服务端自行处理余弦归一化
	prepared, err := prepareRecords(records, r.dimension, "")
	if err != nil {
		return err
	}
	if err := r.ensureCollection(ctx); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(prepared))
	for i, rec := range prepared {
		points[i] = qdrantPoint{ID: rec.ID, Vector: rec.Values, Payload: rec.Metadata}
	}
	_, err = r.do(ctx, http.MethodPut, r.collectionURL("/points?wait=true"), map[string]interface{}{"points": points}, nil)
	return err
}

// Get 获取单个点
func (r *QdrantRepository) Get(ctx context.Context, id string) (Record, error) {
	var resp struct {
		Result qdrantPoint `json:"result"`
	}
	status, err := r.do(ctx, http.MethodGet, r.collectionURL("/points/"+id), nil, &resp)
	if status == http.StatusNotFound {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return Record{ID: resp.Result.ID, Values: resp.Result.Vector, Metadata: resp.Result.Payload}, nil
}

// Delete 删除单个点
func (r *QdrantRepository) Delete(ctx context.Context, id string) error {
	_, err := r.do(ctx, http.MethodPost, r.collectionURL("/points/delete?wait=true"),
		map[string]interface{}{"points": []string{id}}, nil)
	return err
}

// Search 相似度搜索，元数据过滤转换为must匹配条件
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	limit := filter.MaxResults
	if limit <= 0 {
		limit = 5
	}

	req := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter.MinScore > 0 {
		req["score_threshold"] = filter.MinScore
	}
	if len(filter.Metadata) > 0 {
		must := make([]map[string]interface{}, 0, len(filter.Metadata))
		for k, v := range filter.Metadata {
			must = append(must, map[string]interface{}{"key": k, "match": map[string]interface{}{"value": v}})
		}
		req["filter"] = map[string]interface{}{"must": must}
	}

	var resp struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if _, err := r.do(ctx, http.MethodPost, r.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		results = append(results, SearchResult{
			Record: Record{ID: fmt.Sprint(p.ID), Metadata: p.Payload},
			Score:  p.Score,
		})
	}
	return results, nil
}

// Count 精确统计点数，集合不存在时为0
func (r *QdrantRepository) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := r.do(ctx, http.MethodPost, r.collectionURL("/points/count"), map[string]interface{}{"exact": true}, &resp)
	if status == http.StatusNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Ping 检查服务是否可达
func (r *QdrantRepository) Ping(ctx context.Context) error {
	_, err := r.do(ctx, http.MethodGet, r.url+"/collections", nil, nil)
	return err
}

// Dimension 返回向量维数
func (r *QdrantRepository) Dimension() int {
	return r.dimension
}

// Close 释放空闲连接
func (r *QdrantRepository) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// do 发送JSON请求，返回状态码；状态码>=300时返回错误
func (r *QdrantRepository) do(ctx context.Context, method, url string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode qdrant request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("api-key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("failed to decode qdrant response: %v", err)
		}
	}
	return resp.StatusCode, nil
}

func init() {
	RegisterRepository("qdrant", NewQdrantRepository)
}
