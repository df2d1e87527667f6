package vectordb

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ComputeDistance 计算两个向量间的距离
func ComputeDistance(v1, v2 []float32, distType DistanceType) (float32, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("vector dimensions do not match: %d vs %d", len(v1), len(v2))
	}

	switch distType {
	case Cosine:
		return cosineDistance(v1, v2), nil
	case DotProduct:
		return dotProduct(v1, v2), nil
	case Euclidean:
		return euclideanDistance(v1, v2), nil
	default:
		return 0, fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// cosineDistance 计算余弦距离
func cosineDistance(v1, v2 []float32) float32 {
	dot := dotProduct(v1, v2)
	norm1 := vectorNorm(v1)
	norm2 := vectorNorm(v2)

	if norm1 == 0 || norm2 == 0 {
		return 1.0 // 最大距离
	}

	similarity := dot / (norm1 * norm2)
	// 处理浮点精度问题
	if similarity > 1.0 {
		similarity = 1.0
	}
	return 1.0 - similarity
}

// dotProduct 计算两个向量的点积
func dotProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := 0; i < len(v1); i++ {
		dot += v1[i] * v2[i]
	}
	return dot
}

// euclideanDistance 计算欧几里德距离
func euclideanDistance(v1, v2 []float32) float32 {
	var sum float32
	for i := 0; i < len(v1); i++ {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// vectorNorm 计算向量的L2范数
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector 归一化向量（使其长度为1）
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	if norm == 0 {
		return v // 零向量无法归一化
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// matchMetadata 检查元数据是否匹配过滤条件
func matchMetadata(meta map[string]interface{}, filter map[string]interface{}) bool {
	for key, want := range filter {
		got, exists := meta[key]
		if !exists || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// SortSearchResults 按相似度评分降序排序
func SortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DistanceToScore 将距离转换为评分
func DistanceToScore(distance float32, distType DistanceType) float32 {
	switch distType {
	case Cosine:
		return 1 - distance
	case DotProduct:
		// 对于归一化向量，点积范围在[-1, 1]之间
		return (distance + 1) / 2
	case Euclidean:
		return float32(math.Exp(-float64(distance)))
	default:
		return 0
	}
}

// ParseDistance 解析距离类型配置，无法识别时使用余弦
func ParseDistance(s string) DistanceType {
	switch DistanceType(strings.ToLower(s)) {
	case DotProduct:
		return DotProduct
	case Euclidean:
		return Euclidean
	default:
		return Cosine
	}
}

// ValidateVector 验证向量维度和有效性
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, expectedDim, len(vector))
	}
	return nil
}

// ValidateRecord 检查记录的ID、向量和元数据
func ValidateRecord(rec Record, expectedDim int) error {
	if strings.TrimSpace(rec.ID) == "" {
		return ErrInvalidID
	}
	if err := ValidateVector(rec.Values, expectedDim); err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if rec.Metadata == nil {
		return fmt.Errorf("record %s: metadata is missing", rec.ID)
	}
	return nil
}

// prepareRecords 校验整批记录并补齐默认值，任何一条无效则整批拒绝
func prepareRecords(records []Record, dim int, distType DistanceType) ([]Record, error) {
	out := make([]Record, len(records))
	for i, rec := range records {
		if err := ValidateVector(rec.Values, dim); err != nil {
			return nil, fmt.Errorf("invalid vector for record %s: %w", rec.ID, err)
		}
		if rec.ID == "" {
			return nil, ErrInvalidID
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]interface{})
		}
		// 对于余弦距离，先对向量进行归一化处理
		if distType == Cosine {
			rec.Values = normalizeVector(rec.Values)
		}
		out[i] = rec
	}
	return out, nil
}
