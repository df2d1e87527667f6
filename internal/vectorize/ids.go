package vectorize

import (
	"strconv"

	"github.com/google/uuid"
)

// 向量ID的命名空间，修改会导致已写入的向量无法被覆盖
var namespace = uuid.MustParse("6f1c2a7e-4d0b-5e8f-9a3c-1b2d3e4f5a60")

// VectorID 由来源和分块位置生成UUIDv5
// 同一来源重复处理得到相同ID，Qdrant可直接作为点ID使用
func VectorID(sourceID string, position int) string {
	return uuid.NewSHA1(namespace, []byte(sourceID+":"+strconv.Itoa(position))).String()
}

// SourceID 条目的稳定标识
func SourceID(url, contentType, path string) string {
	return uuid.NewSHA1(namespace, []byte(url+"|"+contentType+"|"+path)).String()
}
