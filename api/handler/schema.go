package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/fin-data-pipeline/api/middleware"
	"github.com/fyerfyer/fin-data-pipeline/api/model"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
)

// SchemaHandler 结构定义查询
type SchemaHandler struct{}

// NewSchemaHandler 创建结构定义处理器
func NewSchemaHandler() *SchemaHandler {
	return &SchemaHandler{}
}

func summaries(r *schema.Registry) []model.SchemaSummary {
	defs := r.All()
	out := make([]model.SchemaSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, model.SchemaSummary{
			Name:           d.Name,
			Kind:           r.Kind(),
			Description:    d.Description,
			RequiredFields: d.RequiredFields(),
			Dimension:      d.Dimension,
		})
	}
	return out
}

// ListSchemas 列出所有表、向量索引和类别路由
// GET /api/schemas
func (h *SchemaHandler) ListSchemas(c *gin.Context) {
	routes := make([]schema.Route, 0)
	for _, cat := range schema.Categories() {
		if r, ok := schema.LookupRoute(cat); ok {
			routes = append(routes, r)
		}
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.SchemaListResponse{
		Tables:  summaries(schema.Tables),
		Indexes: summaries(schema.Indexes),
		Routes:  routes,
	}))
}

// GetSchema 按名称查询表或向量索引，表优先
// GET /api/schemas/:name
func (h *SchemaHandler) GetSchema(c *gin.Context) {
	var req model.SchemaRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid schema name", err.Error()))
		return
	}

	for _, r := range []*schema.Registry{schema.Tables, schema.Indexes} {
		if def, ok := r.Get(req.Name); ok {
			c.JSON(http.StatusOK, model.NewSuccessResponse(model.SchemaDetailResponse{
				Kind:       r.Kind(),
				Definition: def,
			}))
			return
		}
	}
	middleware.HandleError(c, middleware.NewNotFoundError("unknown schema: "+req.Name))
}
