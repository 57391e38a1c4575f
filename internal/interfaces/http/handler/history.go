package handler

import (
	"github.com/gin-gonic/gin"

	"fin-research-api/internal/domain/repository"
	"fin-research-api/internal/interfaces/http/dto"
)

// HistoryHandler 查询历史处理器
type HistoryHandler struct {
	history repository.QueryHistoryRepository
}

func NewHistoryHandler(history repository.QueryHistoryRepository) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List 按用户分页查询历史记录
// GET /api/v1/research/history
func (h *HistoryHandler) List(c *gin.Context) {
	var query dto.HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, "invalid query: "+err.Error())
		return
	}

	result, err := h.history.ListByUser(c.Request.Context(), query.UserID, repository.NewPagination(query.Page, query.PageSize))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.SuccessWithPage(c, result.Items, dto.NewPageMeta(query.Page, query.PageSize, result.Total))
}

// Get 按查询 ID 获取单条历史记录
// GET /api/v1/research/history/:query_id
func (h *HistoryHandler) Get(c *gin.Context) {
	record, err := h.history.GetByQueryID(c.Request.Context(), c.Param("query_id"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if record == nil {
		dto.NotFound(c, "query history not found")
		return
	}
	dto.Success(c, record)
}
