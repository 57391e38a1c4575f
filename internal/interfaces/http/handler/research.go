// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"fin-research-api/internal/interfaces/http/dto"
	"fin-research-api/internal/workflow"
)

// ResearchHandler 研究查询处理器
type ResearchHandler struct {
	engine *workflow.Engine
}

func NewResearchHandler(engine *workflow.Engine) *ResearchHandler {
	return &ResearchHandler{engine: engine}
}

// Submit 提交研究查询
// POST /api/v1/research
func (h *ResearchHandler) Submit(c *gin.Context) {
	var req dto.ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	response, state := h.engine.Run(c.Request.Context(), req.Query, req.UserID)

	dto.Success(c, dto.ResearchResult{
		Response:        response,
		CompletedStages: state.CompletedStageNames(),
		Errors:          state.Errors,
	})
}

// Graph 返回状态机的静态结构，用于诊断与可视化
// GET /api/v1/research/graph
func (h *ResearchHandler) Graph(c *gin.Context) {
	dto.Success(c, h.engine.Graph())
}
