package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 研究查询
	research := v1.Group("/research")
	{
		research.POST("", h.Research.Submit)
		research.GET("/graph", h.Research.Graph)
		research.GET("/history", h.History.List)
		research.GET("/history/:query_id", h.History.Get)
	}

	// 文档索引与管理
	documents := v1.Group("/documents")
	{
		documents.POST("", h.Document.Index)
		documents.GET("", h.Document.List)
		documents.GET("/search", h.Document.Search)
		documents.GET("/:id", h.Document.Get)
		documents.DELETE("/:id", h.Document.Delete)
	}

	// 行情直查
	market := v1.Group("/market")
	{
		market.GET("/quote/:ticker", h.Market.Quote)
	}
}
