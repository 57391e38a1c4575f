package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fin-research-api/internal/application/rag"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/domain/repository"
	"fin-research-api/internal/interfaces/http/dto"
	"fin-research-api/pkg/logger"
)

// DocumentHandler 文档索引与管理处理器
type DocumentHandler struct {
	indexer   *rag.Indexer
	retriever *rag.Engine
	documents repository.DocumentRepository
}

func NewDocumentHandler(indexer *rag.Indexer, retriever *rag.Engine, documents repository.DocumentRepository) *DocumentHandler {
	return &DocumentHandler{indexer: indexer, retriever: retriever, documents: documents}
}

// Index 索引一份文档全文
// POST /api/v1/documents
func (h *DocumentHandler) Index(c *gin.Context) {
	if h.indexer == nil {
		dto.Error(c, http.StatusServiceUnavailable, "document indexing unavailable")
		return
	}

	var req dto.IndexDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	docType := entity.DocumentType(req.DocumentType)
	referenceDate := time.Now().UTC()
	if req.ReferenceDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReferenceDate)
		if err != nil {
			dto.BadRequest(c, "invalid reference_date")
			return
		}
		referenceDate = parsed
	}

	meta := &entity.DocumentMetadata{
		DocumentID:    uuid.NewString(),
		Company:       req.Company,
		Ticker:        req.Ticker,
		DocumentType:  docType,
		ReferenceDate: referenceDate,
	}

	count, err := h.indexer.IndexText(c.Request.Context(), meta, req.Content, nil)
	if err != nil {
		logger.Error(c.Request.Context(), "文档索引失败", err, "document_id", meta.DocumentID)
		dto.FromError(c, err)
		return
	}

	dto.Created(c, dto.IndexDocumentResult{
		DocumentID: meta.DocumentID,
		ChunkCount: count,
	})
}

// Search 在向量库中检索文档片段
// GET /api/v1/documents/search
func (h *DocumentHandler) Search(c *gin.Context) {
	if h.retriever == nil {
		dto.Error(c, http.StatusServiceUnavailable, "vector search unavailable")
		return
	}

	var query struct {
		Q       string `form:"q" binding:"required,min=1,max=512"`
		Ticker  string `form:"ticker" binding:"omitempty,max=16"`
		Company string `form:"company" binding:"omitempty,max=256"`
		TopK    int    `form:"top_k" binding:"omitempty,min=1,max=20"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, "invalid query: "+err.Error())
		return
	}

	var (
		rc  *entity.RetrievalContext
		err error
	)
	switch {
	case query.Ticker != "":
		rc, err = h.retriever.RetrieveByTicker(c.Request.Context(), query.Q, query.Ticker, query.TopK)
	case query.Company != "":
		rc, err = h.retriever.RetrieveByCompany(c.Request.Context(), query.Q, query.Company, query.TopK)
	default:
		rc, err = h.retriever.Retrieve(c.Request.Context(), query.Q, entity.Filter{}, query.TopK, true)
	}
	if err != nil {
		logger.Error(c.Request.Context(), "文档检索失败", err)
		dto.FromError(c, err)
		return
	}

	dto.Success(c, dto.SearchDocumentsResult{
		Chunks:     rc.Chunks,
		TotalFound: rc.TotalFound,
	})
}

// Get 获取文档元数据
// GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if doc == nil {
		dto.NotFound(c, "document not found")
		return
	}
	dto.Success(c, doc)
}

// List 按过滤条件分页查询文档
// GET /api/v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	var query struct {
		Ticker       string `form:"ticker" binding:"omitempty,max=16"`
		Company      string `form:"company" binding:"omitempty,max=256"`
		DocumentType string `form:"document_type" binding:"omitempty,max=50"`
		Page         int    `form:"page,default=1" binding:"omitempty,min=1"`
		PageSize     int    `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, "invalid query: "+err.Error())
		return
	}

	filter := &repository.DocumentFilter{
		Ticker:       query.Ticker,
		Company:      query.Company,
		DocumentType: entity.DocumentType(query.DocumentType),
	}

	result, err := h.documents.List(c.Request.Context(), filter, repository.NewPagination(query.Page, query.PageSize))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.SuccessWithPage(c, result.Items, dto.NewPageMeta(query.Page, query.PageSize, result.Total))
}

// Delete 删除文档：先清向量再删元数据
// DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	if h.indexer == nil {
		dto.Error(c, http.StatusServiceUnavailable, "document indexing unavailable")
		return
	}

	documentID := c.Param("id")

	if err := h.indexer.DeleteDocument(c.Request.Context(), documentID); err != nil {
		logger.Error(c.Request.Context(), "文档删除失败", err, "document_id", documentID)
		dto.FromError(c, err)
		return
	}

	dto.NoContent(c)
}
