package entity

// RetrievalContext 单次检索的结果上下文，不做持久化
// Chunks 的顺序即最终排序（若启用重排则为重排后的顺序）
type RetrievalContext struct {
	Chunks         []DocumentChunk   `json:"chunks,omitempty"`
	TotalFound     int               `json:"total_found"`
	QueryEmbedding []float32         `json:"query_embedding,omitempty"`
	SearchMetadata map[string]string `json:"search_metadata,omitempty"`
}
