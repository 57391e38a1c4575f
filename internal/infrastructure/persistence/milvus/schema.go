// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionDocumentChunks 文档片段集合
	CollectionDocumentChunks = "document_chunks"
)

// DocumentChunksSchema 文档片段 Collection Schema
// dim 为部署固定的向量维度，必须与 Embedding 服务输出一致
func DocumentChunksSchema(dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionDocumentChunks,
		Description:    "Financial document chunks for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dim),
				},
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "ticker",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "16",
				},
			},
			{
				Name:     "company",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "document_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "50",
				},
			},
			{
				Name:     "reference_date",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "page_number",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "section_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// ChunkRecord 文档片段存储结构
type ChunkRecord struct {
	ID            string    `json:"id"`
	Vector        []float32 `json:"vector"`
	DocumentID    string    `json:"document_id"`
	Ticker        string    `json:"ticker"`
	Company       string    `json:"company"`
	DocumentType  string    `json:"document_type"`
	ReferenceDate int64     `json:"reference_date"`
	PageNumber    int64     `json:"page_number"`
	ChunkIndex    int64     `json:"chunk_index"`
	SectionType   string    `json:"section_type"`
	Content       string    `json:"content"`

	// Score 检索时由相似度填充，不作为集合字段存储
	Score float64 `json:"score,omitempty"`
}
