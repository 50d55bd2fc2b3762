// Package index 提供可插拔的向量索引：Elasticsearch（默认）与 pgvector。
package index

import "context"

// Entry 是索引中的一条向量记录，对应语料的一个文本块。
type Entry struct {
	EntryID      string    `json:"entry_id"`
	DocID        string    `json:"doc_id"`
	ChunkID      int       `json:"chunk_id"`
	Title        string    `json:"title"`
	Specialty    string    `json:"specialty"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// Hit 是一条检索命中，Score 为相似度（同一模型版本内可比）。
type Hit struct {
	Entry
	Score float64
}

// Filter 限定检索范围，零值表示不过滤。
type Filter struct {
	Specialty string
}

// Index 是向量索引的统一接口。重建时先 DeleteByDocID 再 Upsert，
// 不原地修改已有向量。
type Index interface {
	// Ensure 确保索引结构存在（建索引/建表）。
	Ensure(ctx context.Context) error
	// Upsert 批量写入或覆盖记录。
	Upsert(ctx context.Context, entries []Entry) error
	// DeleteByDocID 删除某文档的全部记录。
	DeleteByDocID(ctx context.Context, docID string) error
	// Search 按向量相似度返回至多 topK 条命中，按分数降序。
	// 索引为空时返回空切片而不是错误。
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error)
	// Count 返回索引中的记录总数。
	Count(ctx context.Context) (int64, error)
}
