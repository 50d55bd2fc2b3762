package model

// SearchResultDTO 定义了返回给前端的检索结果结构。
// Score 仅在同一 embedding 模型版本内可比。
type SearchResultDTO struct {
	DocID       string  `json:"docId"`
	Title       string  `json:"title"`
	Specialty   string  `json:"specialty"`
	ChunkID     int     `json:"chunkId"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
}

// SourceRef 标识回答引用的一个来源段落。
type SourceRef struct {
	DocID   string  `json:"docId"`
	Title   string  `json:"title"`
	ChunkID int     `json:"chunkId"`
	Score   float64 `json:"score"`
}
