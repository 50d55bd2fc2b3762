package model

// Document 是语料中的一篇原始文档（如一条医疗转录记录）。
type Document struct {
	ID        string // 源对象名与序号的 md5
	Title     string
	Source    string // 来源对象名
	Specialty string // 医学专科分类，可为空
	Text      string
}

// ChunkRecord 对应于数据库中的 document_chunks 表。
// 切分结果先落库，再由流水线读取做向量化与索引。
type ChunkRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocID        string `gorm:"type:varchar(32);not null;index;column:doc_id" json:"docId"`
	ChunkID      int    `gorm:"not null;column:chunk_id" json:"chunkId"`
	Title        string `gorm:"type:varchar(255);column:title" json:"title"`
	Specialty    string `gorm:"type:varchar(100);index;column:specialty" json:"specialty"`
	TextContent  string `gorm:"type:text;column:text_content" json:"textContent"`
	Offset       int    `gorm:"not null;default:0;column:rune_offset" json:"offset"`
	ModelVersion string `gorm:"type:varchar(50);column:model_version" json:"modelVersion"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChunkRecord) TableName() string {
	return "document_chunks"
}
