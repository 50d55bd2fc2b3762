package repository

import (
	"gorm.io/gorm"

	"medisecure-go/internal/model"
)

// ChunkRepository 定义了对 document_chunks 表的数据操作接口。
type ChunkRepository interface {
	BatchCreate(chunks []*model.ChunkRecord) error
	FindByDocID(docID string) ([]*model.ChunkRecord, error)
	DeleteByDocID(docID string) error
	Count() (int64, error)
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// BatchCreate 批量创建分块记录。
func (r *chunkRepository) BatchCreate(chunks []*model.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error // 每100条记录一批
}

// FindByDocID 根据文档ID查找所有分块记录，按 chunk_id 升序。
func (r *chunkRepository) FindByDocID(docID string) ([]*model.ChunkRecord, error) {
	var chunks []*model.ChunkRecord
	err := r.db.Where("doc_id = ?", docID).Order("chunk_id asc").Find(&chunks).Error
	return chunks, err
}

// DeleteByDocID 根据文档ID删除所有分块记录。
func (r *chunkRepository) DeleteByDocID(docID string) error {
	return r.db.Where("doc_id = ?", docID).Delete(&model.ChunkRecord{}).Error
}

// Count 返回分块记录总数。
func (r *chunkRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.ChunkRecord{}).Count(&count).Error
	return count, err
}
