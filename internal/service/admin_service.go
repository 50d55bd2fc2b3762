package service

import (
	"context"

	"medisecure-go/internal/repository"
	"medisecure-go/pkg/index"
	"medisecure-go/pkg/kafka"
	"medisecure-go/pkg/log"
	"medisecure-go/pkg/storage"
	"medisecure-go/pkg/tasks"
)

// AdminStats 是管理端统计信息。
type AdminStats struct {
	IndexEntries   int64 `json:"indexEntries"`
	ChunkRecords   int64 `json:"chunkRecords"`
	ActiveSessions int64 `json:"activeSessions"`
}

// AdminService 提供管理端操作：全量重建索引与运行状态统计。
type AdminService interface {
	// Reindex 为桶内每个语料对象投递一个索引任务，返回任务数。
	Reindex(ctx context.Context, requestedBy uint) (int, error)
	// Stats 汇总索引、分块与会话数量。
	Stats(ctx context.Context) (*AdminStats, error)
}

type adminService struct {
	storageClient *storage.Client
	producer      *kafka.Producer
	vectorIndex   index.Index
	chunkRepo     repository.ChunkRepository
	sessionRepo   repository.SessionRepository
}

// NewAdminService 创建一个新的 AdminService 实例。chunkRepo 可为 nil（未配置 MySQL）。
func NewAdminService(
	storageClient *storage.Client,
	producer *kafka.Producer,
	vectorIndex index.Index,
	chunkRepo repository.ChunkRepository,
	sessionRepo repository.SessionRepository,
) AdminService {
	return &adminService{
		storageClient: storageClient,
		producer:      producer,
		vectorIndex:   vectorIndex,
		chunkRepo:     chunkRepo,
		sessionRepo:   sessionRepo,
	}
}

func (s *adminService) Reindex(ctx context.Context, requestedBy uint) (int, error) {
	objects, err := s.storageClient.ListObjects(ctx)
	if err != nil {
		return 0, err
	}

	produced := 0
	for _, objectName := range objects {
		info, err := s.storageClient.StatObject(ctx, objectName)
		if err != nil {
			log.Warnf("[AdminService] 获取对象元数据失败, object: %s, error: %v", objectName, err)
			continue
		}
		task := tasks.IndexingTask{
			ObjectName:  objectName,
			ObjectMD5:   info.ETag,
			RequestedBy: requestedBy,
			Reindex:     true,
		}
		if err := s.producer.ProduceIndexingTask(ctx, task); err != nil {
			return produced, err
		}
		produced++
	}
	log.Infof("[AdminService] 重建索引已触发, 共投递 %d 个任务", produced)
	return produced, nil
}

func (s *adminService) Stats(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{}

	entries, err := s.vectorIndex.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.IndexEntries = entries

	if s.chunkRepo != nil {
		chunks, err := s.chunkRepo.Count()
		if err != nil {
			return nil, err
		}
		stats.ChunkRecords = chunks
	}

	sessions, err := s.sessionRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.ActiveSessions = sessions
	return stats, nil
}
