// Package pipeline 定义了语料索引的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"medisecure-go/internal/config"
	"medisecure-go/internal/ingest"
	"medisecure-go/internal/model"
	"medisecure-go/internal/repository"
	"medisecure-go/pkg/embedding"
	"medisecure-go/pkg/index"
	"medisecure-go/pkg/log"
	"medisecure-go/pkg/retry"
	"medisecure-go/pkg/storage"
	"medisecure-go/pkg/tasks"
)

// Processor 封装了索引流水线的所有依赖和逻辑。
// 流程分两个阶段：先把切分结果落库，再读回做向量化与索引，
// 保证索引内容始终可由数据库重建。
type Processor struct {
	storageClient   *storage.Client
	embeddingClient embedding.Client
	vectorIndex     index.Index
	chunkRepo       repository.ChunkRepository
	chunker         *ingest.Chunker
	embeddingCfg    config.EmbeddingConfig
}

// NewProcessor 创建一个新的 Processor 实例。chunkRepo 可为 nil（未配置 MySQL），
// 此时跳过落库阶段，直接向量化并索引。
func NewProcessor(
	storageClient *storage.Client,
	embeddingClient embedding.Client,
	vectorIndex index.Index,
	chunkRepo repository.ChunkRepository,
	chunker *ingest.Chunker,
	embeddingCfg config.EmbeddingConfig,
) *Processor {
	return &Processor{
		storageClient:   storageClient,
		embeddingClient: embeddingClient,
		vectorIndex:     vectorIndex,
		chunkRepo:       chunkRepo,
		chunker:         chunker,
		embeddingCfg:    embeddingCfg,
	}
}

// Process 是索引任务的主函数，处理一个语料对象。
func (p *Processor) Process(ctx context.Context, task tasks.IndexingTask) error {
	log.Infof("[Processor] 开始处理语料对象: %s", task.ObjectName)

	// 1. 从 MinIO 下载对象
	log.Infof("[Processor] 步骤1: 从 MinIO 下载对象 '%s'", task.ObjectName)
	data, err := p.storageClient.GetObject(ctx, task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] 下载对象失败, object: %s, error: %v", task.ObjectName, err)
		return fmt.Errorf("从 MinIO 下载对象失败: %w", err)
	}
	if len(data) == 0 {
		log.Warnf("[Processor] 对象 '%s' 内容为空, 处理中止", task.ObjectName)
		return errors.New("对象内容为空")
	}
	log.Infof("[Processor] 步骤1: 下载成功, 大小: %d 字节", len(data))

	// 2. 解析为文档
	log.Info("[Processor] 步骤2: 解析语料文档")
	docs, err := ingest.ParseObject(task.ObjectName, data)
	if err != nil {
		return fmt.Errorf("解析语料对象失败: %w", err)
	}
	if len(docs) == 0 {
		log.Warnf("[Processor] 对象 '%s' 未解析出任何文档", task.ObjectName)
		return nil
	}
	log.Infof("[Processor] 步骤2: 解析出 %d 篇文档", len(docs))

	for i, doc := range docs {
		if err := p.processDocument(ctx, doc); err != nil {
			return fmt.Errorf("处理文档 %d/%d (%s) 失败: %w", i+1, len(docs), doc.ID, err)
		}
	}

	log.Infof("[Processor] 语料对象处理成功完成: %s", task.ObjectName)
	return nil
}

// processDocument 处理单篇文档：切分 → 落库 → 向量化 → 替换索引。
func (p *Processor) processDocument(ctx context.Context, doc model.Document) error {
	log.Infof("[Processor] 处理文档 '%s' (%s), 长度: %d 字符",
		doc.Title, doc.ID, utf8.RuneCountInString(doc.Text))

	// 3. 文本切块
	chunks := p.chunker.Split(doc.Text)
	log.Infof("[Processor] 步骤3: 文本分块完成, 共 %d 个分块", len(chunks))
	if len(chunks) == 0 {
		log.Warnf("[Processor] 文档 '%s' 未生成任何分块, 跳过", doc.ID)
		return nil
	}

	// 阶段一：分块落库（幂等：先清理该文档既有记录）
	records := make([]*model.ChunkRecord, 0, len(chunks))
	for _, chunk := range chunks {
		records = append(records, &model.ChunkRecord{
			DocID:        doc.ID,
			ChunkID:      chunk.Index,
			Title:        doc.Title,
			Specialty:    doc.Specialty,
			TextContent:  chunk.Text,
			Offset:       chunk.Offset,
			ModelVersion: p.embeddingCfg.Model,
		})
	}
	if p.chunkRepo != nil {
		log.Info("[Processor] 阶段一: 将分块存入数据库")
		if err := p.chunkRepo.DeleteByDocID(doc.ID); err != nil {
			log.Warnf("[Processor] 清理 document_chunks 旧记录失败 (doc_id=%s): %v", doc.ID, err)
		}
		if err := p.chunkRepo.BatchCreate(records); err != nil {
			return fmt.Errorf("批量保存文本分块失败: %w", err)
		}
		// 阶段二：从数据库读回，保证索引内容与库中一致
		saved, err := p.chunkRepo.FindByDocID(doc.ID)
		if err != nil {
			return fmt.Errorf("从数据库读取分块失败: %w", err)
		}
		records = saved
	}

	// 4. 批量向量化
	log.Infof("[Processor] 步骤4: 向量化 %d 个分块", len(records))
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.TextContent
	}
	var vectors [][]float32
	err := retry.Do(ctx, 3, time.Second, "embed chunks", func() error {
		var embErr error
		vectors, embErr = p.embeddingClient.CreateEmbeddings(ctx, texts)
		return embErr
	})
	if err != nil {
		return fmt.Errorf("分块向量化失败: %w", err)
	}

	// 5. 替换式写入索引：先删旧记录，再写入新记录
	log.Info("[Processor] 步骤5: 更新向量索引")
	entries := make([]index.Entry, 0, len(records))
	for i, r := range records {
		entries = append(entries, index.Entry{
			EntryID:      fmt.Sprintf("%s_%d", r.DocID, r.ChunkID),
			DocID:        r.DocID,
			ChunkID:      r.ChunkID,
			Title:        r.Title,
			Specialty:    r.Specialty,
			TextContent:  r.TextContent,
			Vector:       vectors[i],
			ModelVersion: p.embeddingCfg.Model,
		})
	}
	if err := p.vectorIndex.DeleteByDocID(ctx, doc.ID); err != nil {
		return fmt.Errorf("清理文档旧索引失败: %w", err)
	}
	if err := p.vectorIndex.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("写入向量索引失败: %w", err)
	}

	log.Infof("[Processor] 文档 '%s' 索引完成, %d 条记录", doc.ID, len(entries))
	return nil
}
