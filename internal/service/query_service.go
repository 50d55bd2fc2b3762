// Package service 提供了检索相关的业务逻辑。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"medisecure-go/internal/config"
	"medisecure-go/internal/errs"
	"medisecure-go/internal/model"
	"medisecure-go/internal/repository"
	"medisecure-go/pkg/embedding"
	"medisecure-go/pkg/index"
	"medisecure-go/pkg/log"
	"medisecure-go/pkg/rerank"
	"medisecure-go/pkg/retry"
)

// RetrievedContext 是一次检索的完整产出：供 LLM 使用的上下文文本、
// 有序的来源引用与原始命中结果。
type RetrievedContext struct {
	ContextText string
	Sources     []model.SourceRef
	Results     []model.SearchResultDTO
}

// QueryService 接口定义了检索操作。
type QueryService interface {
	// Search 只做检索，返回按分数降序的结果。索引为空时返回空列表。
	Search(ctx context.Context, query string, topK int, specialty string) ([]model.SearchResultDTO, error)
	// Retrieve 检索并在 rune 预算内组装上下文文本。
	Retrieve(ctx context.Context, query string, topK int, specialty string) (*RetrievedContext, error)
}

type queryService struct {
	embeddingClient embedding.Client
	vectorIndex     index.Index
	reranker        rerank.Reranker
	queryCache      repository.QueryCacheRepository
	cfg             config.RetrievalConfig
}

// NewQueryService 创建一个新的 QueryService 实例。
// reranker 传 rerank.Identity{} 表示不做重排。queryCache 可为 nil。
func NewQueryService(
	embeddingClient embedding.Client,
	vectorIndex index.Index,
	reranker rerank.Reranker,
	queryCache repository.QueryCacheRepository,
	cfg config.RetrievalConfig,
) QueryService {
	return &queryService{
		embeddingClient: embeddingClient,
		vectorIndex:     vectorIndex,
		reranker:        reranker,
		queryCache:      queryCache,
		cfg:             cfg,
	}
}

// validate 校验查询并将 topK 收敛到 [1, MaxTopK]。
func (s *queryService) validate(query string, topK int) (int, error) {
	if strings.TrimSpace(query) == "" {
		return 0, errs.Validation("query must not be empty")
	}
	if utf8.RuneCountInString(query) > s.cfg.MaxQueryLength {
		return 0, errs.Newf(errs.KindValidation, "query exceeds %d characters", s.cfg.MaxQueryLength)
	}
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK > s.cfg.MaxTopK {
		topK = s.cfg.MaxTopK
	}
	return topK, nil
}

func (s *queryService) Search(ctx context.Context, query string, topK int, specialty string) ([]model.SearchResultDTO, error) {
	topK, err := s.validate(query, topK)
	if err != nil {
		return nil, err
	}

	// 查询缓存命中直接返回
	cacheKey := repository.CacheKey(query, topK, specialty)
	if s.queryCache != nil {
		if data, ok := s.queryCache.Get(ctx, cacheKey); ok {
			var cached []model.SearchResultDTO
			if err := json.Unmarshal(data, &cached); err == nil {
				log.Infof("[QueryService] 查询缓存命中, query: '%.60s'", query)
				return cached, nil
			}
		}
	}

	results, err := s.retrieve(ctx, query, topK, specialty)
	if err != nil {
		return nil, err
	}

	if s.queryCache != nil {
		if data, err := json.Marshal(results); err == nil {
			s.queryCache.Set(ctx, cacheKey, data)
		}
	}
	return results, nil
}

func (s *queryService) Retrieve(ctx context.Context, query string, topK int, specialty string) (*RetrievedContext, error) {
	topK, err := s.validate(query, topK)
	if err != nil {
		return nil, err
	}

	results, err := s.retrieve(ctx, query, topK, specialty)
	if err != nil {
		return nil, err
	}

	contextText, sources := s.buildContext(results)
	return &RetrievedContext{
		ContextText: contextText,
		Sources:     sources,
		Results:     results,
	}, nil
}

// retrieve 执行核心检索流程：向量化 → 召回 → 阈值过滤 → 重排 → 截断。
func (s *queryService) retrieve(ctx context.Context, query string, topK int, specialty string) ([]model.SearchResultDTO, error) {
	log.Infof("[QueryService] 开始检索, query: '%.60s', topK: %d, specialty: '%s'", query, topK, specialty)

	// 1. 向量化查询
	var queryVector []float32
	err := retry.Do(ctx, 3, 500*time.Millisecond, "embed query", func() error {
		var embErr error
		queryVector, embErr = s.embeddingClient.CreateEmbedding(ctx, query)
		return embErr
	})
	if err != nil {
		log.Errorf("[QueryService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	// 2. 超量召回（topK*2），为阈值过滤和重排留余量
	var hits []index.Hit
	err = retry.Do(ctx, 3, 500*time.Millisecond, "vector search", func() error {
		var searchErr error
		hits, searchErr = s.vectorIndex.Search(ctx, queryVector, topK*2, index.Filter{Specialty: specialty})
		return searchErr
	})
	if err != nil {
		log.Errorf("[QueryService] 向量检索失败: %v", err)
		return nil, err
	}
	log.Infof("[QueryService] 召回 %d 条候选", len(hits))

	// 3. 丢弃低于相似度阈值的候选
	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= s.cfg.SimilarityThreshold {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		log.Info("[QueryService] 阈值过滤后无结果")
		return []model.SearchResultDTO{}, nil
	}

	// 4. 重排（禁用时为保持原序的 Identity）
	documents := make([]string, len(kept))
	for i, h := range kept {
		documents[i] = h.TextContent
	}
	order, err := s.reranker.Rerank(ctx, query, documents, topK)
	if err != nil {
		// 重排失败回退到向量相似度排序
		log.Warnf("[QueryService] 重排失败，回退原始排序: %v", err)
		order = nil
	}

	var ranked []index.Hit
	if order != nil {
		ranked = make([]index.Hit, 0, len(order))
		for _, r := range order {
			ranked = append(ranked, kept[r.Index])
		}
	} else {
		ranked = kept
	}

	// 5. 截断到 topK 并组装 DTO
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	results := make([]model.SearchResultDTO, 0, len(ranked))
	for _, h := range ranked {
		results = append(results, model.SearchResultDTO{
			DocID:       h.DocID,
			Title:       h.Title,
			Specialty:   h.Specialty,
			ChunkID:     h.ChunkID,
			TextContent: h.TextContent,
			Score:       h.Score,
		})
	}
	log.Infof("[QueryService] 检索完成, 返回 %d 条结果", len(results))
	return results, nil
}

// buildContext 在 rune 预算内按排名顺序拼接段落，放不下的段落整体丢弃。
// 每个段落标注序号与标题，便于模型引用来源。
func (s *queryService) buildContext(results []model.SearchResultDTO) (string, []model.SourceRef) {
	if len(results) == 0 {
		return "", nil
	}

	var contextBuilder strings.Builder
	var sources []model.SourceRef
	used := 0
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "unknown"
		}
		passage := fmt.Sprintf("[%d] (%s) %s\n", i+1, title, r.TextContent)
		passageLen := utf8.RuneCountInString(passage)
		if used+passageLen > s.cfg.ContextBudget {
			break
		}
		contextBuilder.WriteString(passage)
		used += passageLen
		sources = append(sources, model.SourceRef{
			DocID:   r.DocID,
			Title:   r.Title,
			ChunkID: r.ChunkID,
			Score:   r.Score,
		})
	}
	return contextBuilder.String(), sources
}
