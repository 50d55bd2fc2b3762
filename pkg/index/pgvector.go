package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"medisecure-go/internal/config"
	"medisecure-go/internal/errs"
	"medisecure-go/pkg/log"
)

type pgIndex struct {
	pool  *pgxpool.Pool
	table string
	dims  int
}

// NewPG 创建 pgvector 向量索引，基于 pgxpool 连接池。
func NewPG(ctx context.Context, cfg config.PostgresConfig, dims int) (Index, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Info("Postgres connection pool created successfully")
	return &pgIndex{pool: pool, table: cfg.TableName, dims: dims}, nil
}

// Ensure 启用 vector 扩展并建表。
func (p *pgIndex) Ensure(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			entry_id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			specialty TEXT NOT NULL DEFAULT '',
			text_content TEXT NOT NULL,
			model_version TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, p.table, p.dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_doc_id ON %s (doc_id)`, p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return errs.Upstream("ensure pgvector schema", err)
		}
	}
	return nil
}

func (p *pgIndex) Upsert(ctx context.Context, entries []Entry) error {
	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(
			fmt.Sprintf(`INSERT INTO %s (entry_id, doc_id, chunk_id, title, specialty, text_content, model_version, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (entry_id) DO UPDATE SET
				doc_id = EXCLUDED.doc_id,
				chunk_id = EXCLUDED.chunk_id,
				title = EXCLUDED.title,
				specialty = EXCLUDED.specialty,
				text_content = EXCLUDED.text_content,
				model_version = EXCLUDED.model_version,
				embedding = EXCLUDED.embedding`, p.table),
			entry.EntryID, entry.DocID, entry.ChunkID, entry.Title,
			entry.Specialty, entry.TextContent, entry.ModelVersion,
			pgvector.NewVector(entry.Vector),
		)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < len(entries); i++ {
		if _, err := br.Exec(); err != nil {
			return errs.Upstream(fmt.Sprintf("upsert entry %d", i), err)
		}
	}
	return nil
}

func (p *pgIndex) DeleteByDocID(ctx context.Context, docID string) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, p.table), docID)
	if err != nil {
		return errs.Upstream("delete by doc_id", err)
	}
	return nil
}

// Search 以余弦距离排序检索。pgvector 的 <=> 返回余弦距离（0..2），
// 分数换算为 Elasticsearch dense_vector cosine 的 (1 + cos) / 2 标度，
// 保证同一个相似度阈值对两个后端含义一致。
func (p *pgIndex) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	queryVec := pgvector.NewVector(vector)

	sql := fmt.Sprintf(`SELECT entry_id, doc_id, chunk_id, title, specialty, text_content, model_version,
			embedding <=> $1 AS distance
		 FROM %s`, p.table)
	args := []interface{}{queryVec}
	if filter.Specialty != "" {
		sql += ` WHERE specialty = $2`
		args = append(args, filter.Specialty)
	}
	sql += fmt.Sprintf(` ORDER BY embedding <=> $1 LIMIT %d`, topK)

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.Upstream("pgvector search", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, topK)
	for rows.Next() {
		var h Hit
		var distance float64
		if err := rows.Scan(&h.EntryID, &h.DocID, &h.ChunkID, &h.Title,
			&h.Specialty, &h.TextContent, &h.ModelVersion, &distance); err != nil {
			return nil, errs.Upstream("scan search row", err)
		}
		h.Score = scoreFromCosineDistance(distance)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Upstream("pgvector search", err)
	}
	return hits, nil
}

// scoreFromCosineDistance 把余弦距离 d = 1 - cos 换算为 (1 + cos) / 2，
// 即 1 - d/2：d=0 得 1.0，d=1 得 0.5，d=2 得 0.0。
func scoreFromCosineDistance(distance float64) float64 {
	return 1 - distance/2
}

func (p *pgIndex) Count(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, p.table)).Scan(&count)
	if err != nil {
		return 0, errs.Upstream("count entries", err)
	}
	return count, nil
}
