// Package main 是检索评测工具的入口：对 JSONL 用例集跑在线检索，
// 输出命中率与 MRR。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"medisecure-go/internal/config"
	"medisecure-go/internal/eval"
	"medisecure-go/internal/service"
	"medisecure-go/pkg/embedding"
	"medisecure-go/pkg/index"
	"medisecure-go/pkg/log"
	"medisecure-go/pkg/rerank"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	casesPath := flag.String("cases", "", "评测用例 JSONL 文件路径")
	topK := flag.Int("topk", 5, "每条查询取前 K 条结果")
	flag.Parse()

	if *casesPath == "" {
		fmt.Fprintln(os.Stderr, "用法: eval -cases <cases.jsonl> [-config <path>] [-topk <n>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	// 向量索引后端由配置选择，与主服务一致
	var vectorIndex index.Index
	switch cfg.VectorStore.Type {
	case "pgvector":
		vectorIndex, err = index.NewPG(context.Background(), cfg.VectorStore.Postgres, cfg.Embedding.Dimensions)
	default:
		vectorIndex, err = index.NewES(cfg.VectorStore.Elasticsearch, cfg.Embedding.Dimensions)
	}
	if err != nil {
		log.Fatalf("向量索引初始化失败: %v", err)
	}

	embeddingClient := embedding.NewClient(cfg.Embedding)
	var reranker rerank.Reranker = rerank.Identity{}
	if cfg.Rerank.Enabled {
		reranker = rerank.NewClient(cfg.Rerank)
	}

	// 评测不走查询缓存，确保每条用例都真实命中检索链路
	queryService := service.NewQueryService(embeddingClient, vectorIndex, reranker, nil, cfg.Retrieval)

	cases, err := eval.LoadCases(*casesPath)
	if err != nil {
		log.Fatalf("加载评测用例失败: %v", err)
	}

	report, err := eval.Run(context.Background(), queryService, cases, *topK)
	if err != nil {
		log.Fatalf("评测执行失败: %v", err)
	}

	fmt.Printf("cases:    %d\n", report.Total)
	fmt.Printf("hits:     %d\n", report.Hits)
	fmt.Printf("failed:   %d\n", report.Failed)
	fmt.Printf("hit rate: %.4f\n", report.HitRate)
	fmt.Printf("mrr:      %.4f\n", report.MRR)
	for i, c := range report.Cases {
		status := "miss"
		switch {
		case c.Err != nil:
			status = "error: " + c.Err.Error()
		case c.Rank > 0:
			status = fmt.Sprintf("rank %d", c.Rank)
		}
		fmt.Printf("  [%d] %-40.40s %s\n", i+1, c.Query, status)
	}
}
