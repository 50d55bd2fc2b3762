// Package rerank provides a client for Cohere-style /rerank APIs.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"medisecure-go/internal/config"
	"medisecure-go/internal/errs"
	"medisecure-go/pkg/log"
)

// Result maps a reranked position back to the input document index.
type Result struct {
	Index int
	Score float64
}

// Reranker re-scores retrieved passages against the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error)
}

type httpReranker struct {
	cfg    config.RerankConfig
	client *http.Client
}

// NewClient creates an HTTP reranker from config.
func NewClient(cfg config.RerankConfig) Reranker {
	return &httpReranker{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *httpReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	reqBytes, err := json.Marshal(rerankRequest{
		Model:     r.cfg.Model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.cfg.BaseURL+"/rerank", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errs.Upstream("rerank api call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Upstream("rerank api error", fmt.Errorf("non-200 status: %s", resp.Status))
	}

	var rerankResp rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, errs.Upstream("decode rerank response", err)
	}

	results := make([]Result, 0, len(rerankResp.Results))
	for _, item := range rerankResp.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			log.Warnf("[Reranker] rerank API 返回越界下标: %d", item.Index)
			continue
		}
		results = append(results, Result{Index: item.Index, Score: item.RelevanceScore})
	}
	return results, nil
}

// Identity keeps the original order. Used when reranking is disabled.
type Identity struct{}

func (Identity) Rerank(_ context.Context, _ string, documents []string, topN int) ([]Result, error) {
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}
	results := make([]Result, topN)
	for i := 0; i < topN; i++ {
		results[i] = Result{Index: i}
	}
	return results, nil
}
