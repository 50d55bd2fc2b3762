package index

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"medisecure-go/internal/config"
	"medisecure-go/internal/errs"
	"medisecure-go/pkg/log"
)

type esIndex struct {
	client    *elasticsearch.Client
	indexName string
	dims      int
}

// NewES 创建 Elasticsearch 向量索引。dims 必须与 embedding 模型维度一致。
func NewES(cfg config.ElasticsearchConfig, dims int) (Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return &esIndex{client: client, indexName: cfg.IndexName, dims: dims}, nil
}

// Ensure 检查索引是否存在，不存在则按 dense_vector/cosine 映射创建。
func (e *esIndex) Ensure(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.indexName}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errs.Upstream("check index exists", err)
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", e.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return errs.Upstream("check index exists", fmt.Errorf("unexpected status: %d", res.StatusCode))
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"entry_id": { "type": "keyword" },
				"doc_id": { "type": "keyword" },
				"chunk_id": { "type": "integer" },
				"title": { "type": "text" },
				"specialty": { "type": "keyword" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, e.dims)

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return errs.Upstream("create index", err)
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", e.indexName, res.String())
		return errs.Upstream("create index", errors.New(res.String()))
	}

	log.Infof("索引 '%s' 创建成功", e.indexName)
	return nil
}

func (e *esIndex) Upsert(ctx context.Context, entries []Entry) error {
	for _, entry := range entries {
		docBytes, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		req := esapi.IndexRequest{
			Index:      e.indexName,
			DocumentID: entry.EntryID,
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, e.client)
		if err != nil {
			return errs.Upstream("index entry", err)
		}
		if res.IsError() {
			body := res.String()
			res.Body.Close()
			log.Errorf("索引记录到 Elasticsearch 出错: %s", body)
			return errs.Upstream("index entry", errors.New(body))
		}
		res.Body.Close()
	}
	return nil
}

func (e *esIndex) DeleteByDocID(ctx context.Context, docID string) error {
	query := fmt.Sprintf(`{"query": {"term": {"doc_id": %q}}}`, docID)
	res, err := e.client.DeleteByQuery(
		[]string{e.indexName},
		strings.NewReader(query),
		e.client.DeleteByQuery.WithContext(ctx),
		e.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return errs.Upstream("delete by doc_id", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errs.Upstream("delete by doc_id", errors.New(res.String()))
	}
	return nil
}

func (e *esIndex) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
		},
		"size": topK,
	}
	if filter.Specialty != "" {
		knn := esQuery["knn"].(map[string]interface{})
		knn["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"specialty": filter.Specialty},
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, errs.Upstream("elasticsearch search", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, errs.Upstream("elasticsearch search", errors.New(res.Status()))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source Entry   `json:"_source"`
				Score  float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, errs.Upstream("decode es response", err)
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, Hit{Entry: h.Source, Score: h.Score})
	}
	return hits, nil
}

func (e *esIndex) Count(ctx context.Context) (int64, error) {
	res, err := e.client.Count(
		e.client.Count.WithContext(ctx),
		e.client.Count.WithIndex(e.indexName),
	)
	if err != nil {
		return 0, errs.Upstream("count entries", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, errs.Upstream("count entries", errors.New(res.String()))
	}

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, errs.Upstream("decode count response", err)
	}
	return countResp.Count, nil
}
