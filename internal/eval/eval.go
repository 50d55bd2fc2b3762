// Package eval 提供检索质量的离线评测：对一组标注了期望文档的
// 查询逐条跑检索，统计命中率与 MRR。
package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"medisecure-go/internal/errs"
	"medisecure-go/internal/service"
	"medisecure-go/pkg/log"
)

// Case 是一条评测用例：查询文本与期望被召回的文档。
type Case struct {
	Query         string `json:"query"`
	ExpectedDocID string `json:"expected_doc_id"`
	Specialty     string `json:"specialty,omitempty"`
}

// CaseResult 记录单条用例的评测结果。
type CaseResult struct {
	Query string
	// Rank 为期望文档在结果中的名次（从 1 开始），未命中为 0。
	Rank int
	Err  error
}

// Report 是一次评测的汇总。
type Report struct {
	Total   int
	Hits    int
	Failed  int
	HitRate float64
	MRR     float64
	Cases   []CaseResult
}

// LoadCases 从 JSONL 文件加载评测用例，每行一个 JSON 对象，空行跳过。
func LoadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cases file: %w", err)
	}
	defer f.Close()

	var cases []Case
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var c Case
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, errs.Newf(errs.KindValidation, "invalid case at line %d: %v", line, err)
		}
		if c.Query == "" || c.ExpectedDocID == "" {
			return nil, errs.Newf(errs.KindValidation, "case at line %d missing query or expected_doc_id", line)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cases file: %w", err)
	}
	if len(cases) == 0 {
		return nil, errs.Validation("cases file contains no cases")
	}
	return cases, nil
}

// Run 对每条用例执行检索并汇总命中率与 MRR。
// 命中按文档粒度判定：topK 结果中任意分块属于期望文档即为命中，
// 名次取该文档首次出现的位置。检索出错的用例计入 Failed，不参与命中率分母之外的处理。
func Run(ctx context.Context, qs service.QueryService, cases []Case, topK int) (*Report, error) {
	if topK <= 0 {
		return nil, errs.Validation("topK must be positive")
	}

	report := &Report{Total: len(cases), Cases: make([]CaseResult, 0, len(cases))}
	var reciprocalSum float64

	for i, c := range cases {
		results, err := qs.Search(ctx, c.Query, topK, c.Specialty)
		if err != nil {
			log.Warnf("[Eval] 用例 %d 检索失败: %v", i+1, err)
			report.Failed++
			report.Cases = append(report.Cases, CaseResult{Query: c.Query, Err: err})
			continue
		}

		rank := 0
		for j, r := range results {
			if r.DocID == c.ExpectedDocID {
				rank = j + 1
				break
			}
		}
		if rank > 0 {
			report.Hits++
			reciprocalSum += 1.0 / float64(rank)
		}
		report.Cases = append(report.Cases, CaseResult{Query: c.Query, Rank: rank})
	}

	if report.Total > 0 {
		report.HitRate = float64(report.Hits) / float64(report.Total)
		report.MRR = reciprocalSum / float64(report.Total)
	}
	log.Infof("[Eval] 评测完成: total=%d hits=%d failed=%d hitRate=%.4f mrr=%.4f",
		report.Total, report.Hits, report.Failed, report.HitRate, report.MRR)
	return report, nil
}
