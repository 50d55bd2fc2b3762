package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisecure-go/internal/model"
	"medisecure-go/internal/service"
)

// fakeQueryService 按查询文本返回固定结果，用于隔离评测逻辑。
type fakeQueryService struct {
	resultsByQuery map[string][]model.SearchResultDTO
	errByQuery     map[string]error
}

func (f *fakeQueryService) Search(_ context.Context, query string, _ int, _ string) ([]model.SearchResultDTO, error) {
	if err, ok := f.errByQuery[query]; ok {
		return nil, err
	}
	return f.resultsByQuery[query], nil
}

func (f *fakeQueryService) Retrieve(context.Context, string, int, string) (*service.RetrievedContext, error) {
	return nil, nil
}

func hitsFor(docIDs ...string) []model.SearchResultDTO {
	results := make([]model.SearchResultDTO, 0, len(docIDs))
	for _, id := range docIDs {
		results = append(results, model.SearchResultDTO{DocID: id, Score: 0.9})
	}
	return results
}

func TestRunComputesHitRateAndMRR(t *testing.T) {
	qs := &fakeQueryService{
		resultsByQuery: map[string][]model.SearchResultDTO{
			// 名次 1，reciprocal 1.0
			"allergy symptoms": hitsFor("doc-a", "doc-b"),
			// 名次 3，reciprocal 1/3
			"gastric bypass": hitsFor("doc-x", "doc-y", "doc-b"),
			// 未命中
			"knee pain": hitsFor("doc-z"),
		},
	}
	cases := []Case{
		{Query: "allergy symptoms", ExpectedDocID: "doc-a"},
		{Query: "gastric bypass", ExpectedDocID: "doc-b"},
		{Query: "knee pain", ExpectedDocID: "doc-k"},
	}

	report, err := Run(context.Background(), qs, cases, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Hits)
	assert.Equal(t, 0, report.Failed)
	assert.InDelta(t, 2.0/3.0, report.HitRate, 1e-9)
	assert.InDelta(t, (1.0+1.0/3.0)/3.0, report.MRR, 1e-9)

	require.Len(t, report.Cases, 3)
	assert.Equal(t, 1, report.Cases[0].Rank)
	assert.Equal(t, 3, report.Cases[1].Rank)
	assert.Equal(t, 0, report.Cases[2].Rank)
}

// 同一文档的多个分块只取首次出现的名次。
func TestRunRanksByFirstChunkOfExpectedDoc(t *testing.T) {
	qs := &fakeQueryService{
		resultsByQuery: map[string][]model.SearchResultDTO{
			"q": hitsFor("doc-other", "doc-a", "doc-a"),
		},
	}
	report, err := Run(context.Background(), qs, []Case{{Query: "q", ExpectedDocID: "doc-a"}}, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Cases[0].Rank)
	assert.InDelta(t, 0.5, report.MRR, 1e-9)
}

func TestRunCountsFailedCases(t *testing.T) {
	qs := &fakeQueryService{
		resultsByQuery: map[string][]model.SearchResultDTO{
			"good": hitsFor("doc-a"),
		},
		errByQuery: map[string]error{
			"bad": errors.New("embedding api down"),
		},
	}
	cases := []Case{
		{Query: "good", ExpectedDocID: "doc-a"},
		{Query: "bad", ExpectedDocID: "doc-b"},
	}

	report, err := Run(context.Background(), qs, cases, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Hits)
	assert.Equal(t, 1, report.Failed)
	assert.Error(t, report.Cases[1].Err)
	assert.InDelta(t, 0.5, report.HitRate, 1e-9)
}

func TestRunRejectsNonPositiveTopK(t *testing.T) {
	_, err := Run(context.Background(), &fakeQueryService{}, []Case{{Query: "q", ExpectedDocID: "d"}}, 0)
	assert.Error(t, err)
}

func TestLoadCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.jsonl")
	content := `{"query":"allergy symptoms","expected_doc_id":"doc-a"}

{"query":"gastric bypass","expected_doc_id":"doc-b","specialty":"Bariatrics"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cases, err := LoadCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "doc-a", cases[0].ExpectedDocID)
	assert.Equal(t, "Bariatrics", cases[1].Specialty)
}

func TestLoadCasesRejectsIncompleteCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"query":"only query"}`), 0o644))

	_, err := LoadCases(path)
	assert.Error(t, err)
}
