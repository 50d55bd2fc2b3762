package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 两个后端的分数必须落在同一标度：Elasticsearch cosine 的 (1 + cos) / 2。
// pgvector 的 <=> 返回余弦距离 1 - cos，换算关系为 1 - d/2。
func TestScoreFromCosineDistance(t *testing.T) {
	// 完全同向
	assert.InDelta(t, 1.0, scoreFromCosineDistance(0), 1e-9)
	// 正交
	assert.InDelta(t, 0.5, scoreFromCosineDistance(1), 1e-9)
	// 完全反向
	assert.InDelta(t, 0.0, scoreFromCosineDistance(2), 1e-9)
	assert.InDelta(t, 0.75, scoreFromCosineDistance(0.5), 1e-9)
}
