package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisecure-go/internal/config"
)

func newTestChunker(window, overlap, minLen int) *Chunker {
	return NewChunker(config.ChunkingConfig{
		WindowSize: window,
		Overlap:    overlap,
		MinLength:  minLen,
	})
}

// 无标点文本的块数应满足滑动窗口公式 ceil((L-O)/(W-O))。
func TestSplitChunkCount(t *testing.T) {
	c := newTestChunker(500, 100, 100)

	cases := []struct {
		length int
		want   int
	}{
		{1200, 3},
		{50, 1},
		{2000, 5},
		{500, 1},
		{501, 2},
	}
	for _, tc := range cases {
		text := strings.Repeat("a", tc.length)
		chunks := c.Split(text)
		assert.Len(t, chunks, tc.want, "length=%d", tc.length)
	}
}

func TestSplitEmptyText(t *testing.T) {
	c := newTestChunker(500, 100, 100)
	assert.Nil(t, c.Split(""))
}

// 相邻块应以 Overlap 个 rune 重叠（无标点时）。
func TestSplitOverlap(t *testing.T) {
	c := newTestChunker(500, 100, 100)
	text := strings.Repeat("x", 1200)
	chunks := c.Split(text)
	require.Len(t, chunks, 3)

	for i := 1; i < len(chunks); i++ {
		prevEnd := chunks[i-1].Offset + utf8.RuneCountInString(chunks[i-1].Text)
		assert.Equal(t, prevEnd-100, chunks[i].Offset, "chunk %d", i)
	}
}

// 窗口尾部 20% 范围内的句号应成为块边界。
func TestSplitSnapsToSentenceBoundary(t *testing.T) {
	c := newTestChunker(500, 100, 100)
	// 句号位于位置 449（0-based），在 [400, 499] 的回看范围内
	text := strings.Repeat("a", 449) + "." + strings.Repeat("b", 550)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	first := []rune(chunks[0].Text)
	assert.Equal(t, 450, len(first))
	assert.Equal(t, '.', first[len(first)-1])
	// 下一块从边界回退 Overlap 处开始
	assert.Equal(t, 350, chunks[1].Offset)
}

// 回看范围外的句号不影响切分。
func TestSplitIgnoresBoundaryOutsideLookback(t *testing.T) {
	c := newTestChunker(500, 100, 100)
	// 句号在位置 100，远在回看窗口 [400, 499] 之外
	text := strings.Repeat("a", 100) + "." + strings.Repeat("b", 899)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[0].Text))
}

// 短于 MinLength 的尾块被丢弃，但整篇短文保留为唯一块。
func TestSplitMinLength(t *testing.T) {
	c := newTestChunker(500, 100, 100)

	// 整篇只有 50 个字符：保留
	short := strings.Repeat("a", 50)
	chunks := c.Split(short)
	require.Len(t, chunks, 1)
	assert.Equal(t, short, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Offset)

	// 920 个字符：尾块 [800, 920) 长 120 >= 100，保留
	chunks = c.Split(strings.Repeat("a", 920))
	assert.Len(t, chunks, 3)

	// 重叠小于阈值时过短的尾块被丢弃：
	// (100, 10, 50) 切 195 字符 → [0,100) [90,190)，尾块 [180,195) 长 15 丢弃
	small := newTestChunker(100, 10, 50)
	chunks = small.Split(strings.Repeat("a", 195))
	assert.Len(t, chunks, 2)
}

// 块索引连续且偏移单调递增。
func TestSplitIndexAndOffsets(t *testing.T) {
	c := newTestChunker(500, 100, 100)
	text := strings.Repeat("word. ", 400) // 2400 runes
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		if i > 0 {
			assert.Greater(t, ch.Offset, chunks[i-1].Offset)
		}
	}
}

// 中文等多字节文本按 rune 计数切分，不会截断字符。
func TestSplitMultibyte(t *testing.T) {
	c := newTestChunker(500, 100, 100)
	text := strings.Repeat("医", 1200)
	chunks := c.Split(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[0].Text))
	for _, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Text))
	}
}

// overlap >= window 的非法配置退化为无重叠切分。
func TestSplitInvalidOverlapFallsBack(t *testing.T) {
	c := newTestChunker(100, 100, 10)
	text := strings.Repeat("a", 250)
	chunks := c.Split(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, 100, chunks[1].Offset)
	assert.Equal(t, 200, chunks[2].Offset)
}
