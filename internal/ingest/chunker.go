// Package ingest 负责将语料对象解析为文档并切分为文本块。
package ingest

import (
	"medisecure-go/internal/config"
)

// Chunk 是切分出的一个文本块，Offset 为相对原文的 rune 偏移。
type Chunk struct {
	Index  int
	Offset int
	Text   string
}

// Chunker 按固定窗口滑动切分文本，窗口与重叠均以 rune 计。
// 窗口尾部 20% 范围内出现句末标点时向前收缩到标点处，
// 避免把句子拦腰截断；短于 MinLength 的块被丢弃（整篇短文除外）。
type Chunker struct {
	WindowSize int
	Overlap    int
	MinLength  int
}

// NewChunker 根据配置创建 Chunker。
func NewChunker(cfg config.ChunkingConfig) *Chunker {
	return &Chunker{
		WindowSize: cfg.WindowSize,
		Overlap:    cfg.Overlap,
		MinLength:  cfg.MinLength,
	}
}

// Split 切分文本。重叠配置非法（>= 窗口）时退化为无重叠的简单切分。
func (c *Chunker) Split(text string) []Chunk {
	if c.Overlap >= c.WindowSize {
		return c.simpleSplit(text)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	lookback := c.WindowSize / 5
	start := 0
	idx := 0
	for start < len(runes) {
		end := start + c.WindowSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			// 在窗口尾部回看句末标点，收缩到句子边界
			for j := end - 1; j >= end-lookback && j > start; j-- {
				if isSentenceBoundary(runes[j]) {
					end = j + 1
					break
				}
			}
		}

		// 整篇文档短于阈值时保留唯一块，否则丢弃过短的块
		if end-start >= c.MinLength || (start == 0 && end == len(runes)) {
			chunks = append(chunks, Chunk{Index: idx, Offset: start, Text: string(runes[start:end])})
			idx++
		}

		if end == len(runes) {
			break
		}
		start = end - c.Overlap
	}
	return chunks
}

func (c *Chunker) simpleSplit(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []Chunk
	idx := 0
	for i := 0; i < len(runes); i += c.WindowSize {
		end := i + c.WindowSize
		if end > len(runes) {
			end = len(runes)
		}
		if end-i >= c.MinLength || (i == 0 && end == len(runes)) {
			chunks = append(chunks, Chunk{Index: idx, Offset: i, Text: string(runes[i:end])})
			idx++
		}
	}
	return chunks
}

func isSentenceBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
