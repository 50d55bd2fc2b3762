package model

import "time"

// ChatMessage 代表存储在 Redis 中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionRecord 是 Redis 中一个会话的完整状态。
type SessionRecord struct {
	UserID   uint          `json:"userId"`
	Messages []ChatMessage `json:"messages"`
}
