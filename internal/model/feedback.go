package model

import "time"

// Feedback 是一条用户反馈，以 JSON-lines 形式追加到反馈日志。
// Rating 取值 -1（差评）或 1..5（星级）。
type Feedback struct {
	FeedbackID string    `json:"feedbackId"`
	SessionID  string    `json:"sessionId,omitempty"`
	UserID     uint      `json:"userId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	Query      string    `json:"query,omitempty"`
	Answer     string    `json:"answer,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
