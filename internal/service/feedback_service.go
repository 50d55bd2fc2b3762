package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"medisecure-go/internal/errs"
	"medisecure-go/internal/model"
	"medisecure-go/pkg/log"
)

// FeedbackService 记录用户对回答的评价，按天追加到 JSON-lines 文件。
type FeedbackService interface {
	Submit(feedback *model.Feedback) (*model.Feedback, error)
}

type feedbackService struct {
	mu  sync.Mutex
	dir string
}

// NewFeedbackService 创建反馈服务，dir 为 JSONL 输出目录。
func NewFeedbackService(dir string) FeedbackService {
	return &feedbackService{dir: dir}
}

// Submit 校验并写入一条反馈。Rating 取 -1（差评）或 1..5。
func (s *feedbackService) Submit(feedback *model.Feedback) (*model.Feedback, error) {
	if feedback.Rating != -1 && (feedback.Rating < 1 || feedback.Rating > 5) {
		return nil, errs.Validation("rating must be -1 or between 1 and 5")
	}
	if len(feedback.Comment) > 2000 {
		return nil, errs.Validation("comment exceeds 2000 characters")
	}

	feedback.FeedbackID = uuid.NewString()
	feedback.CreatedAt = time.Now()

	line, err := json.Marshal(feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feedback: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create feedback dir: %w", err)
	}
	path := filepath.Join(s.dir, feedback.CreatedAt.Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("failed to append feedback: %w", err)
	}

	log.Infof("[FeedbackService] 记录反馈: id=%s, rating=%d", feedback.FeedbackID, feedback.Rating)
	return feedback, nil
}
