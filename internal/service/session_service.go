package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medisecure-go/internal/errs"
	"medisecure-go/internal/model"
	"medisecure-go/internal/repository"
)

// SessionService 管理按用户隔离的聊天会话历史。
// 会话 ID 为服务端生成的 UUID，属于其他用户的会话视为非法输入。
type SessionService interface {
	// Resolve 校验并返回会话。sessionID 为空时创建新会话。
	Resolve(ctx context.Context, user *model.User, sessionID string) (string, *model.SessionRecord, error)
	// History 返回会话的消息列表。
	History(ctx context.Context, user *model.User, sessionID string) ([]model.ChatMessage, error)
	// AppendExchange 追加一轮问答并持久化，历史长度超限时丢弃最旧消息。
	AppendExchange(ctx context.Context, user *model.User, sessionID, question, answer string) error
	// Clear 删除会话全部历史。
	Clear(ctx context.Context, user *model.User, sessionID string) error
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	maxMessages int
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(sessionRepo repository.SessionRepository, maxMessages int) SessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		maxMessages: maxMessages,
	}
}

func (s *sessionService) Resolve(ctx context.Context, user *model.User, sessionID string) (string, *model.SessionRecord, error) {
	if sessionID == "" {
		newID := uuid.NewString()
		return newID, &model.SessionRecord{UserID: user.ID}, nil
	}

	record, err := s.load(ctx, user, sessionID)
	if err != nil {
		return "", nil, err
	}
	return sessionID, record, nil
}

func (s *sessionService) History(ctx context.Context, user *model.User, sessionID string) ([]model.ChatMessage, error) {
	record, err := s.load(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	if record.Messages == nil {
		return []model.ChatMessage{}, nil
	}
	return record.Messages, nil
}

func (s *sessionService) AppendExchange(ctx context.Context, user *model.User, sessionID, question, answer string) error {
	record, err := s.load(ctx, user, sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	record.Messages = append(record.Messages,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	// 滑动窗口：只保留最近 maxMessages 条
	if len(record.Messages) > s.maxMessages {
		record.Messages = record.Messages[len(record.Messages)-s.maxMessages:]
	}
	return s.sessionRepo.Save(ctx, sessionID, record)
}

func (s *sessionService) Clear(ctx context.Context, user *model.User, sessionID string) error {
	if _, err := s.load(ctx, user, sessionID); err != nil {
		return err
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

// load 校验会话 ID 格式与归属后返回记录；不存在的会话视为该用户的空会话。
func (s *sessionService) load(ctx context.Context, user *model.User, sessionID string) (*model.SessionRecord, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, errs.Validation("invalid session id")
	}
	record, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &model.SessionRecord{UserID: user.ID}, nil
	}
	if record.UserID != user.ID {
		return nil, errs.Validation("session does not belong to this user")
	}
	return record, nil
}
