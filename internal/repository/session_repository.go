package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"medisecure-go/internal/model"
)

// SessionRepository 定义了会话历史的存储接口。
// 会话以整体 JSON 存取，最后写入者胜出，不做跨请求加锁。
type SessionRepository interface {
	// Get 返回会话记录，会话不存在时返回 (nil, nil)。
	Get(ctx context.Context, sessionID string) (*model.SessionRecord, error)
	// Save 覆盖写入会话记录并刷新 TTL。
	Save(ctx context.Context, sessionID string, record *model.SessionRecord) error
	// Delete 删除会话。
	Delete(ctx context.Context, sessionID string) error
	// Count 返回当前存活的会话数量。
	Count(ctx context.Context) (int64, error)
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个 Redis 会话存储，ttlHours 为会话过期时间。
func NewSessionRepository(redisClient *redis.Client, ttlHours int) SessionRepository {
	return &redisSessionRepository{
		redisClient: redisClient,
		ttl:         time.Duration(ttlHours) * time.Hour,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (r *redisSessionRepository) Get(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var record model.SessionRecord
	if err := json.Unmarshal([]byte(jsonData), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &record, nil
}

func (r *redisSessionRepository) Save(ctx context.Context, sessionID string, record *model.SessionRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	// 每次写入都刷新 TTL，活跃会话不会过期
	if err := r.redisClient.Set(ctx, sessionKey(sessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Count(ctx context.Context) (int64, error) {
	keys, err := r.redisClient.Keys(ctx, "session:*").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int64(len(keys)), nil
}
