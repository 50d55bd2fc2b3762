package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// QueryCacheRepository 缓存检索结果的 JSON 快照，降低重复查询的上游开销。
// 缓存失效只依赖 TTL，缓存读写失败不影响主流程。
type QueryCacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

type redisQueryCacheRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewQueryCacheRepository 创建一个 Redis 查询缓存。
func NewQueryCacheRepository(redisClient *redis.Client, ttlSeconds int) QueryCacheRepository {
	return &redisQueryCacheRepository{
		redisClient: redisClient,
		ttl:         time.Duration(ttlSeconds) * time.Second,
	}
}

// CacheKey 由查询文本、topK 与过滤条件生成稳定的缓存键。
func CacheKey(query string, topK int, specialty string) string {
	raw := fmt.Sprintf("%s|%d|%s", strings.ToLower(strings.TrimSpace(query)), topK, specialty)
	sum := sha256.Sum256([]byte(raw))
	return "query:cache:" + hex.EncodeToString(sum[:8])
}

func (r *redisQueryCacheRepository) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (r *redisQueryCacheRepository) Set(ctx context.Context, key string, value []byte) {
	_ = r.redisClient.Set(ctx, key, value, r.ttl).Err()
}
