package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/smartdevs17/workflow-relay/internal/config"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// ErrArticleNotFound is returned when no article has been stored yet
var ErrArticleNotFound = utils.NewAppError(utils.ErrCodeNotFound, "Article not found")

// ArticleSlot holds at most one opaque JSON value. Each write replaces the
// previous value wholesale.
type ArticleSlot interface {
	Get(ctx context.Context) (json.RawMessage, error)
	Set(ctx context.Context, value json.RawMessage) error
	Close() error
}

// MemoryArticleSlot keeps the article in process memory
type MemoryArticleSlot struct {
	mu    sync.RWMutex
	value json.RawMessage
}

// NewMemoryArticleSlot creates an empty in-memory slot
func NewMemoryArticleSlot() *MemoryArticleSlot {
	return &MemoryArticleSlot{}
}

// Get returns the stored article or ErrArticleNotFound
func (s *MemoryArticleSlot) Get(ctx context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.value == nil {
		return nil, ErrArticleNotFound
	}
	return append(json.RawMessage(nil), s.value...), nil
}

// Set replaces the stored article
func (s *MemoryArticleSlot) Set(ctx context.Context, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = append(json.RawMessage(nil), value...)
	return nil
}

// Close is a no-op
func (s *MemoryArticleSlot) Close() error {
	return nil
}

// RedisArticleSlot keeps the article under a single redis key, so every
// relay instance sharing the redis server sees the same value
type RedisArticleSlot struct {
	client *redis.Client
	key    string
}

// NewRedisArticleSlot creates a slot on an existing client
func NewRedisArticleSlot(client *redis.Client, key string) *RedisArticleSlot {
	return &RedisArticleSlot{client: client, key: key}
}

// Get returns the stored article or ErrArticleNotFound
func (s *RedisArticleSlot) Get(ctx context.Context) (json.RawMessage, error) {
	value, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrArticleNotFound
		}
		return nil, utils.NewAppError(utils.ErrCodeStorageUnavailable, "Failed to read article", err.Error())
	}
	return json.RawMessage(value), nil
}

// Set replaces the stored article
func (s *RedisArticleSlot) Set(ctx context.Context, value json.RawMessage) error {
	if err := s.client.Set(ctx, s.key, []byte(value), 0).Err(); err != nil {
		return utils.NewAppError(utils.ErrCodeStorageUnavailable, "Failed to save article", err.Error())
	}
	return nil
}

// Close closes the redis client
func (s *RedisArticleSlot) Close() error {
	return s.client.Close()
}

// NewArticleSlot creates the configured article slot. A redis slot whose
// server does not answer a ping falls back to process memory.
func NewArticleSlot(ctx context.Context, cfg *config.ArticleConfig) ArticleSlot {
	logger := utils.ComponentLogger("article")

	if cfg.Type != config.ArticleTypeRedis {
		return NewMemoryArticleSlot()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.WithError(err).WithField("addr", cfg.RedisAddr).
			Warn("Redis unavailable, keeping the article in memory")
		return NewMemoryArticleSlot()
	}

	logger.WithField("addr", cfg.RedisAddr).Info("Using redis article slot")
	return NewRedisArticleSlot(client, cfg.Key)
}
