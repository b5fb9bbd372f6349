package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/workflow-relay/internal/config"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

func TestMemoryArticleSlot(t *testing.T) {
	slot := NewMemoryArticleSlot()
	ctx := context.Background()

	_, err := slot.Get(ctx)
	assert.True(t, utils.HasCode(err, utils.ErrCodeNotFound))

	require.NoError(t, slot.Set(ctx, json.RawMessage(`{"title":"first"}`)))
	require.NoError(t, slot.Set(ctx, json.RawMessage(`{"title":"second","body":"x"}`)))

	value, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"second","body":"x"}`, string(value))
}

func TestRedisArticleSlot(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	slot := NewRedisArticleSlot(client, "relay:article")
	defer slot.Close()
	ctx := context.Background()

	_, err := slot.Get(ctx)
	assert.ErrorIs(t, err, ErrArticleNotFound)

	require.NoError(t, slot.Set(ctx, json.RawMessage(`{"title":"hello"}`)))

	stored, err := server.Get("relay:article")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"hello"}`, stored)

	value, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"hello"}`, string(value))

	server.Close()
	_, err = slot.Get(ctx)
	assert.True(t, utils.HasCode(err, utils.ErrCodeStorageUnavailable))
}

func TestNewArticleSlot(t *testing.T) {
	ctx := context.Background()

	memory := NewArticleSlot(ctx, &config.ArticleConfig{Type: config.ArticleTypeMemory})
	assert.IsType(t, &MemoryArticleSlot{}, memory)

	server := miniredis.RunT(t)
	redisSlot := NewArticleSlot(ctx, &config.ArticleConfig{
		Type:      config.ArticleTypeRedis,
		RedisAddr: server.Addr(),
		Key:       "relay:article",
	})
	defer redisSlot.Close()
	assert.IsType(t, &RedisArticleSlot{}, redisSlot)

	fallback := NewArticleSlot(ctx, &config.ArticleConfig{
		Type:      config.ArticleTypeRedis,
		RedisAddr: "127.0.0.1:1",
		Key:       "relay:article",
	})
	assert.IsType(t, &MemoryArticleSlot{}, fallback)
}
