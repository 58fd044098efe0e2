package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "school_scheduler:session:"

// RedisStore keeps sessions as JSON values with a TTL, so they survive restarts
// and can be shared by several bot replicas.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	raw, err := r.client.Get(ctx, key(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &s, nil
}

func (r *RedisStore) Set(ctx context.Context, chatID int64, s *Session) error {
	s.UpdatedAt = time.Now()

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := r.client.Set(ctx, key(chatID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}

func (r *RedisStore) Delete(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, key(chatID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func key(chatID int64) string {
	return keyPrefix + strconv.FormatInt(chatID, 10)
}
