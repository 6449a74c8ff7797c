// In file: internal/session/redis.go
package session

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/zeeshanml/math-assistant/internal/version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisStore keeps the transcript in a Redis list, one JSON message per
// element. The key expires after ttl of inactivity, so an abandoned session
// cleans itself up.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store for one session. A zero ttl disables expiry.
func NewRedisStore(rdb *redis.Client, sessionID string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, key: version.TranscriptKey(sessionID), ttl: ttl}
}

// Initialize seeds the list with the greeting inside a WATCH transaction so
// two concurrent first requests cannot both add one.
func (s *RedisStore) Initialize(ctx context.Context, greeting string) error {
	payload, err := json.Marshal(NewMessage(RoleAssistant, greeting))
	if err != nil {
		return fmt.Errorf("failed to encode greeting: %w", err)
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, s.key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, s.key, payload)
			s.touch(ctx, pipe)
			return nil
		})
		return err
	}, s.key)
	if err != nil {
		return fmt.Errorf("failed to initialize transcript %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Append(ctx context.Context, msg Message) error {
	if msg.Content == "" {
		return ErrEmptyContent
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, s.key, payload)
	s.touch(ctx, pipe)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to transcript %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context) ([]Message, error) {
	raw, err := s.rdb.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript %s: %w", s.key, err)
	}
	messages := make([]Message, 0, len(raw))
	for i, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("corrupt transcript entry %d in %s: %w", i, s.key, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) Destroy(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete transcript %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner) {
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
}
