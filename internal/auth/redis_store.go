package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisSessionStoreConfig configures a Redis-backed session store.
type RedisSessionStoreConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// Timeout bounds each Redis operation. The store methods carry no
	// context, so the bound is applied internally.
	Timeout time.Duration
}

// RedisSessionStore persists sessions in Redis so restarts and multiple API
// instances share login state. Expiry enforcement piggybacks on Redis key
// TTLs.
type RedisSessionStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisSessionStore connects to Redis and verifies the connection.
func NewRedisSessionStore(cfg RedisSessionStoreConfig) (*RedisSessionStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "framecast:session:"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Addr),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect session redis: %w", err)
	}
	return &RedisSessionStore{client: client, prefix: prefix, timeout: timeout}, nil
}

func (s *RedisSessionStore) Save(record SessionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(record.AbsoluteExpiresAt)
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	return s.client.Set(ctx, s.prefix+record.Token, payload, ttl).Err()
}

func (s *RedisSessionStore) Get(token string) (SessionRecord, bool, error) {
	ctx, cancel := s.opContext()
	defer cancel()
	payload, err := s.client.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, err
	}
	var record SessionRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return SessionRecord{}, false, fmt.Errorf("decode session: %w", err)
	}
	return record, true, nil
}

func (s *RedisSessionStore) Delete(token string) error {
	ctx, cancel := s.opContext()
	defer cancel()
	return s.client.Del(ctx, s.prefix+token).Err()
}

// PurgeExpired is a no-op: Redis evicts sessions via key TTLs.
func (s *RedisSessionStore) PurgeExpired(time.Time) error {
	return nil
}

// Ping checks the Redis connection.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

func (s *RedisSessionStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

var _ SessionStore = (*RedisSessionStore)(nil)
