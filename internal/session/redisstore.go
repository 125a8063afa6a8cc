package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session keys in a shared Redis.
const DefaultKeyPrefix = "dcms:session:"

// RedisStore keeps credentials in a Redis hash so several terminals on one
// machine or a shared kiosk can reuse a login. The key expires with the
// longest-lived token it holds.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(store *RedisStore) {
		if strings.TrimSpace(prefix) != "" {
			store.key = prefix + strings.TrimPrefix(store.key, DefaultKeyPrefix)
		}
	}
}

// NewRedisStore creates a store for one named profile.
func NewRedisStore(client *redis.Client, profile string, options ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client must not be nil")
	}
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}
	store := &RedisStore{
		client: client,
		key:    DefaultKeyPrefix + profile,
		now:    time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	return store, nil
}

// Key returns the Redis key used by this store.
func (r *RedisStore) Key() string {
	return r.key
}

// Load reads credentials from the hash.
func (r *RedisStore) Load(ctx context.Context) (Credentials, error) {
	values, err := r.client.HGetAll(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("load session %q: %w", r.key, err)
	}
	if strings.TrimSpace(values["access"]) == "" {
		return Credentials{}, ErrNoSession
	}
	return Credentials{
		Access:   values["access"],
		Refresh:  values["refresh"],
		Username: values["username"],
		Role:     domain.RoleOrDefault(values["role"]),
	}, nil
}

// Save replaces the hash and sets its expiry in one transaction.
func (r *RedisStore) Save(ctx context.Context, creds Credentials) error {
	ttl := r.ttlFor(creds)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key,
			"access", creds.Access,
			"refresh", creds.Refresh,
			"username", creds.Username,
			"role", string(creds.Role),
		)
		if ttl > 0 {
			pipe.Expire(ctx, r.key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %q: %w", r.key, err)
	}
	return nil
}

// Clear deletes the hash.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("clear session %q: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) ttlFor(creds Credentials) time.Duration {
	now := r.now()
	var latest time.Time
	for _, token := range []string{creds.Access, creds.Refresh} {
		if expiry, ok := TokenExpiry(token); ok && expiry.After(latest) {
			latest = expiry
		}
	}
	if latest.IsZero() || !latest.After(now) {
		return 0
	}
	return latest.Sub(now)
}
