//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() {
		_ = client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	store, err := NewRedisStore(client, "kiosk-1", WithKeyPrefix("test:session:"))
	require.NoError(t, err)
	assert.Equal(t, "test:session:kiosk-1", store.Key())

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	creds := Credentials{Access: access, Username: "admin@example.com", Role: domain.RoleAdmin}
	require.NoError(t, store.Save(ctx, creds))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)

	ttl, err := client.TTL(ctx, store.Key()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 9*time.Minute)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}
