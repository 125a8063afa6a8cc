package session

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dcms-nepal/dcms/internal/access"
	"github.com/dcms-nepal/dcms/internal/api"
	"github.com/dcms-nepal/dcms/internal/api/apitest"
	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/events"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

func newLiveSession(t *testing.T, server *apitest.Server, store Store, options ...Option) *Session {
	t.Helper()

	sess, err := New(store, options...)
	require.NoError(t, err)
	client, err := api.NewClient(server.BaseURL(), api.WithTokenSource(sess.Token))
	require.NoError(t, err)
	sess.Bind(client)
	return sess
}

func TestLoginConfirmsRoleFromProfile(t *testing.T) {
	t.Parallel()

	server := apitest.New(t)
	server.AddUser(apitest.User{Email: "admin@example.com", Password: "pw", Role: "admin", FullName: "Ward Admin"})
	store := &MemoryStore{}
	sess := newLiveSession(t, server, store)

	actor, err := sess.Login(context.Background(), "admin@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, actor.Role)
	assert.Equal(t, access.PhaseAuthenticated, sess.Guard().Phase())
	assert.True(t, sess.Guard().Decide(access.RouteAdminPanel).Allowed())

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sess.Token(), saved.Access)
	assert.Equal(t, domain.RoleAdmin, saved.Role)
}

func TestCachedRoleNeverGrantsAccess(t *testing.T) {
	t.Parallel()

	server := apitest.New(t)
	userID := server.AddUser(apitest.User{Email: "sita@example.com", Password: "pw"})
	store := &MemoryStore{}
	require.NoError(t, store.Save(context.Background(), Credentials{
		Access:   server.IssueToken(userID, time.Hour),
		Username: "sita@example.com",
		Role:     domain.RoleAdmin,
	}))

	sess := newLiveSession(t, server, store)
	assert.Equal(t, domain.RoleAdmin, sess.CachedRole(context.Background()))
	assert.Equal(t, access.OutcomeRedirect, sess.Guard().Decide(access.RouteAdminPanel).Outcome)

	actor, err := sess.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, actor.Role)
	assert.Equal(t, access.RouteDashboard, sess.Guard().Decide(access.RouteAdminPanel).Redirect)
	assert.Equal(t, domain.RoleUser, sess.CachedRole(context.Background()))
}

func TestRestoreWithoutSavedSession(t *testing.T) {
	t.Parallel()

	server := apitest.New(t)
	sess := newLiveSession(t, server, &MemoryStore{})

	_, err := sess.Restore(context.Background())
	assert.True(t, errors.Is(err, faults.ErrUnauthorized))
	assert.Empty(t, server.Requests())
}

func TestRestoreExpiredTokenSkipsNetworkAndClearsStore(t *testing.T) {
	t.Parallel()

	server := apitest.New(t)
	userID := server.AddUser(apitest.User{Email: "sita@example.com", Password: "pw"})
	store := &MemoryStore{}
	require.NoError(t, store.Save(context.Background(), Credentials{
		Access: server.IssueToken(userID, -time.Minute),
		Role:   domain.RoleUser,
	}))
	publisher := &recordingPublisher{}
	sess := newLiveSession(t, server, store, WithPublisher(publisher))

	_, err := sess.Restore(context.Background())
	assert.True(t, errors.Is(err, faults.ErrUnauthorized))
	assert.Empty(t, server.Requests())

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, []string{events.TypeSessionExpired}, publisher.types())
}

func TestRestoreRefreshesExpiredAccessToken(t *testing.T) {
	t.Parallel()

	server := apitest.New(t)
	userID := server.AddUser(apitest.User{Email: "sita@example.com", Password: "pw"})
	store := &MemoryStore{}
	stale := server.IssueToken(userID, -time.Minute)
	require.NoError(t, store.Save(context.Background(), Credentials{
		Access:  stale,
		Refresh: server.IssueToken(userID, time.Hour),
	}))
	sess := newLiveSession(t, server, store)

	actor, err := sess.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, actor.Role)
	assert.NotEqual(t, stale, sess.Token())
}

func TestObserveUnauthorizedExpiresSession(t *testing.T) {
	t.Parallel()

	server := apitest.New(t)
	server.AddUser(apitest.User{Email: "sita@example.com", Password: "pw"})
	store := &MemoryStore{}
	publisher := &recordingPublisher{}
	sess := newLiveSession(t, server, store, WithPublisher(publisher))

	_, err := sess.Login(context.Background(), "sita@example.com", "pw")
	require.NoError(t, err)

	server.FailNext(http.MethodGet, "/api/complaints/", http.StatusUnauthorized, `{"detail":"Token expired"}`)
	client, err := api.NewClient(server.BaseURL(), api.WithTokenSource(sess.Token))
	require.NoError(t, err)
	_, listErr := client.ListComplaints(context.Background())

	returned := sess.Observe(context.Background(), listErr)
	assert.Same(t, listErr, returned)
	assert.Equal(t, access.PhaseUnauthenticated, sess.Guard().Phase())
	assert.Empty(t, sess.Token())
	_, ok := sess.Actor()
	assert.False(t, ok)
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, []string{events.TypeSessionExpired}, publisher.types())

	assert.Nil(t, sess.Observe(context.Background(), nil))
}

type stubAuth struct {
	tokens api.Tokens
	meErr  error
	actor  domain.Actor
}

func (s stubAuth) Login(context.Context, string, string) (api.Tokens, error) {
	return s.tokens, nil
}

func (s stubAuth) Refresh(context.Context, string) (string, error) {
	return "", faults.New(faults.KindUnauthorized, "refresh", "no")
}

func (s stubAuth) Me(context.Context) (domain.Actor, error) {
	return s.actor, s.meErr
}

func TestProfileFailureFallsBackToUser(t *testing.T) {
	t.Parallel()

	sess, err := New(&MemoryStore{})
	require.NoError(t, err)
	sess.Bind(stubAuth{
		tokens: api.Tokens{Access: "opaque-token"},
		meErr:  faults.New(faults.KindRemoteFailure, "profile", "bad gateway"),
	})

	actor, err := sess.Login(context.Background(), "hari@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, actor.Role)
	assert.Equal(t, "hari@example.com", actor.DisplayName)
	assert.True(t, sess.Guard().Decide(access.RouteSubmit).Allowed())
}

func TestProfileUnauthorizedEndsLogin(t *testing.T) {
	t.Parallel()

	sess, err := New(&MemoryStore{})
	require.NoError(t, err)
	sess.Bind(stubAuth{
		tokens: api.Tokens{Access: "opaque-token"},
		meErr:  faults.New(faults.KindUnauthorized, "profile", "token invalid"),
	})

	_, err = sess.Login(context.Background(), "hari@example.com", "pw")
	assert.True(t, errors.Is(err, faults.ErrUnauthorized))
	assert.Equal(t, access.PhaseUnauthenticated, sess.Guard().Phase())
}

func TestLogoutClearsEverything(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "session.toml"))
	require.NoError(t, err)
	sess, err := New(store)
	require.NoError(t, err)
	sess.Bind(stubAuth{tokens: api.Tokens{Access: "opaque"}, actor: domain.Actor{Role: domain.RoleAdmin}})

	_, err = sess.Login(context.Background(), "admin@example.com", "pw")
	require.NoError(t, err)
	require.NoError(t, sess.Logout(context.Background()))

	assert.Empty(t, sess.Token())
	assert.Equal(t, domain.Role(""), sess.CachedRole(context.Background()))
	assert.Equal(t, access.RouteLogin, sess.Guard().Decide(access.RouteDashboard).Redirect)
}

func TestUnboundSessionErrors(t *testing.T) {
	t.Parallel()

	sess, err := New(&MemoryStore{})
	require.NoError(t, err)
	_, err = sess.Login(context.Background(), "a", "b")
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}
