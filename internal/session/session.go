// Package session owns the bearer credential and the confirmed actor for one
// client. The role it hands to the access guard always comes from the profile
// endpoint, never from the persisted cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dcms-nepal/dcms/internal/access"
	"github.com/dcms-nepal/dcms/internal/api"
	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/events"
	"github.com/dcms-nepal/dcms/internal/faults"
)

// Authenticator is the subset of the backend client the session needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (api.Tokens, error)
	Refresh(ctx context.Context, refresh string) (string, error)
	Me(ctx context.Context) (domain.Actor, error)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger configures session logging.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher configures where SessionExpired events go.
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Session) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session is safe for concurrent use.
type Session struct {
	store     Store
	guard     *access.Guard
	logger    *log.Logger
	publisher events.Publisher
	now       func() time.Time

	mu    sync.RWMutex
	auth  Authenticator
	creds Credentials
	actor domain.Actor
}

// New creates an unauthenticated session backed by store.
func New(store Store, options ...Option) (*Session, error) {
	if store == nil {
		return nil, errors.New("session store must not be nil")
	}
	session := &Session{
		store:     store,
		guard:     access.NewGuard(),
		logger:    log.New(io.Discard),
		publisher: events.Discard,
		now:       time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(session)
		}
	}
	return session, nil
}

// Bind attaches the backend client. The client usually reads its bearer token
// from Token, so the two are wired after both exist.
func (s *Session) Bind(auth Authenticator) {
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
}

// Guard exposes the access guard driven by this session.
func (s *Session) Guard() *access.Guard {
	return s.guard
}

// Token returns the current bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Access
}

// Actor returns the confirmed actor.
func (s *Session) Actor() (domain.Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.guard.Phase() != access.PhaseAuthenticated {
		return domain.Actor{}, false
	}
	return s.actor, true
}

// CachedRole returns the persisted display role, which may be stale.
func (s *Session) CachedRole(ctx context.Context) domain.Role {
	creds, err := s.store.Load(ctx)
	if err != nil {
		return ""
	}
	return creds.Role
}

// Login exchanges credentials for a token, then confirms the role via the
// profile endpoint.
func (s *Session) Login(ctx context.Context, username, password string) (domain.Actor, error) {
	auth, err := s.authenticator()
	if err != nil {
		return domain.Actor{}, err
	}

	s.guard.Expire()
	tokens, err := auth.Login(ctx, username, password)
	if err != nil {
		return domain.Actor{}, err
	}

	s.mu.Lock()
	s.creds = Credentials{Access: tokens.Access, Refresh: tokens.Refresh, Username: strings.TrimSpace(username)}
	s.mu.Unlock()

	actor, err := s.confirm(ctx, auth)
	if err != nil {
		return domain.Actor{}, err
	}
	s.logger.Info("session established", "user", actor.Email, "role", actor.Role)
	return actor, nil
}

// Restore reloads a persisted credential and re-confirms the role. An expired
// access token is refreshed when a live refresh token exists.
func (s *Session) Restore(ctx context.Context) (domain.Actor, error) {
	const op = "restore session"
	auth, err := s.authenticator()
	if err != nil {
		return domain.Actor{}, err
	}

	s.guard.Expire()
	creds, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return domain.Actor{}, faults.New(faults.KindUnauthorized, op, "not logged in")
	}
	if err != nil {
		return domain.Actor{}, faults.Wrap(faults.KindRemoteFailure, op, err, "could not read saved session")
	}

	now := s.now()
	if Expired(creds.Access, now) {
		if creds.Refresh == "" || Expired(creds.Refresh, now) {
			s.Expire(ctx, "access token expired")
			return domain.Actor{}, faults.New(faults.KindUnauthorized, op, "session expired, please log in again")
		}
		fresh, err := auth.Refresh(ctx, creds.Refresh)
		if err != nil {
			if faults.KindOf(err) == faults.KindUnauthorized {
				s.Expire(ctx, "refresh rejected")
			}
			return domain.Actor{}, err
		}
		creds.Access = fresh
		s.logger.Info("access token refreshed")
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	return s.confirm(ctx, auth)
}

// confirm moves the guard through Authenticating and fixes the role from the
// profile endpoint. A 401 ends the session; any other profile failure degrades
// to the least-privileged role.
func (s *Session) confirm(ctx context.Context, auth Authenticator) (domain.Actor, error) {
	if err := s.guard.Begin(); err != nil {
		return domain.Actor{}, fmt.Errorf("begin authentication: %w", err)
	}

	actor, err := auth.Me(ctx)
	if err != nil {
		if faults.KindOf(err) == faults.KindUnauthorized {
			s.Expire(ctx, "profile rejected credential")
			return domain.Actor{}, err
		}
		s.logger.Warn("profile refresh failed, falling back to user role", "err", err)
		s.mu.RLock()
		username := s.creds.Username
		s.mu.RUnlock()
		actor = domain.Actor{DisplayName: username, Email: username, Role: domain.RoleUser}
	}

	if err := s.guard.Confirm(actor.Role); err != nil {
		return domain.Actor{}, fmt.Errorf("confirm role: %w", err)
	}

	s.mu.Lock()
	s.actor = actor
	s.creds.Role = actor.Role
	creds := s.creds
	s.mu.Unlock()

	if err := s.store.Save(ctx, creds); err != nil {
		s.logger.Warn("could not persist session", "err", err)
	}
	return actor, nil
}

// Observe inspects an error from any backend call and ends the session on
// Unauthorized. It returns err unchanged.
func (s *Session) Observe(ctx context.Context, err error) error {
	if err != nil && faults.KindOf(err) == faults.KindUnauthorized && s.guard.Phase() != access.PhaseUnauthenticated {
		s.Expire(ctx, faults.UserMessage(err))
	}
	return err
}

// Expire forces the session back to Unauthenticated and clears the token and
// cached role together.
func (s *Session) Expire(ctx context.Context, reason string) {
	s.guard.Expire()
	s.mu.Lock()
	username := s.creds.Username
	s.creds = Credentials{}
	s.actor = domain.Actor{}
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("could not clear saved session", "err", err)
	}
	s.logger.Info("session expired", "reason", reason)
	s.publisher.Publish(events.Event{
		Type:       events.TypeSessionExpired,
		EntityType: "session",
		EntityID:   username,
		Payload:    events.Expiry{Reason: reason},
		Severity:   events.SeverityWarn,
	})
}

// Logout drops the credential.
func (s *Session) Logout(ctx context.Context) error {
	s.guard.Expire()
	s.mu.Lock()
	s.creds = Credentials{}
	s.actor = domain.Actor{}
	s.mu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *Session) authenticator() (Authenticator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return nil, errors.New("session has no backend client bound")
	}
	return s.auth, nil
}
