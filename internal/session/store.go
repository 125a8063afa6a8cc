package session

import (
	"context"
	"errors"
	"strings"

	"github.com/dcms-nepal/dcms/internal/domain"
)

// ErrNoSession is returned by a Store that holds no credential.
var ErrNoSession = errors.New("no saved session")

// Credentials is the persisted client state. Role is a display cache only and
// is never consulted for access decisions.
type Credentials struct {
	Access   string
	Refresh  string
	Username string
	Role     domain.Role
}

// Empty reports whether no access token is held.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Access) == ""
}

// Store persists credentials between runs. Token and role are saved and
// cleared together.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	creds Credentials
	saved bool
}

// Load returns the stored credentials or ErrNoSession.
func (m *MemoryStore) Load(context.Context) (Credentials, error) {
	if !m.saved {
		return Credentials{}, ErrNoSession
	}
	return m.creds, nil
}

// Save stores creds.
func (m *MemoryStore) Save(_ context.Context, creds Credentials) error {
	m.creds = creds
	m.saved = true
	return nil
}

// Clear drops stored credentials.
func (m *MemoryStore) Clear(context.Context) error {
	m.creds = Credentials{}
	m.saved = false
	return nil
}
