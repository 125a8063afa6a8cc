package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dcms-nepal/dcms/internal/domain"
)

type fileSession struct {
	Access   string    `toml:"access"`
	Refresh  string    `toml:"refresh,omitempty"`
	Username string    `toml:"username,omitempty"`
	Role     string    `toml:"role,omitempty"`
	SavedAt  time.Time `toml:"saved_at"`
}

// FileStore persists credentials as a TOML file readable only by the owner.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a store at path.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("session file path must not be empty")
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// Path returns the session file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the session file.
func (f *FileStore) Load(context.Context) (Credentials, error) {
	var decoded fileSession
	if _, err := toml.DecodeFile(f.path, &decoded); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, ErrNoSession
		}
		return Credentials{}, fmt.Errorf("decode session file %q: %w", f.path, err)
	}
	if strings.TrimSpace(decoded.Access) == "" {
		return Credentials{}, ErrNoSession
	}
	return Credentials{
		Access:   decoded.Access,
		Refresh:  decoded.Refresh,
		Username: decoded.Username,
		Role:     domain.RoleOrDefault(decoded.Role),
	}, nil
}

// Save writes the session file atomically.
func (f *FileStore) Save(_ context.Context, creds Credentials) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.toml")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	encoded := fileSession{
		Access:   creds.Access,
		Refresh:  creds.Refresh,
		Username: creds.Username,
		Role:     string(creds.Role),
		SavedAt:  f.now().UTC().Truncate(time.Second),
	}
	if err := toml.NewEncoder(tmp).Encode(encoded); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Clear removes the session file. A missing file is not an error.
func (f *FileStore) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
