package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

const (
	defaultAPIURL         = "http://localhost:8000/api/"
	defaultRequestTimeout = 15 * time.Second
	defaultSessionBackend = SessionBackendFile
	defaultKeyPrefix      = "dcms:session:"
	defaultLogLevel       = "info"

	// Dir is the per-user state directory name under $HOME and the project root.
	Dir = ".dcms"
)

// Session backends.
const (
	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

// Environment overrides, applied after every file.
const (
	EnvAPIURL         = "DCMS_API_URL"
	EnvSessionBackend = "DCMS_SESSION_BACKEND"
	EnvRedisURL       = "DCMS_REDIS_URL"
)

// Config stores runtime settings loaded from TOML files and the environment.
type Config struct {
	APIURL         string
	RequestTimeout time.Duration
	Session        SessionConfig
	OTelEndpoint   string
	LogLevel       string
}

// SessionConfig selects where the credential is persisted.
type SessionConfig struct {
	Backend   string
	Path      string
	RedisURL  string
	KeyPrefix string
}

type fileConfig struct {
	APIURL         *string            `toml:"api_url"`
	RequestTimeout *string            `toml:"request_timeout"`
	Session        *fileSessionConfig `toml:"session"`
	OTelEndpoint   *string            `toml:"otel_endpoint"`
	LogLevel       *string            `toml:"log_level"`
}

type fileSessionConfig struct {
	Backend   *string `toml:"backend"`
	Path      *string `toml:"path"`
	RedisURL  *string `toml:"redis_url"`
	KeyPrefix *string `toml:"key_prefix"`
}

// Load reads config from ~/.dcms/config.toml, overlays a project-local
// .dcms/config.toml, then applies DCMS_* environment variables.
func Load(ctx context.Context) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg := defaults(homeDir)
	paths := []string{
		filepath.Join(homeDir, Dir, "config.toml"),
		filepath.Join(workingDir, Dir, "config.toml"),
	}

	for _, path := range paths {
		if err := overlayFromFile(&cfg, path, homeDir); err != nil {
			return nil, err
		}
	}
	if err := overlayFromEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}

	_ = ctx
	return &cfg, nil
}

// Home returns the per-user state directory.
func Home() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, Dir), nil
}

func defaults(homeDir string) Config {
	return Config{
		APIURL:         defaultAPIURL,
		RequestTimeout: defaultRequestTimeout,
		Session: SessionConfig{
			Backend:   defaultSessionBackend,
			Path:      filepath.Join(homeDir, Dir, "session.toml"),
			KeyPrefix: defaultKeyPrefix,
		},
		LogLevel: defaultLogLevel,
	}
}

func overlayFromFile(cfg *Config, path, homeDir string) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file %q: %w", path, err)
	}

	var decoded fileConfig
	meta, err := toml.DecodeFile(path, &decoded)
	if err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("parse %s in %q: unsupported key", undecoded[0].String(), path)
	}

	if err := applyScalarOverrides(cfg, decoded, path); err != nil {
		return err
	}
	if err := applyDurationOverrides(cfg, decoded, path); err != nil {
		return err
	}
	return applySessionOverrides(cfg, decoded.Session, path, homeDir)
}

func overlayFromEnv(cfg *Config, getenv func(string) string) error {
	const source = "environment"
	if value := strings.TrimSpace(getenv(EnvAPIURL)); value != "" {
		apiURL, err := parseAPIURL(value, EnvAPIURL, source)
		if err != nil {
			return err
		}
		cfg.APIURL = apiURL
	}
	if value := strings.TrimSpace(getenv(EnvSessionBackend)); value != "" {
		backend, err := parseBackend(value, EnvSessionBackend, source)
		if err != nil {
			return err
		}
		cfg.Session.Backend = backend
	}
	if value := strings.TrimSpace(getenv(EnvRedisURL)); value != "" {
		cfg.Session.RedisURL = value
	}
	return validate(cfg, source)
}

func applyScalarOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.APIURL != nil {
		apiURL, err := parseAPIURL(*decoded.APIURL, "api_url", path)
		if err != nil {
			return err
		}
		cfg.APIURL = apiURL
	}
	if decoded.OTelEndpoint != nil {
		cfg.OTelEndpoint = strings.TrimSpace(*decoded.OTelEndpoint)
	}
	if decoded.LogLevel != nil {
		level := normalizeKey(*decoded.LogLevel)
		if _, err := log.ParseLevel(level); err != nil {
			return fmt.Errorf("parse log_level in %q: %w", path, err)
		}
		cfg.LogLevel = level
	}
	return nil
}

func applyDurationOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.RequestTimeout != nil {
		value, err := parseDuration(*decoded.RequestTimeout, "request_timeout", path)
		if err != nil {
			return err
		}
		if value <= 0 {
			return fmt.Errorf("parse request_timeout in %q: must be > 0", path)
		}
		cfg.RequestTimeout = value
	}
	return nil
}

func applySessionOverrides(cfg *Config, decoded *fileSessionConfig, path, homeDir string) error {
	if decoded == nil {
		return nil
	}
	if decoded.Backend != nil {
		backend, err := parseBackend(*decoded.Backend, "session.backend", path)
		if err != nil {
			return err
		}
		cfg.Session.Backend = backend
	}
	if decoded.Path != nil {
		trimmed := strings.TrimSpace(*decoded.Path)
		if trimmed == "" {
			return fmt.Errorf("parse session.path in %q: must not be empty", path)
		}
		cfg.Session.Path = expandHome(trimmed, homeDir)
	}
	if decoded.RedisURL != nil {
		cfg.Session.RedisURL = strings.TrimSpace(*decoded.RedisURL)
	}
	if decoded.KeyPrefix != nil {
		cfg.Session.KeyPrefix = strings.TrimSpace(*decoded.KeyPrefix)
	}
	return nil
}

func validate(cfg *Config, source string) error {
	if cfg.Session.Backend == SessionBackendRedis && cfg.Session.RedisURL == "" {
		return fmt.Errorf("session.redis_url is required for the redis backend (%s)", source)
	}
	return nil
}

func parseAPIURL(value, key, path string) (string, error) {
	trimmed := strings.TrimSpace(value)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse %s in %q: %w", key, path, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("parse %s in %q: scheme must be http or https", key, path)
	}
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	return trimmed, nil
}

func parseBackend(value, key, path string) (string, error) {
	switch backend := normalizeKey(value); backend {
	case SessionBackendFile, SessionBackendRedis:
		return backend, nil
	default:
		return "", fmt.Errorf("parse %s in %q: must be %q or %q", key, path, SessionBackendFile, SessionBackendRedis)
	}
}

func parseDuration(value, key, path string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s in %q: %w", key, path, err)
	}
	return parsed, nil
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
