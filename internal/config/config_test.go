package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		if chdirErr := os.Chdir(cwd); chdirErr != nil {
			t.Fatalf("restore cwd: %v", chdirErr)
		}
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAPIURL, EnvSessionBackend, EnvRedisURL} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)
	chdir(t, work)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("api_url = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.RequestTimeout != defaultRequestTimeout {
		t.Fatalf("request_timeout = %s, want %s", cfg.RequestTimeout, defaultRequestTimeout)
	}
	if cfg.Session.Backend != SessionBackendFile {
		t.Fatalf("session.backend = %q, want %q", cfg.Session.Backend, SessionBackendFile)
	}
	if want := filepath.Join(home, Dir, "session.toml"); cfg.Session.Path != want {
		t.Fatalf("session.path = %q, want %q", cfg.Session.Path, want)
	}
	if cfg.Session.KeyPrefix != defaultKeyPrefix {
		t.Fatalf("session.key_prefix = %q, want %q", cfg.Session.KeyPrefix, defaultKeyPrefix)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("log_level = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
	if cfg.OTelEndpoint != "" {
		t.Fatalf("otel_endpoint = %q, want empty", cfg.OTelEndpoint)
	}
}

func TestLoadOverlayProjectOverHome(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	writeFile(t, filepath.Join(home, Dir, "config.toml"), `
api_url = "https://home.example.com/api"
request_timeout = "30s"
log_level = "debug"

[session]
path = "~/state/session.toml"
key_prefix = "home:"
	`)

	writeFile(t, filepath.Join(work, Dir, "config.toml"), `
api_url = "https://project.example.com/api/"
otel_endpoint = "localhost:4318"

[session]
key_prefix = "project:"
	`)
	chdir(t, work)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.APIURL != "https://project.example.com/api/" {
		t.Fatalf("api_url = %q, want project value", cfg.APIURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("request_timeout = %s, want 30s", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level = %q, want debug", cfg.LogLevel)
	}
	if want := filepath.Join(home, "state", "session.toml"); cfg.Session.Path != want {
		t.Fatalf("session.path = %q, want %q", cfg.Session.Path, want)
	}
	if cfg.Session.KeyPrefix != "project:" {
		t.Fatalf("session.key_prefix = %q, want project:", cfg.Session.KeyPrefix)
	}
	if cfg.OTelEndpoint != "localhost:4318" {
		t.Fatalf("otel_endpoint = %q, want localhost:4318", cfg.OTelEndpoint)
	}
}

func TestLoadEnvironmentOverridesFiles(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, filepath.Join(home, Dir, "config.toml"), `
api_url = "https://home.example.com/api/"
	`)
	t.Setenv(EnvAPIURL, "http://127.0.0.1:9000/api")
	t.Setenv(EnvSessionBackend, "Redis")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	chdir(t, work)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.APIURL != "http://127.0.0.1:9000/api/" {
		t.Fatalf("api_url = %q, want env value with trailing slash", cfg.APIURL)
	}
	if cfg.Session.Backend != SessionBackendRedis {
		t.Fatalf("session.backend = %q, want redis", cfg.Session.Backend)
	}
	if cfg.Session.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("session.redis_url = %q", cfg.Session.RedisURL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
	}{
		{name: "bad scheme", content: `api_url = "ftp://example.com"`, wantKey: "api_url"},
		{name: "bad duration", content: `request_timeout = "soon"`, wantKey: "request_timeout"},
		{name: "zero duration", content: `request_timeout = "0s"`, wantKey: "request_timeout"},
		{name: "bad level", content: `log_level = "loud"`, wantKey: "log_level"},
		{name: "bad backend", content: "[session]\nbackend = \"memcache\"", wantKey: "session.backend"},
		{name: "empty path", content: "[session]\npath = \"  \"", wantKey: "session.path"},
		{name: "redis without url", content: "[session]\nbackend = \"redis\"", wantKey: "session.redis_url"},
		{name: "unknown key", content: `default_harness = "codex"`, wantKey: "default_harness"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			work := t.TempDir()
			t.Setenv("HOME", home)
			clearEnv(t)
			path := filepath.Join(work, Dir, "config.toml")
			writeFile(t, path, tt.content)
			chdir(t, work)

			_, err := Load(context.Background())
			if err == nil {
				t.Fatalf("Load() error = nil, want error naming %s", tt.wantKey)
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Fatalf("Load() error = %q, want it to name %s", err, tt.wantKey)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "~", want: "/home/sita"},
		{in: "~/x/session.toml", want: filepath.Join("/home/sita", "x", "session.toml")},
		{in: "/var/lib/dcms/session.toml", want: "/var/lib/dcms/session.toml"},
	}
	for _, tt := range tests {
		if got := expandHome(tt.in, "/home/sita"); got != tt.want {
			t.Fatalf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
}
