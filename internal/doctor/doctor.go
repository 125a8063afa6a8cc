// Package doctor checks that the client can reach its backend and still holds
// a usable credential.
package doctor

import (
	"context"
	"errors"
	"time"

	"github.com/dcms-nepal/dcms/internal/events"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/location"
	"github.com/dcms-nepal/dcms/internal/session"
)

const defaultInterval = 30 * time.Second

// Backend is probed through the public locations endpoint.
type Backend interface {
	Locations(ctx context.Context) (*location.Catalog, error)
}

// CredentialStore is the read side of a session store.
type CredentialStore interface {
	Load(ctx context.Context) (session.Credentials, error)
}

// EventBus publishes health reports.
type EventBus interface {
	Publish(event events.Event)
}

// Config controls the watch cadence.
type Config struct {
	Interval time.Duration
}

// HealthReport is the result of one check cycle.
type HealthReport struct {
	Checked        time.Time     `json:"checked"`
	BackendOK      bool          `json:"backend_ok"`
	BackendLatency time.Duration `json:"backend_latency"`
	BackendError   string        `json:"backend_error,omitempty"`
	Provinces      int           `json:"provinces"`

	SessionSaved bool   `json:"session_saved"`
	SessionUser  string `json:"session_user,omitempty"`
	SessionError string `json:"session_error,omitempty"`
	// AccessTTL and RefreshTTL are zero when the token is opaque or absent
	// and negative once it has expired.
	AccessTTL  time.Duration `json:"access_ttl"`
	RefreshTTL time.Duration `json:"refresh_ttl"`
}

// Healthy reports whether the backend answered and a saved credential can
// still be used or refreshed.
func (r HealthReport) Healthy() bool {
	return r.BackendOK && r.SessionSaved && (r.AccessTTL > 0 || r.RefreshTTL > 0)
}

// Manager runs health checks once or on a ticker.
type Manager struct {
	backend   Backend
	store     CredentialStore
	bus       EventBus
	interval  time.Duration
	now       func() time.Time
	newTicker func(time.Duration) *time.Ticker
}

// NewManager builds a Manager.
func NewManager(backend Backend, store CredentialStore, bus EventBus, cfg Config) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if bus == nil {
		return nil, errors.New("event bus is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Manager{
		backend:   backend,
		store:     store,
		bus:       bus,
		interval:  cfg.Interval,
		now:       time.Now,
		newTicker: time.NewTicker,
	}, nil
}

// Start runs a check immediately and then on every tick until ctx is done.
// Each report is passed to report, which may be nil.
func (m *Manager) Start(ctx context.Context, report func(HealthReport)) {
	if m == nil {
		return
	}
	emit := func() {
		result := m.RunOnce(ctx)
		if report != nil {
			report(result)
		}
	}

	emit()
	ticker := m.newTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emit()
		}
	}
}

// RunOnce executes one check cycle. Failures are recorded in the report.
func (m *Manager) RunOnce(ctx context.Context) HealthReport {
	report := HealthReport{Checked: m.now().UTC()}
	m.checkBackend(ctx, &report)
	m.checkSession(ctx, &report)

	severity := events.SeverityInfo
	if !report.Healthy() {
		severity = events.SeverityWarn
	}
	m.bus.Publish(events.Event{
		Type:       events.TypeHealthCheck,
		Timestamp:  report.Checked,
		EntityType: "health",
		EntityID:   "doctor",
		Payload:    report,
		Severity:   severity,
	})
	return report
}

func (m *Manager) checkBackend(ctx context.Context, report *HealthReport) {
	started := m.now()
	catalog, err := m.backend.Locations(ctx)
	report.BackendLatency = m.now().Sub(started)
	if err != nil {
		report.BackendError = faults.UserMessage(err)
		return
	}
	report.BackendOK = true
	report.Provinces = len(catalog.Provinces())
}

func (m *Manager) checkSession(ctx context.Context, report *HealthReport) {
	creds, err := m.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		report.SessionError = "not logged in"
		return
	}
	if err != nil {
		report.SessionError = err.Error()
		return
	}
	report.SessionSaved = true
	report.SessionUser = creds.Username

	now := m.now()
	if expiry, ok := session.TokenExpiry(creds.Access); ok {
		report.AccessTTL = expiry.Sub(now)
	}
	if expiry, ok := session.TokenExpiry(creds.Refresh); ok {
		report.RefreshTTL = expiry.Sub(now)
	}
}
