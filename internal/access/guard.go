package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dcms-nepal/dcms/internal/domain"
	"github.com/dcms-nepal/dcms/internal/faults"
)

// Phase is the authentication state of a session.
type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticating  Phase = "authenticating"
	PhaseAuthenticated   Phase = "authenticated"
)

// Outcome is the guard's verdict for a route.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
	OutcomeLoading  Outcome = "loading"
)

// Decision is the result of Guard.Decide.
type Decision struct {
	Outcome  Outcome
	Redirect Route
}

// Allowed reports whether the route may be rendered.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// ErrRoleAlreadyConfirmed is returned when a second role is confirmed for one session.
var ErrRoleAlreadyConfirmed = errors.New("role already confirmed for this session")

// Guard tracks Unauthenticated -> Authenticating -> Authenticated(role).
// Once authenticated the role cannot change until the guard is reset.
type Guard struct {
	mu    sync.RWMutex
	phase Phase
	role  domain.Role
}

// NewGuard returns a guard in the Unauthenticated phase.
func NewGuard() *Guard {
	return &Guard{phase: PhaseUnauthenticated}
}

// Phase returns the current phase.
func (g *Guard) Phase() Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

// Role returns the confirmed role, or empty when not authenticated.
func (g *Guard) Role() domain.Role {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.phase != PhaseAuthenticated {
		return ""
	}
	return g.role
}

// Begin moves to Authenticating once a credential exists but the role is not yet confirmed.
func (g *Guard) Begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.phase {
	case PhaseUnauthenticated, PhaseAuthenticating:
		g.phase = PhaseAuthenticating
		return nil
	default:
		return fmt.Errorf("cannot begin authentication from phase %s", g.phase)
	}
}

// Confirm records the role returned by the profile endpoint.
func (g *Guard) Confirm(role domain.Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.phase {
	case PhaseAuthenticating:
		g.phase = PhaseAuthenticated
		g.role = role
		return nil
	case PhaseAuthenticated:
		if g.role == role {
			return nil
		}
		return ErrRoleAlreadyConfirmed
	default:
		return fmt.Errorf("cannot confirm role from phase %s", g.phase)
	}
}

// Expire forces the guard back to Unauthenticated from any phase.
func (g *Guard) Expire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = PhaseUnauthenticated
	g.role = ""
}

// Decide returns the verdict for entering route.
func (g *Guard) Decide(route Route) Decision {
	if IsPublic(route) {
		return Decision{Outcome: OutcomeAllow}
	}

	g.mu.RLock()
	phase, role := g.phase, g.role
	g.mu.RUnlock()

	switch phase {
	case PhaseAuthenticating:
		return Decision{Outcome: OutcomeLoading}
	case PhaseAuthenticated:
		if CanEnter(role, route) {
			return Decision{Outcome: OutcomeAllow}
		}
		return Decision{Outcome: OutcomeRedirect, Redirect: RouteDashboard}
	default:
		return Decision{Outcome: OutcomeRedirect, Redirect: RouteLogin}
	}
}

// Require converts a non-allow decision into a typed error.
func (g *Guard) Require(route Route) error {
	decision := g.Decide(route)
	switch decision.Outcome {
	case OutcomeAllow:
		return nil
	case OutcomeLoading:
		return faults.New(faults.KindUnauthorized, "enter "+string(route), "session role is not confirmed yet")
	}
	if decision.Redirect == RouteLogin {
		return faults.New(faults.KindUnauthorized, "enter "+string(route), "please log in first")
	}
	return faults.Newf(
		faults.KindForbidden,
		"enter "+string(route),
		"the %s role cannot open %s",
		g.Role(),
		route,
	)
}
