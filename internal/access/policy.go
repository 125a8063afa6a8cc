// Package access decides which routes an actor may enter. It is the single
// source of truth for role checks; commands consult a Guard instead of
// inspecting roles themselves.
package access

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dcms-nepal/dcms/internal/domain"
)

// Route names a view or action surface of the client.
type Route string

const (
	RouteLogin          Route = "login"
	RouteRegister       Route = "register"
	RouteForgotPassword Route = "forgot-password"
	RouteDashboard      Route = "dashboard"
	RouteSubmit         Route = "submit"
	RouteTrack          Route = "track"
	RouteAdminPanel     Route = "admin-panel"
)

var permitted = map[domain.Role][]Route{
	domain.RoleUser:  {RouteDashboard, RouteSubmit, RouteTrack},
	domain.RoleAdmin: {RouteDashboard, RouteAdminPanel},
}

var public = []Route{RouteLogin, RouteRegister, RouteForgotPassword}

// ParseRoute accepts a route name and rejects unknown ones.
func ParseRoute(value string) (Route, error) {
	route := Route(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(public, route) {
		return route, nil
	}
	for _, routes := range permitted {
		if slices.Contains(routes, route) {
			return route, nil
		}
	}
	return "", fmt.Errorf("unknown route %q", value)
}

// IsPublic reports whether route is reachable without a session.
func IsPublic(route Route) bool {
	return slices.Contains(public, route)
}

// PermittedRoutes returns the fixed capability set for role. Unknown roles get none.
func PermittedRoutes(role domain.Role) []Route {
	return slices.Clone(permitted[role])
}

// CanEnter reports whether role may enter route.
func CanEnter(role domain.Role, route Route) bool {
	return slices.Contains(permitted[role], route)
}
