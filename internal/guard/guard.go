// Package guard decides whether the current session may open a route.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/booking-portal/internal/auth"
)

var (
	ErrNotAuthenticated = errors.New("guard: login required")
	ErrForbidden        = errors.New("guard: not allowed for this account type")
)

// LoginRoute is where unauthenticated callers are sent.
const LoginRoute = "/login"

// Outcome is the closed set of guard verdicts.
type Outcome int

const (
	Allowed Outcome = iota + 1
	NotAuthenticated
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case NotAuthenticated:
		return "not_authenticated"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decision is the verdict for one route. Redirect is empty when allowed.
type Decision struct {
	Route    string
	Outcome  Outcome
	Redirect string
}

// Err converts a refusal into an error wrapping ErrNotAuthenticated or
// ErrForbidden. It is nil when the route is allowed.
func (d Decision) Err() error {
	switch d.Outcome {
	case Allowed:
		return nil
	case NotAuthenticated:
		return fmt.Errorf("%w: %s", ErrNotAuthenticated, d.Route)
	case Forbidden:
		return fmt.Errorf("%w: %s (try %s)", ErrForbidden, d.Route, d.Redirect)
	}
	return fmt.Errorf("guard: unknown outcome for %s", d.Route)
}

// Rule lists the roles a protected route admits. An empty Roles admits
// any signed-in user.
type Rule struct {
	Roles []auth.Role
}

func (r Rule) admits(role auth.Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Policy maps protected routes to their rules. Routes missing from the
// policy are public.
type Policy map[string]Rule

// DefaultPolicy is the portal's route table.
func DefaultPolicy() Policy {
	clients := Rule{Roles: []auth.Role{auth.RoleClient, auth.RoleAdmin}}
	owners := Rule{Roles: []auth.Role{auth.RoleBusiness, auth.RoleAdmin}}
	admins := Rule{Roles: []auth.Role{auth.RoleAdmin}}
	return Policy{
		"/book/:businessId/:serviceId": clients,
		"/my-appointments":             clients,
		"/profile":                     {},
		"/business/dashboard":          owners,
		"/business/profile":            owners,
		"/business/create-appointment": owners,
		"/business/services":           owners,
		"/business/hours":              owners,
		"/business/appointments":       owners,
		"/admin/dashboard":             admins,
		"/admin/users":                 admins,
		"/admin/businesses":            admins,
	}
}

// Session is the part of auth.Service the guard needs.
type Session interface {
	CurrentUser(ctx context.Context) *auth.Profile
}

type Guard struct {
	session Session
	policy  Policy
}

func New(session Session, policy Policy) *Guard {
	if session == nil {
		panic("guard: session required")
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Guard{session: session, policy: policy}
}

// Check evaluates route against the cached profile without a network call.
func (g *Guard) Check(ctx context.Context, route string) Decision {
	return Evaluate(g.policy, route, g.session.CurrentUser(ctx))
}

// Evaluate applies policy to route for user, which is nil when signed out.
func Evaluate(policy Policy, route string, user *auth.Profile) Decision {
	route = normalize(route)
	rule, protected := policy[route]
	if !protected {
		return Decision{Route: route, Outcome: Allowed}
	}
	if user == nil {
		return Decision{Route: route, Outcome: NotAuthenticated, Redirect: LoginRoute}
	}
	if rule.admits(user.Role) {
		return Decision{Route: route, Outcome: Allowed}
	}
	return Decision{Route: route, Outcome: Forbidden, Redirect: user.Role.Home()}
}

func normalize(route string) string {
	if route == "" || route == "/" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return strings.TrimSuffix(route, "/")
}
