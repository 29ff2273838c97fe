package auth

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownRole is returned for a user_type outside the closed set.
var ErrUnknownRole = errors.New("auth: unknown role")

// Role is the account type the backend assigns at registration.
type Role int

const (
	RoleAdmin Role = iota + 1
	RoleBusiness
	RoleClient
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleBusiness, RoleClient}

func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "business":
		return RoleBusiness, nil
	case "client":
		return RoleClient, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleBusiness:
		return "business"
	case RoleClient:
		return "client"
	}
	return "unknown"
}

func (r Role) Valid() bool {
	return r >= RoleAdmin && r <= RoleClient
}

// Home is the landing route for the role.
func (r Role) Home() string {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleBusiness:
		return "/business/dashboard"
	case RoleClient:
		return "/"
	}
	return "/"
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
