package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"encoding/json"
	"sort"
	"strings"
)

// Role represents an application's authorization role as issued by the
// product API. Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// RoleSet is the canonical, normalized set of roles for a user. API payloads
// carry roles either as a single "role" field or a "roles" array depending on
// deployment variant; both are folded into a RoleSet at ingestion so callers
// never branch on representation.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from role strings, uppercasing for consistency.
func NewRoleSet(roles ...string) RoleSet {
	rs := make(RoleSet, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		rs[Role(strings.ToUpper(r))] = struct{}{}
	}
	return rs
}

// Has reports whether the set contains the given role.
func (rs RoleSet) Has(role Role) bool {
	_, ok := rs[role]
	return ok
}

// IsAdmin reports whether the set grants admin access.
func (rs RoleSet) IsAdmin() bool { return rs.Has(RoleAdmin) }

// Slice returns the roles in sorted string form, for logging and persistence.
func (rs RoleSet) Slice() []string {
	out := make([]string, 0, len(rs))
	for r := range rs {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted string array.
func (rs RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Slice())
}

// UnmarshalJSON accepts either a single role string or an array of role strings.
func (rs *RoleSet) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*rs = NewRoleSet(many...)
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*rs = NewRoleSet(one)
	return nil
}

// Token is the opaque bearer credential issued by the product API. The
// gateway never interprets its contents; edge claim recovery is a separate,
// explicitly scoped concern.
type Token string

// Present reports whether a token value exists.
func (t Token) Present() bool { return t != "" }

// User is the authenticated principal as resolved from the identity endpoint.
type User struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  string  `json:"name"`
	Roles RoleSet `json:"roles"`
}

// UnmarshalJSON normalizes the two observed payload variants: a "role" string
// field or a "roles" array. When both are present the array wins.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    json.RawMessage `json:"id"`
		Email string          `json:"email"`
		Name  string          `json:"name"`
		Role  string          `json:"role"`
		Roles json.RawMessage `json:"roles"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	u.ID = idText(raw.ID)
	u.Email = raw.Email
	u.Name = raw.Name

	switch {
	case len(raw.Roles) > 0 && string(raw.Roles) != "null":
		var rs RoleSet
		if err := json.Unmarshal(raw.Roles, &rs); err != nil {
			return err
		}
		u.Roles = rs
	case raw.Role != "":
		u.Roles = NewRoleSet(raw.Role)
	default:
		u.Roles = RoleSet{}
	}
	return nil
}

// idText normalizes the id field, which arrives as either a JSON string or a
// JSON number depending on deployment variant. String ids come through as-is;
// numeric ids keep their literal text.
func idText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// IsAdmin reports whether the user holds the admin role, regardless of which
// payload variant produced it.
func (u *User) IsAdmin() bool { return u != nil && u.Roles.IsAdmin() }

// Status enumerates the session states of the auth controller.
type Status int

const (
	// StatusUnchecked means no session check has run for this entry yet.
	StatusUnchecked Status = iota
	// StatusChecking means a resolver call is in flight.
	StatusChecking
	// StatusAuthenticated means the identity endpoint confirmed the session.
	StatusAuthenticated
	// StatusUnauthenticated means there is no valid session.
	StatusUnauthenticated
)

// String returns a stable label for logging.
func (s Status) String() string {
	switch s {
	case StatusUnchecked:
		return "unchecked"
	case StatusChecking:
		return "checking"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of the controller's view of one session.
type State struct {
	User           *User
	Status         Status
	CheckCompleted bool
}

// Loading reports whether a resolver call is outstanding. It is true iff the
// status is Checking.
func (s State) Loading() bool { return s.Status == StatusChecking }

// Authenticated reports whether the session is confirmed.
func (s State) Authenticated() bool { return s.Status == StatusAuthenticated && s.User != nil }

// RouteFamily classifies request paths for session-check and guard policy.
type RouteFamily int

const (
	// FamilyPublic covers everything that needs no session check.
	FamilyPublic RouteFamily = iota
	// FamilyProtected covers pages requiring a signed-in user.
	FamilyProtected
	// FamilyAdmin covers pages additionally requiring the admin role.
	FamilyAdmin
	// FamilyAuth covers the login and register pages.
	FamilyAuth
)

// String returns a stable label for logging and cache keys.
func (f RouteFamily) String() string {
	switch f {
	case FamilyProtected:
		return "protected"
	case FamilyAdmin:
		return "admin"
	case FamilyAuth:
		return "auth"
	default:
		return "public"
	}
}

// RequiresCheck reports whether entering this family must trigger a session
// check when none has completed. Public and auth pages never do; validating
// the session on every public page load would be a wasted identity call.
func (f RouteFamily) RequiresCheck() bool {
	return f == FamilyProtected || f == FamilyAdmin
}

var protectedPrefixes = []string{"/dashboard", "/profile", "/appointments", "/chat"}

// ClassifyPath maps a request path onto its route family.
func ClassifyPath(path string) RouteFamily {
	switch {
	case path == "/login" || path == "/register":
		return FamilyAuth
	case strings.HasPrefix(path, "/admin"):
		return FamilyAdmin
	}
	for _, p := range protectedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return FamilyProtected
		}
	}
	return FamilyPublic
}
