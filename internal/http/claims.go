package httpx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
)

// tokenClaims is the claim shape the product API embeds in its bearer tokens.
// Role spelling varies by deployment the same way the user payload does.
type tokenClaims struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) roleSet() domainauth.RoleSet {
	if len(c.Roles) > 0 {
		return domainauth.NewRoleSet(c.Roles...)
	}
	return domainauth.NewRoleSet(c.Role)
}

// ClaimsParser recovers the role claims the edge guard needs from a bearer
// token. With a verification key configured it verifies HS256 signatures;
// without one it decodes unverified, which is acceptable at the edge because
// the guard's decision is advisory: real enforcement happens at the API,
// which rejects forged tokens on the resolver call.
type ClaimsParser struct {
	key []byte
}

// NewClaimsParser builds a parser. An empty key selects unverified decoding.
func NewClaimsParser(key []byte) *ClaimsParser {
	return &ClaimsParser{key: key}
}

// Roles extracts the normalized role set from the token.
func (p *ClaimsParser) Roles(token domainauth.Token) (domainauth.RoleSet, error) {
	if !token.Present() {
		return nil, errors.New("empty token")
	}

	claims := &tokenClaims{}
	if len(p.key) > 0 {
		_, err := jwt.ParseWithClaims(string(token), claims, func(*jwt.Token) (any, error) {
			return p.key, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return nil, fmt.Errorf("parse token claims: %w", err)
		}
		return claims.roleSet(), nil
	}

	if _, _, err := jwt.NewParser().ParseUnverified(string(token), claims); err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}
	return claims.roleSet(), nil
}
