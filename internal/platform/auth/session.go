// Package auth verifies bearer tokens minted by the external identity
// provider and carries the resulting Session through request contexts.
package auth

import (
	"context"
	"strings"
)

// RoleAdmin grants the moderation and catalog management routes.
const RoleAdmin = "admin"

// Session is the caller identity threaded through every call that needs
// one. Profile fields are denormalized onto records the user authors.
type Session struct {
	UserID      string
	DisplayName string
	Username    string
	PhotoURL    string
	Role        string
}

func (s Session) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(s.Role), RoleAdmin)
}

type sessionKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the verified session, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.UserID != ""
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	return s.UserID, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	return s.Role, ok && s.Role != ""
}
