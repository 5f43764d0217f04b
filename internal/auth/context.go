package auth

import (
	"context"
)

type ctxKey string

const userKey ctxKey = "userClaims"

// Claims is the verified content of a session token.
type Claims struct {
	Subject  string // email
	UserID   string
	Role     string
	TenantID string
	JWTID    string
}

func (c Claims) HasRole(role string) bool {
	return c.Role == role
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

// Subject returns the authenticated email, or "" when unauthenticated.
func Subject(ctx context.Context) string {
	return FromContext(ctx).Subject
}

// UserID returns the authenticated user id, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	return FromContext(ctx).UserID
}
