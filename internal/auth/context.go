// Package auth carries the signed-in account through a request context.
// Middleware writes it and handlers read it; neither imports the other.
package auth

import (
	"context"

	"github.com/DukeRupert/reelscout/internal/domain"
)

type userKey struct{}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// GetUser returns the account stored by WithUser, or nil on anonymous requests.
func GetUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey{}).(*domain.User)
	return user
}

// UserID returns the signed-in account's ID, or "" on anonymous requests.
func UserID(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.ID.String()
	}
	return ""
}
