package authz

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

// AuthUser is the caller resolved from a bearer token or the ops API key.
type AuthUser struct {
	ID    string
	Role  string
	Email string
	// Operator is set when the caller authenticated with the ops API key.
	Operator bool
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// IsAdmin reports whether user may use the operator endpoints.
func IsAdmin(user *AuthUser) bool {
	return user != nil && (user.Operator || strings.EqualFold(user.Role, RoleAdmin))
}

// RequireUser returns the authenticated user or ErrUnauthenticated.
func RequireUser(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// RequireAdmin fails with ErrUnauthenticated when no user is present and
// ErrForbidden when the user is not an operator or admin.
func RequireAdmin(ctx context.Context) error {
	user, err := RequireUser(ctx)
	if err != nil {
		return err
	}
	if !IsAdmin(user) {
		return ErrForbidden
	}
	return nil
}
