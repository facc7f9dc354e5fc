package authz

import (
	"context"
	"errors"
	"testing"
)

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name string
		user *AuthUser
		want error
	}{
		{name: "no user", user: nil, want: ErrUnauthenticated},
		{name: "player", user: &AuthUser{ID: "P1", Role: RolePlayer}, want: ErrForbidden},
		{name: "admin role", user: &AuthUser{ID: "A1", Role: "Admin"}, want: nil},
		{name: "operator key", user: &AuthUser{ID: "ops", Operator: true}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.user != nil {
				ctx = ContextWithUser(ctx, tt.user)
			}
			err := RequireAdmin(ctx)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUserFromContextIgnoresOtherValues(t *testing.T) {
	if UserFromContext(nil) != nil {
		t.Fatal("expected nil user for nil context")
	}
	ctx := context.WithValue(context.Background(), userContextKey{}, "not-a-user")
	if UserFromContext(ctx) != nil {
		t.Fatal("expected nil user for mismatched value")
	}
	if _, err := RequireUser(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
