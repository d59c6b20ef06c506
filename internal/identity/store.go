package identity

import "context"

// UserStore manages user accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetEmailVerified(ctx context.Context, id string, verified bool) error
}

// RoleStore resolves role capability facts. The authorization engine never
// inspects how the facts are stored.
type RoleStore interface {
	Find(ctx context.Context, id string) (Role, error)
}
