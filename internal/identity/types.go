package identity

import "time"

// User represents an account operating inside a tenant workspace.
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	RoleID        string
	Active        bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Claims is the immutable snapshot of a user embedded into access tokens at
// issuance time. It may go stale between issuance and use; account-state
// gates evaluate these fields as minted, not live database rows.
type Claims struct {
	UserID        string `json:"uid"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Active        bool   `json:"active"`
	EmailVerified bool   `json:"email_verified"`
	RoleID        string `json:"role_id,omitempty"`
}

// Claims builds the token snapshot for the user.
func (u *User) Claims() Claims {
	return Claims{
		UserID:        u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Active:        u.Active,
		EmailVerified: u.EmailVerified,
		RoleID:        u.RoleID,
	}
}

// RoleTier classifies a role's base capability set. The authorization engine
// treats this as opaque capability facts from the role store.
type RoleTier int

const (
	TierCustom RoleTier = iota
	TierMember
	TierAdmin
)

func (t RoleTier) String() string {
	switch t {
	case TierAdmin:
		return "admin"
	case TierMember:
		return "member"
	default:
		return "custom"
	}
}

// Role groups capability facts resolved from the role store.
type Role struct {
	ID        string
	Name      string
	Tier      RoleTier
	Active    bool
	CanCreate bool
}

// IsAdmin reports whether the role short-circuits authorization checks.
func (r Role) IsAdmin() bool {
	return r.Active && r.Tier == TierAdmin
}

// AtLeastMember reports whether the role clears the member-tier floor.
func (r Role) AtLeastMember() bool {
	return r.Active && r.Tier >= TierMember
}

// CanCreateResources reports whether the role's base capability set includes
// resource creation.
func (r Role) CanCreateResources() bool {
	return r.Active && r.CanCreate
}

// Builtin roles used for bootstrap and DSN-less development mode.
var (
	RoleAdmin  = Role{ID: "admin", Name: "admin", Tier: TierAdmin, Active: true, CanCreate: true}
	RoleMember = Role{ID: "member", Name: "member", Tier: TierMember, Active: true, CanCreate: true}
)
