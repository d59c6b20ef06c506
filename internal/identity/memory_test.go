package identity

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryUserStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	u := &User{Username: "ada", Email: "Ada@Example.com", PasswordHash: "x", RoleID: "member", Active: true}
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatalf("fields not populated: %+v", u)
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}

	got, err := s.Find(ctx, u.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Username != "ada" {
		t.Fatalf("user = %+v", got)
	}

	// lookup is case-insensitive on email
	got, err = s.FindByEmail(ctx, "ADA@example.COM")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("wrong user: %+v", got)
	}

	if _, err := s.Find(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryUserStoreDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	if err := s.Create(ctx, &User{Username: "ada", Email: "ada@example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(ctx, &User{Username: "ada2", Email: "ADA@example.com"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
	if err := s.Create(ctx, &User{Username: "blank", Email: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestMemoryUserStoreFlags(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	u := &User{Username: "ada", Email: "ada@example.com", Active: true}
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := s.SetEmailVerified(ctx, u.ID, true); err != nil {
		t.Fatalf("SetEmailVerified: %v", err)
	}

	got, err := s.Find(ctx, u.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Active || !got.EmailVerified {
		t.Fatalf("flags = active=%v verified=%v", got.Active, got.EmailVerified)
	}

	if err := s.SetActive(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryRoleStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoleStore()

	admin, err := s.Find(ctx, RoleAdmin.ID)
	if err != nil {
		t.Fatalf("Find builtin admin: %v", err)
	}
	if !admin.IsAdmin() {
		t.Fatalf("builtin admin role = %+v", admin)
	}

	member, err := s.Find(ctx, RoleMember.ID)
	if err != nil {
		t.Fatalf("Find builtin member: %v", err)
	}
	if member.IsAdmin() || !member.AtLeastMember() || !member.CanCreateResources() {
		t.Fatalf("builtin member role = %+v", member)
	}

	s.Register(Role{ID: "viewer", Name: "viewer", Tier: TierCustom, Active: true})
	viewer, err := s.Find(ctx, "viewer")
	if err != nil {
		t.Fatalf("Find registered role: %v", err)
	}
	if viewer.AtLeastMember() || viewer.CanCreateResources() {
		t.Fatalf("viewer role = %+v", viewer)
	}

	if _, err := s.Find(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestClaimsSnapshot(t *testing.T) {
	u := &User{
		ID:            "u-1",
		Username:      "ada",
		Email:         "ada@example.com",
		Active:        true,
		EmailVerified: true,
		RoleID:        "member",
	}
	c := u.Claims()
	if c.UserID != "u-1" || c.Username != "ada" || c.RoleID != "member" || !c.Active || !c.EmailVerified {
		t.Fatalf("claims = %+v", c)
	}
}

func TestRoleCapabilityGuards(t *testing.T) {
	inactive := Role{ID: "x", Tier: TierAdmin, Active: false, CanCreate: true}
	if inactive.IsAdmin() || inactive.AtLeastMember() || inactive.CanCreateResources() {
		t.Fatal("inactive role reports capabilities")
	}
}
