package identity

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	var provisioned []string
	svc := NewService(repo, func(_ context.Context, userID string) error {
		provisioned = append(provisioned, userID)
		return nil
	})

	ctx := context.Background()
	user, err := svc.Register(ctx, Registration{Name: "Ada", Email: "Ada@Example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if len(provisioned) != 1 || provisioned[0] != user.ID {
		t.Fatalf("expected wallet provisioning for %s, got %v", user.ID, provisioned)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.LastLogin == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, Registration{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "wrong-horse"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "correct-horse"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	cases := []Registration{
		{Name: "", Email: "a@example.com", Password: "long-enough"},
		{Name: "Ada", Email: "not-an-email", Password: "long-enough"},
		{Name: "Ada", Email: "a@example.com", Password: "short"},
	}
	for _, reg := range cases {
		var vErr *ValidationError
		if _, err := svc.Register(ctx, reg); !errors.As(err, &vErr) {
			t.Fatalf("expected validation error for %+v, got %v", reg, err)
		}
	}

	if _, err := svc.Register(ctx, Registration{Name: "Ada", Email: "a@example.com", Password: "long-enough"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Registration{Name: "Eve", Email: "A@example.com", Password: "long-enough"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestRegisterRollsBackWhenProvisioningFails(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, func(context.Context, string) error {
		return errors.New("ledger unavailable")
	})
	ctx := context.Background()

	if _, err := svc.Register(ctx, Registration{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"}); err == nil {
		t.Fatalf("expected provisioning failure")
	}
	if _, err := repo.FindByEmail(ctx, "ada@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user to be removed, got %v", err)
	}
}

func TestRevokeTokensBumpsVersion(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()
	user, err := svc.Register(ctx, Registration{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	version, err := svc.RevokeTokens(ctx, user.ID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}
}
