package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxNameLength     = 255
)

// ProvisionFunc is called after a user row is stored, typically to open the
// user's wallet. A failure removes the user again.
type ProvisionFunc func(ctx context.Context, userID string) error

// Service manages identity lifecycle.
type Service struct {
	repo      Repository
	provision ProvisionFunc
	now       func() time.Time
}

// NewService creates a new identity service. provision may be nil.
func NewService(repo Repository, provision ProvisionFunc) *Service {
	return &Service{repo: repo, provision: provision, now: time.Now}
}

// Register creates a user with a hashed password and provisions its wallet.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" || len([]rune(name)) > maxNameLength {
		return User{}, &ValidationError{Field: "name", Message: fmt.Sprintf("must be 1 to %d characters", maxNameLength)}
	}
	email, err := NormalizeEmail(reg.Email)
	if err != nil {
		return User{}, err
	}
	if len(reg.Password) < minPasswordLength {
		return User{}, &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	if s.provision != nil {
		if err := s.provision(ctx, user.ID); err != nil {
			if delErr := s.repo.Delete(ctx, user.ID); delErr != nil {
				return User{}, errors.Join(fmt.Errorf("provision user %s: %w", user.ID, err), delErr)
			}
			return User{}, fmt.Errorf("provision user %s: %w", user.ID, err)
		}
	}

	return user, nil
}

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	email, err := NormalizeEmail(creds.Email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		return User{}, err
	}
	user.LastLogin = &now
	return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByEmail resolves a contact address to a user.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	return s.repo.FindByEmail(ctx, normalized)
}

// RevokeTokens invalidates every token issued to the user so far.
func (s *Service) RevokeTokens(ctx context.Context, id string) (int, error) {
	return s.repo.UpdateTokenVersion(ctx, id)
}

// NormalizeEmail validates a bare address and lowercases it.
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || len(raw) > maxNameLength {
		return "", &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return strings.ToLower(raw), nil
}
