package identity

import (
	"errors"
	"time"
)

// User represents a registered wallet owner.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	// TokenVersion is embedded in issued tokens; bumping it revokes them.
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Registration is the input to Register.
type Registration struct {
	Name     string
	Email    string
	Password string
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
}

var (
	ErrUserExists         = errors.New("email is already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError reports a malformed registration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
