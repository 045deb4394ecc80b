package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User limits.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72
)

// User is a registered account. HashedPassword is never exposed in JSON
// responses; stores persist it through their own record types.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUser creates a user with a fresh id. The caller supplies an already
// hashed password.
func NewUser(username, hashedPassword string, role Role) (*User, error) {
	user := &User{
		ID:             uuid.NewString(),
		Username:       strings.TrimSpace(username),
		HashedPassword: hashedPassword,
		Role:           role,
		CreatedAt:      Now(),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

// Validate checks the user's field constraints.
func (u *User) Validate() error {
	if u.ID == "" {
		return NewValidationError("id", "cannot be empty", nil)
	}
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if u.HashedPassword == "" {
		return NewValidationError("password", "hash cannot be empty", nil)
	}
	if !u.Role.Valid() {
		return NewValidationError("role", "must be user or admin", ErrInvalidRole)
	}
	return nil
}

// Principal returns the identity used for authorization decisions.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Username: u.Username, Role: u.Role}
}

// ValidateUsername checks username length.
func ValidateUsername(username string) error {
	n := len(strings.TrimSpace(username))
	if n < MinUsernameLength || n > MaxUsernameLength {
		return NewValidationError("username", "must be between 3 and 64 characters", nil)
	}
	return nil
}

// ValidatePassword checks plaintext password length before hashing.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return NewValidationError("password", "must be at least 8 characters", nil)
	}
	if len(password) > MaxPasswordLength {
		return NewValidationError("password", "must be at most 72 characters", nil)
	}
	return nil
}
