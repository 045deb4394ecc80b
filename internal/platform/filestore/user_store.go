package filestore

import (
	"context"
	"strings"
	"time"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/store"
)

// userRecord is the persisted form of a user. domain.User hides the
// password hash from JSON, so the file uses its own field set.
type userRecord struct {
	ID             string      `json:"id"`
	Username       string      `json:"username"`
	HashedPassword string      `json:"hashed_password"`
	Role           domain.Role `json:"role"`
	CreatedAt      time.Time   `json:"created_at"`
}

func toUserRecord(u *domain.User) userRecord {
	return userRecord{
		ID:             u.ID,
		Username:       u.Username,
		HashedPassword: u.HashedPassword,
		Role:           u.Role,
		CreatedAt:      u.CreatedAt,
	}
}

func (r userRecord) user() *domain.User {
	return &domain.User{
		ID:             r.ID,
		Username:       r.Username,
		HashedPassword: r.HashedPassword,
		Role:           r.Role,
		CreatedAt:      r.CreatedAt,
	}
}

// UserStore implements store.UserStore over users.json. Usernames are
// unique without regard to case.
type UserStore struct {
	c *collection[userRecord]
}

var _ store.UserStore = (*UserStore)(nil)

// Create implements store.UserStore.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.Validate(); err != nil {
		return store.NewStoreError("user", "create", "invalid user", err)
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	current := s.c.load()
	for i := range current {
		if current[i].ID == user.ID {
			return store.NewStoreError("user", "create", "duplicate id", store.ErrDuplicate)
		}
		if strings.EqualFold(current[i].Username, user.Username) {
			return store.ErrUsernameExists
		}
	}

	next := make([]userRecord, len(current), len(current)+1)
	copy(next, current)
	next = append(next, toUserRecord(user))

	if err := s.c.commit(next); err != nil {
		return store.NewPersistenceError("user", "create", err)
	}
	return nil
}

// GetByID implements store.UserStore.
func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.find(ctx, func(r *userRecord) bool { return r.ID == id })
}

// GetByUsername implements store.UserStore.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	return s.find(ctx, func(r *userRecord) bool { return strings.EqualFold(r.Username, username) })
}

func (s *UserStore) find(ctx context.Context, match func(*userRecord) bool) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current := s.c.load()
	for i := range current {
		if match(&current[i]) {
			return current[i].user(), nil
		}
	}
	return nil, store.ErrUserNotFound
}
