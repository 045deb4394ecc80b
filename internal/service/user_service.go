package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/platform/logger"
	"github.com/phrazzld/voicetask/internal/redact"
	"github.com/phrazzld/voicetask/internal/service/auth"
	"github.com/phrazzld/voicetask/internal/store"
)

// UserService provides account operations
type UserService interface {
	// Register creates an account with the user role.
	Register(ctx context.Context, username, password string) (*domain.User, error)

	// CreateUser creates an account with the given role.
	CreateUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error)

	// Authenticate verifies the credentials and returns the account.
	// Unknown usernames and wrong passwords both return ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)

	// ResolvePrincipal reloads the user behind a validated token so that
	// role changes apply immediately.
	ResolvePrincipal(ctx context.Context, userID string) (domain.Principal, error)
}

// userServiceImpl implements the UserService interface
type userServiceImpl struct {
	users  store.UserStore
	hasher auth.PasswordHasher
	logger *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(users store.UserStore, hasher auth.PasswordHasher, logger *slog.Logger) (UserService, error) {
	if users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if hasher == nil {
		return nil, domain.NewValidationError("hasher", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &userServiceImpl{
		users:  users,
		hasher: hasher,
		logger: logger.With(slog.String("component", "user_service")),
	}, nil
}

// Register implements UserService.Register
func (s *userServiceImpl) Register(ctx context.Context, username, password string) (*domain.User, error) {
	return s.CreateUser(ctx, username, password, domain.RoleUser)
}

// CreateUser implements UserService.CreateUser
func (s *userServiceImpl) CreateUser(
	ctx context.Context,
	username, password string,
	role domain.Role,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error("failed to hash password", slog.String("error", redact.Error(err)))
		return nil, NewUserServiceError("create_user", "failed to hash password", err)
	}

	user, err := domain.NewUser(username, hash, role)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			log.Debug("attempted to create user with existing username",
				slog.String("username", user.Username))
			return nil, err
		}
		log.Error("failed to save user",
			slog.String("error", redact.Error(err)),
			slog.String("username", user.Username))
		return nil, NewUserServiceError("create_user", "failed to save user", err)
	}

	log.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)))
	return user, nil
}

// Authenticate implements UserService.Authenticate
func (s *userServiceImpl) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("login for unknown username")
			return nil, ErrInvalidCredentials
		}
		log.Error("failed to load user for login", slog.String("error", redact.Error(err)))
		return nil, NewUserServiceError("authenticate", "failed to load user", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			log.Debug("login with wrong password", slog.String("user_id", user.ID))
			return nil, ErrInvalidCredentials
		}
		log.Error("failed to verify password", slog.String("error", redact.Error(err)))
		return nil, NewUserServiceError("authenticate", "failed to verify password", err)
	}
	return user, nil
}

// ResolvePrincipal implements UserService.ResolvePrincipal
func (s *userServiceImpl) ResolvePrincipal(ctx context.Context, userID string) (domain.Principal, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.Principal{}, ErrInvalidCredentials
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load user",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID))
		return domain.Principal{}, NewUserServiceError("resolve_principal", "failed to load user", err)
	}
	return user.Principal(), nil
}
