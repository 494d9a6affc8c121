package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]User, error)
}

// UserService registers accounts and exposes them to administrators.
type UserService struct {
	users      UserRepository
	hashParams Argon2idParams
	now        func() time.Time
	logger     *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hashParams Argon2idParams, now func() time.Time, logger *slog.Logger) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, hashParams: hashParams, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register validates params, hashes the password and stores a new account.
// A taken email yields ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user service not configured")
	}

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.DisplayName = strings.TrimSpace(params.DisplayName)

	logger := s.loggerWith(ctx, "Register", "email", params.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	}()

	if vErr := validateRegistration(params); vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := CreatePasswordHash(params.Password, s.hashParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	return s.users.CreateUser(ctx, User{
		Email:       params.Email,
		DisplayName: params.DisplayName,
		IsAdmin:     params.IsAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, hash)
}

// GetUser returns a user to themselves or to an administrator.
func (s *UserService) GetUser(ctx context.Context, principal Principal, id int64) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user service not configured")
	}
	if !principal.IsAdmin && principal.UserID != id {
		return User{}, ErrUnauthorized
	}
	return s.users.GetUser(ctx, id)
}

// ListUsers returns all users for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user service not configured")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// DeleteUser removes a user when requested by an administrator. The user's
// lists and sessions go with them.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, id int64) error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user service not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteUser", "actor_id", principal.UserID, "user_id", id)
	if err := s.users.DeleteUser(ctx, id); err != nil {
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "user deleted")
	return nil
}

func validateRegistration(params RegisterParams) *ValidationError {
	vErr := &ValidationError{}

	if params.Email == "" {
		vErr.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(params.Email); err != nil || addr.Address != params.Email {
		vErr.add("email", "email is invalid")
	}

	if params.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	} else if utf8.RuneCountInString(params.DisplayName) > 100 {
		vErr.add("display_name", "display name must be at most 100 characters")
	}

	if utf8.RuneCountInString(params.Password) < MinPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	return vErr
}
