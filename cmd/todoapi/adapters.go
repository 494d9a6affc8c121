package main

import (
	"context"
	"errors"
	"time"

	"github.com/example/todo-crud/internal/application"
	"github.com/example/todo-crud/internal/persistence"
)

// mapStoreError turns persistence sentinels into their application twins so
// services and handlers only match on application errors.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return errors.Join(application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return errors.Join(application.ErrAlreadyExists, err)
	}
	return err
}

// userStoreAdapter serves both application.UserRepository and
// application.CredentialStore.
type userStoreAdapter struct {
	repo persistence.UserRepository
}

func newUserStoreAdapter(repo persistence.UserRepository) *userStoreAdapter {
	return &userStoreAdapter{repo: repo}
}

func (a *userStoreAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	model := toPersistenceUser(user)
	model.PasswordHash = passwordHash
	stored, err := a.repo.CreateUser(ctx, model)
	if err != nil {
		return application.User{}, mapStoreError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userStoreAdapter) GetUser(ctx context.Context, id int64) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapStoreError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, mapStoreError(err)
	}
	return application.UserCredentials{User: toApplicationUser(stored), PasswordHash: stored.PasswordHash}, nil
}

func (a *userStoreAdapter) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	stored, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return mapStoreError(err)
	}
	stored.PasswordHash = hash
	return mapStoreError(a.repo.UpdateUser(ctx, stored))
}

func (a *userStoreAdapter) DeleteUser(ctx context.Context, id int64) error {
	return mapStoreError(a.repo.DeleteUser(ctx, id))
}

func (a *userStoreAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	n, err := a.repo.DeleteExpiredSessions(ctx, reference)
	return n, mapStoreError(err)
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func toApplicationUser(user persistence.User) application.User {
	return application.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   session.RevokedAt,
	}
}

func toApplicationSession(session persistence.Session) application.Session {
	return application.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   session.RevokedAt,
	}
}
