package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CredentialStore exposes the user lookups the auth service needs.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthOptions tunes an AuthService. Zero values select the defaults.
type AuthOptions struct {
	SessionTTL     time.Duration
	Verify         PasswordVerifier
	SessionID      func() string
	TokenGenerator func() string
	Now            func() time.Time
	// HashParams, when set, upgrades stored hashes made with other cost
	// settings on the next successful login.
	HashParams *Argon2idParams
}

// AuthService coordinates authentication flows such as login and session refresh.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionRepository
	verifyPassword PasswordVerifier
	sessionID      func() string
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	hashParams     *Argon2idParams
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(credentials CredentialStore, sessions SessionRepository, opts AuthOptions, logger *slog.Logger) *AuthService {
	s := &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		verifyPassword: opts.Verify,
		sessionID:      opts.SessionID,
		tokenGenerator: opts.TokenGenerator,
		now:            opts.Now,
		sessionTTL:     opts.SessionTTL,
		hashParams:     opts.HashParams,
		logger:         defaultLogger(logger),
	}
	if s.verifyPassword == nil {
		s.verifyPassword = VerifyPassword
	}
	if s.sessionID == nil {
		s.sessionID = uuid.NewString
	}
	if s.tokenGenerator == nil {
		s.tokenGenerator = NewSessionToken
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a new session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil || s.credentials == nil || s.sessions == nil {
		return AuthenticateResult{}, fmt.Errorf("auth service not configured")
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		err = ErrInvalidCredentials
		return
	}
	if err != nil {
		return
	}

	if verr := s.verifyPassword(creds.PasswordHash, params.Password); verr != nil {
		err = ErrInvalidCredentials
		return
	}
	s.upgradeHash(ctx, logger, creds, params.Password)

	now := s.now()
	if _, err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return
	}

	var session Session
	session, err = s.sessions.CreateSession(ctx, Session{
		ID:          s.sessionID(),
		UserID:      creds.User.ID,
		Token:       s.tokenGenerator(),
		Fingerprint: strings.TrimSpace(params.Fingerprint),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	})
	if err != nil {
		return
	}

	result = AuthenticateResult{User: creds.User, Session: session}
	return
}

func (s *AuthService) upgradeHash(ctx context.Context, logger *slog.Logger, creds UserCredentials, password string) {
	if s.hashParams == nil || !NeedsRehash(creds.PasswordHash, *s.hashParams) {
		return
	}
	hash, err := CreatePasswordHash(password, *s.hashParams)
	if err == nil {
		err = s.credentials.UpdatePasswordHash(ctx, creds.User.ID, hash)
	}
	if err != nil {
		logger.WarnContext(ctx, "failed to upgrade password hash", "error", err)
		return
	}
	logger.InfoContext(ctx, "password hash upgraded", "user_id", creds.User.ID)
}

// RefreshSession rotates an existing session token, extending its validity window.
func (s *AuthService) RefreshSession(ctx context.Context, params RefreshSessionParams) (result RefreshSessionResult, err error) {
	if s == nil || s.sessions == nil {
		return RefreshSessionResult{}, fmt.Errorf("auth service not configured")
	}

	token := strings.TrimSpace(params.Token)
	logger := s.loggerWith(ctx, "RefreshSession", "token_provided", token != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session refresh failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_id", result.Session.ID,
			"user_id", result.Session.UserID,
		).InfoContext(ctx, "session refreshed")
	}()

	var session Session
	if session, err = s.activeSession(ctx, token, ErrInvalidCredentials); err != nil {
		return
	}

	now := s.now()
	session.Token = s.tokenGenerator()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.sessionTTL)
	if fp := strings.TrimSpace(params.Fingerprint); fp != "" {
		session.Fingerprint = fp
	}

	if session, err = s.sessions.UpdateSession(ctx, session); err != nil {
		return
	}
	result = RefreshSessionResult{Session: session}
	return
}

// RevokeSession invalidates an existing session token and prunes expired ones.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil || s.sessions == nil {
		return fmt.Errorf("auth service not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidCredentials
	}
	logger := s.loggerWith(ctx, "RevokeSession")

	if _, err := s.sessions.RevokeSession(ctx, trimmed, s.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	pruned, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		logger.ErrorContext(ctx, "failed to prune expired sessions", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session revoked", "pruned", pruned)
	return nil
}

// ValidateSession verifies that token belongs to an active session and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil || s.sessions == nil || s.credentials == nil {
		return Principal{}, fmt.Errorf("auth service not configured")
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	var session Session
	if session, err = s.activeSession(ctx, trimmed, ErrUnauthorized); err != nil {
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, session.UserID)
	if errors.Is(err, ErrNotFound) {
		err = ErrUnauthorized
		return
	}
	if err != nil {
		return
	}

	principal = Principal{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin}
	return
}

// activeSession loads the session for token and rejects revoked or expired
// ones. missing is returned for an empty or unknown token.
func (s *AuthService) activeSession(ctx context.Context, token string, missing error) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidCredentials
	}
	session, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return Session{}, missing
	}
	if err != nil {
		return Session{}, err
	}

	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		return Session{}, ErrSessionRevoked
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return session, nil
}
