package application

import (
	"strconv"
	"time"
)

// Principal identifies the authenticated user behind a request.
type Principal struct {
	UserID  int64
	Email   string
	IsAdmin bool
}

// Identity returns the decimal user id. Ownership checks parse it back into an
// integer, so it must stay free of any decoration.
func (p Principal) Identity() string {
	return strconv.FormatInt(p.UserID, 10)
}

// User represents an account exposed by the application services.
type User struct {
	ID          int64
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RegisterParams captures the data required to create an account.
type RegisterParams struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// UserCredentials pairs a user with the stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      int64
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}
