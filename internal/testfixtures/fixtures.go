package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/todo-crud/internal/application"
	"github.com/example/todo-crud/internal/persistence"
	"github.com/example/todo-crud/internal/todo"
)

var (
	userSeq    atomic.Uint64
	sessionSeq atomic.Uint64
	listSeq    atomic.Uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime is the instant fixtures and NewClock start from.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserFixture is a user row. ID stays zero until the harness stores it.
type UserFixture struct {
	persistence.User
}

// UserOption adjusts a UserFixture.
type UserOption func(*persistence.User)

// NewUserFixture returns a user with a unique email and a placeholder hash.
func NewUserFixture(opts ...UserOption) UserFixture {
	n := userSeq.Add(1)
	created := referenceTime.Add(time.Duration(n) * time.Minute)
	u := persistence.User{
		Email:        fmt.Sprintf("user-%03d@example.com", n),
		DisplayName:  fmt.Sprintf("User %03d", n),
		PasswordHash: fmt.Sprintf("hash-%03d", n),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&u)
	}
	return UserFixture{User: u}
}

func WithUserID(id int64) UserOption { return func(u *persistence.User) { u.ID = id } }

func WithUserEmail(email string) UserOption { return func(u *persistence.User) { u.Email = email } }

func WithUserPasswordHash(hash string) UserOption {
	return func(u *persistence.User) { u.PasswordHash = hash }
}

func WithUserAdmin(admin bool) UserOption { return func(u *persistence.User) { u.IsAdmin = admin } }

// Application drops the password hash.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{User: f.Application(), PasswordHash: f.PasswordHash}
}

// Principal is the requester the user acts as on list and item endpoints.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Email: f.Email, IsAdmin: f.IsAdmin}
}

func (f UserFixture) Persistence() persistence.User {
	return f.User
}

// SessionFixture is a session row.
type SessionFixture struct {
	persistence.Session
}

// SessionOption adjusts a SessionFixture.
type SessionOption func(*persistence.Session)

// NewSessionFixture returns a session for userID that expires eight hours
// after ReferenceTime.
func NewSessionFixture(userID int64, opts ...SessionOption) SessionFixture {
	n := sessionSeq.Add(1)
	s := persistence.Session{
		ID:          fmt.Sprintf("session-%03d", n),
		UserID:      userID,
		Token:       fmt.Sprintf("token-%03d", n),
		Fingerprint: "test-agent",
		ExpiresAt:   referenceTime.Add(8 * time.Hour),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return SessionFixture{Session: s}
}

func WithSessionToken(token string) SessionOption {
	return func(s *persistence.Session) { s.Token = token }
}

func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(s *persistence.Session) { s.ExpiresAt = t }
}

func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(s *persistence.Session) { s.RevokedAt = &t }
}

// Application copies RevokedAt so callers may mutate the result.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

func (f SessionFixture) Persistence() persistence.Session {
	s := f.Session
	s.RevokedAt = copyTimePtr(f.RevokedAt)
	return s
}

// NewList returns an unsaved list with a unique name.
func NewList(ownerID int64) todo.List {
	return todo.List{OwnerID: ownerID, Name: fmt.Sprintf("list %03d", listSeq.Add(1))}
}

// NewItems returns one unsaved item per text, all in listID.
func NewItems(listID int64, texts ...string) []todo.Item {
	items := make([]todo.Item, 0, len(texts))
	for _, text := range texts {
		items = append(items, todo.Item{ListID: listID, Text: text})
	}
	return items
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	t := *src
	return &t
}
