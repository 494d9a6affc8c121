package application

import (
	"context"
	"sync"
	"time"
)

func plainVerifier(hashed, password string) error {
	if hashed != password {
		return ErrInvalidCredentials
	}
	return nil
}

type credentialStoreStub struct {
	mu          sync.Mutex
	credentials UserCredentials
	err         error
	updated     map[int64]string
}

func (s *credentialStoreStub) GetUserCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	if s.err != nil {
		return UserCredentials{}, s.err
	}
	if s.credentials.User.Email != email {
		return UserCredentials{}, ErrNotFound
	}
	return s.credentials, nil
}

func (s *credentialStoreStub) GetUser(_ context.Context, id int64) (User, error) {
	if s.err != nil {
		return User{}, s.err
	}
	if s.credentials.User.ID != id {
		return User{}, ErrNotFound
	}
	return s.credentials.User, nil
}

func (s *credentialStoreStub) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updated == nil {
		s.updated = make(map[int64]string)
	}
	s.updated[userID] = hash
	return nil
}

type sessionRepositoryStub struct {
	mu          sync.Mutex
	sessions    map[string]Session
	createErr   error
	deleteErr   error
	deleteCalls []time.Time
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{sessions: make(map[string]Session)}
}

func (s *sessionRepositoryStub) seed(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *sessionRepositoryStub) byToken(token string) (Session, bool) {
	for _, session := range s.sessions {
		if session.Token == token {
			return session, true
		}
	}
	return Session{}, false
}

func (s *sessionRepositoryStub) CreateSession(_ context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *sessionRepositoryStub) GetSession(_ context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byToken(token)
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (s *sessionRepositoryStub) UpdateSession(_ context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return Session{}, ErrNotFound
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *sessionRepositoryStub) RevokeSession(_ context.Context, token string, revokedAt time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byToken(token)
	if !ok {
		return Session{}, ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[session.ID] = session
	return session, nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(_ context.Context, reference time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, reference)
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	var n int64
	for id, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type userRepositoryStub struct {
	mu     sync.Mutex
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newUserRepositoryStub() *userRepositoryStub {
	return &userRepositoryStub{users: make(map[int64]User), hashes: make(map[int64]string)}
}

func (s *userRepositoryStub) CreateUser(_ context.Context, user User, hash string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return User{}, ErrAlreadyExists
		}
	}
	s.nextID++
	user.ID = s.nextID
	s.users[user.ID] = user
	s.hashes[user.ID] = hash
	return user, nil
}

func (s *userRepositoryStub) GetUser(_ context.Context, id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *userRepositoryStub) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *userRepositoryStub) ListUsers(context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for id := int64(1); id <= s.nextID; id++ {
		if user, ok := s.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}
