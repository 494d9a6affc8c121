package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockloop/scan/v2"

	"github.com/example/todo-crud/internal/persistence"
)

const sessionColumns = "id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at"

type sessionRow struct {
	ID          string         `db:"id"`
	UserID      int64          `db:"user_id"`
	Token       string         `db:"token"`
	Fingerprint string         `db:"fingerprint"`
	ExpiresAt   string         `db:"expires_at"`
	RevokedAt   sql.NullString `db:"revoked_at"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (r sessionRow) toSession() (persistence.Session, error) {
	session := persistence.Session{
		ID:          r.ID,
		UserID:      r.UserID,
		Token:       r.Token,
		Fingerprint: r.Fingerprint,
	}
	var err error
	if session.ExpiresAt, err = time.Parse(time.RFC3339, r.ExpiresAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, r.CreatedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, r.UpdatedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if r.RevokedAt.Valid {
		revoked, err := time.Parse(time.RFC3339, r.RevokedAt.String)
		if err != nil {
			return persistence.Session{}, fmt.Errorf("failed to parse revoked_at: %w", err)
		}
		session.RevokedAt = &revoked
	}
	return session, nil
}

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// CreateSession stores a new session token for a user.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.UserID == 0 {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session, err := normalizeSession(session)
	if err != nil {
		return persistence.Session{}, err
	}
	now := r.now().UTC().Truncate(time.Second)
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err = r.helper.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.Token,
		session.Fingerprint,
		session.ExpiresAt.Format(time.RFC3339),
		nullableTime(session.RevokedAt),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// GetSession retrieves a session by its token value.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE token = ?", token)
}

// UpdateSession updates the mutable fields of an existing session. The owner
// and creation time are kept from the stored row.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	var updated persistence.Session
	err := r.pool.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := r.getOne(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", session.ID)
		if err != nil {
			return err
		}
		session.UserID = current.UserID
		session.CreatedAt = current.CreatedAt
		if session, err = normalizeSession(session); err != nil {
			return err
		}
		session.UpdatedAt = r.now().UTC().Truncate(time.Second)

		_, err = r.helper.Exec(ctx, `
			UPDATE sessions
			SET token = ?, fingerprint = ?, expires_at = ?, revoked_at = ?, updated_at = ?
			WHERE id = ?`,
			session.Token,
			session.Fingerprint,
			session.ExpiresAt.Format(time.RFC3339),
			nullableTime(session.RevokedAt),
			session.UpdatedAt.Format(time.RFC3339),
			session.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		updated = session
		return nil
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return updated, nil
}

// RevokeSession marks the session with token as revoked.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	at := revokedAt.UTC().Format(time.RFC3339)

	res, err := r.helper.Exec(ctx,
		"UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE token = ?", at, at, token)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return r.GetSession(ctx, token)
}

// DeleteExpiredSessions removes sessions that expired on or before reference
// and returns how many were removed.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	res, err := r.helper.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= ?", reference.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return res.RowsAffected()
}

func (r *SessionRepository) getOne(ctx context.Context, query string, arg any) (persistence.Session, error) {
	rows, err := r.helper.Query(ctx, query, arg)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rec sessionRow
	if err := scan.Row(&rec, rows); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return rec.toSession()
}

func normalizeSession(session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.Fingerprint = strings.TrimSpace(session.Fingerprint)
	session.ExpiresAt = session.ExpiresAt.UTC().Truncate(time.Second)
	session.CreatedAt = session.CreatedAt.UTC()
	if session.RevokedAt != nil {
		revoked := session.RevokedAt.UTC().Truncate(time.Second)
		session.RevokedAt = &revoked
	}
	return session, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
