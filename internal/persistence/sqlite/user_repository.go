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

const userColumns = "id, email, display_name, password_hash, is_admin, created_at, updated_at"

// userRow mirrors the users table. Timestamps are stored as RFC 3339 text.
type userRow struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	DisplayName  string `db:"display_name"`
	PasswordHash string `db:"password_hash"`
	IsAdmin      bool   `db:"is_admin"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func (r userRow) toUser() (persistence.User, error) {
	user := persistence.User{
		ID:           r.ID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
	}
	var err error
	if user.CreatedAt, err = time.Parse(time.RFC3339, r.CreatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = time.Parse(time.RFC3339, r.UpdatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return user, nil
}

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// CreateUser inserts user and returns it with the assigned id and timestamps.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	if user.PasswordHash == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}

	user.Email = normalizeEmail(user.Email)
	now := r.now().UTC().Truncate(time.Second)
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.helper.Exec(ctx, `
		INSERT INTO users (email, display_name, password_hash, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.IsAdmin,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	if user.ID, err = res.LastInsertId(); err != nil {
		return persistence.User{}, fmt.Errorf("failed to read user id: %w", err)
	}
	return user, nil
}

// UpdateUser overwrites the mutable fields of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == 0 || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	res, err := r.helper.Exec(ctx, `
		UPDATE users
		SET email = ?, display_name = ?, password_hash = ?, is_admin = ?, updated_at = ?
		WHERE id = ?`,
		normalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		user.IsAdmin,
		r.now().UTC().Format(time.RFC3339),
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetUser retrieves a user by id.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	if id <= 0 {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetUserByEmail retrieves a user by case-insensitive email address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

// ListUsers returns all users ordered by id.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var records []userRow
	if err := scan.Rows(&records, rows); err != nil {
		return nil, r.mapper.MapError(err)
	}
	users := make([]persistence.User, 0, len(records))
	for _, rec := range records {
		user, err := rec.toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// DeleteUser removes a user. Their sessions and lists go with them through
// ON DELETE CASCADE.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.helper.Exec(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (persistence.User, error) {
	rows, err := r.helper.Query(ctx, query, arg)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rec userRow
	if err := scan.Row(&rec, rows); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.mapper.MapError(err)
	}
	return rec.toUser()
}

// normalizeEmail normalizes email addresses for consistent storage and lookup.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
