package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository stores accounts in the users table of tracker.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a user repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

const userColumns = "id, email, username, full_name, hashed_password, is_active, cash_balance, created_at"

// Create inserts a user. Email and username must not be taken.
func (r *Repository) Create(ctx context.Context, u User) (*User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, username, full_name, hashed_password, is_active, cash_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.Email, u.Username, u.FullName, u.HashedPassword, u.IsActive, u.CashBalance.String(), u.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}
	u.ID = id
	return &u, nil
}

// GetByID returns the user or ErrUserNotFound
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByEmail returns the user or ErrUserNotFound
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByUsername returns the user or ErrUserNotFound
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// SetActive enables or disables an account
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?",
		active, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return nil
}

func (r *Repository) getOne(ctx context.Context, where string, arg interface{}) (*User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)

	var u User
	var fullName sql.NullString
	var createdAt int64
	err := row.Scan(&u.ID, &u.Email, &u.Username, &fullName, &u.HashedPassword, &u.IsActive, &u.CashBalance, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.FullName = fullName.String
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}
