package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/readlater/internal/errors"
)

// ErrUserNotFound is returned when no user matches an email or id.
var ErrUserNotFound = &errors.AppError{
	Code:    errors.ErrNotFound,
	Status:  404,
	Message: "user not found",
}

// ErrSessionNotFound is returned when a session token hash is unknown.
var ErrSessionNotFound = &errors.AppError{
	Code:    errors.ErrUnauthorized,
	Status:  401,
	Message: "session not found",
}

// User is an account row.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    int64
}

// Session is a login session; only the hash of the bearer token is stored.
type Session struct {
	TokenHash string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

// InsertUser stores a new user. A duplicate email yields EMAIL_TAKEN.
func InsertUser(ctx context.Context, db *sql.DB, u *User) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewEmailTaken(u.Email)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetUserByEmail looks a user up by (already normalized) email.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserByID looks a user up by id.
func GetUserByID(ctx context.Context, db *sql.DB, id string) (*User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &u, nil
}

// InsertSession stores a session.
func InsertSession(ctx context.Context, db *sql.DB, s *Session) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		s.TokenHash, s.UserID, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetSession returns the session for a token hash, expired or not.
func GetSession(ctx context.Context, db *sql.DB, tokenHash string) (*Session, error) {
	var s Session
	err := db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, expires_at, created_at FROM sessions WHERE token_hash = ?`, tokenHash,
	).Scan(&s.TokenHash, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &s, nil
}

// DeleteSession removes a session. Deleting an unknown session is not an error.
func DeleteSession(ctx context.Context, db *sql.DB, tokenHash string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired at or before now.
// Returns the number of sessions removed.
func DeleteExpiredSessions(ctx context.Context, db *sql.DB, now int64) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}
