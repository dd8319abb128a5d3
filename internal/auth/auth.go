// Package auth registers users, verifies passwords and resolves session tokens
// into the Identity that every item operation is scoped to.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/hpungsan/readlater/internal/db"
	"github.com/hpungsan/readlater/internal/errors"
)

const (
	// MinPasswordLen is the shortest accepted password.
	MinPasswordLen = 8

	// maxPasswordLen is bcrypt's input limit in bytes.
	maxPasswordLen = 72

	tokenBytes = 32
)

// BcryptCost is the hashing cost for new passwords. Tests lower it.
var BcryptCost = bcrypt.DefaultCost

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Session is an issued bearer token and who it belongs to.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

// RegisterInput contains the new account's fields.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput contains credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Register creates an account and signs it in.
func Register(ctx context.Context, database *sql.DB, ttl time.Duration, input RegisterInput) (*Session, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidField("name", "is required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < MinPasswordLen {
		return nil, errors.NewInvalidField("password", "must be at least 8 characters")
	}
	if len(input.Password) > maxPasswordLen {
		return nil, errors.NewInvalidField("password", "must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), BcryptCost)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	user := &db.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().Unix(),
	}
	if err := db.InsertUser(ctx, database, user); err != nil {
		return nil, err
	}

	return startSession(ctx, database, ttl, user)
}

// Login verifies credentials and issues a session.
// Unknown email and wrong password produce the same error.
func Login(ctx context.Context, database *sql.DB, ttl time.Duration, input LoginInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, errors.NewInvalidRequest("email and password are required")
	}

	user, err := db.GetUserByEmail(ctx, database, email)
	if err == db.ErrUserNotFound {
		return nil, errors.NewUnauthorized("invalid email or password")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, errors.NewUnauthorized("invalid email or password")
	}

	return startSession(ctx, database, ttl, user)
}

// Logout revokes a token. Unknown tokens are ignored.
func Logout(ctx context.Context, database *sql.DB, token string) error {
	if token == "" {
		return nil
	}
	return db.DeleteSession(ctx, database, hashToken(token))
}

// Authenticate resolves a bearer token into an Identity.
func Authenticate(ctx context.Context, database *sql.DB, token string) (Identity, error) {
	if token == "" {
		return Identity{}, errors.NewUnauthorized("sign in required")
	}

	session, err := db.GetSession(ctx, database, hashToken(token))
	if err == db.ErrSessionNotFound {
		return Identity{}, errors.NewUnauthorized("session is invalid or expired")
	}
	if err != nil {
		return Identity{}, err
	}
	if session.ExpiresAt <= time.Now().Unix() {
		_ = db.DeleteSession(ctx, database, session.TokenHash)
		return Identity{}, errors.NewUnauthorized("session is invalid or expired")
	}

	user, err := db.GetUserByID(ctx, database, session.UserID)
	if err == db.ErrUserNotFound {
		return Identity{}, errors.NewUnauthorized("session is invalid or expired")
	}
	if err != nil {
		return Identity{}, err
	}
	return identityOf(user), nil
}

// IdentityForEmail resolves an account without a password.
// Used by local surfaces (CLI, MCP) that act as a configured user.
func IdentityForEmail(ctx context.Context, database *sql.DB, email string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Identity{}, errors.NewUnauthorized("no user configured")
	}
	user, err := db.GetUserByEmail(ctx, database, email)
	if err == db.ErrUserNotFound {
		return Identity{}, errors.NewUnauthorized("unknown user: " + email)
	}
	if err != nil {
		return Identity{}, err
	}
	return identityOf(user), nil
}

// PurgeExpired removes expired sessions and returns how many were removed.
func PurgeExpired(ctx context.Context, database *sql.DB) (int64, error) {
	return db.DeleteExpiredSessions(ctx, database, time.Now().Unix())
}

func startSession(ctx context.Context, database *sql.DB, ttl time.Duration, user *db.User) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now()
	expires := now.Add(ttl)
	err = db.InsertSession(ctx, database, &db.Session{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: expires.Unix(),
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, ExpiresAt: expires, Identity: identityOf(user)}, nil
}

func identityOf(u *db.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Name: u.Name}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", errors.NewInvalidField("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.NewInvalidField("email", "is not a valid email address")
	}
	return email, nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken is the form of a token kept in the sessions table.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
