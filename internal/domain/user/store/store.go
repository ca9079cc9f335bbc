package store

import (
	"context"
	"errors"
	"time"

	"nodeuser-server-go/internal/domain/user/model"
)

// Sentinel errors shared by every backend. Callers match them with errors.Is.
var (
	// ErrNotFound signals that no user matched the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrConflict signals a username or email uniqueness violation.
	ErrConflict = errors.New("user already exists")
)

// Store defines the credential store contract consumed by the auth manager.
// Sessions are part of the owning user record; the session operations mutate
// that record rather than an independent table of their own.
type Store interface {
	Insert(ctx context.Context, user model.User) error
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)

	// FindBySession matches only when the full (token, ip, browser) triple
	// equals a stored session. A token alone never authenticates.
	FindBySession(ctx context.Context, token, ip, browser string) (model.User, error)

	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user model.User) error
	Delete(ctx context.Context, id string) error

	// AddSession appends the session with set semantics: an identical
	// (token, ip, browser) triple is never stored twice.
	AddSession(ctx context.Context, userID string, session model.Session) error

	// RemoveSessionsByFingerprint drops every session of the user matching
	// the (ip, browser) pair. Absence of matches is not an error.
	RemoveSessionsByFingerprint(ctx context.Context, userID, ip, browser string) error

	// RemoveSessionByToken drops the session holding the token, whichever
	// user owns it, and reports whether a session was removed.
	RemoveSessionByToken(ctx context.Context, token string) (bool, error)

	SetResetCode(ctx context.Context, userID, code string) error
	SetLastLogin(ctx context.Context, userID string, at time.Time) error

	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
	SQLite *SQLiteConfig
}

// SQLiteConfig provides the database dependency parameters.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
