package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// UserStore persists user accounts and their storage counters.
type UserStore interface {
	// CreateUser inserts a new user. Returns domain.ErrAlreadyExists if the
	// username is taken.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// ListUserIDs returns every user ID, used to rebuild the index on startup.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// SessionStore records issued sessions so they can be revoked.
type SessionStore interface {
	// SaveSession records a new session.
	SaveSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// RevokeSession marks a session as revoked. Revoking twice is a no-op.
	RevokeSession(ctx context.Context, id string, at time.Time) error

	// DeleteExpired removes sessions that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
