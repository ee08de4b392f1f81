package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

// UsageLoader reads a user's committed usage. driven.DocumentStore satisfies it.
type UsageLoader interface {
	GetUsage(ctx context.Context, userID string) (int64, error)
}

var _ UsageLoader = (driven.DocumentStore)(nil)

type userQuota struct {
	mu        sync.Mutex
	loaded    bool
	committed int64
	pending   int64
}

// QuotaEnforcer keeps committed + pending bytes per user at or below the
// ceiling. Checks and reservations for one user are serialised; different
// users never contend.
type QuotaEnforcer struct {
	limit  int64
	loader UsageLoader

	mu    sync.Mutex
	users map[string]*userQuota
}

// NewQuotaEnforcer creates an enforcer with the given per-user ceiling.
func NewQuotaEnforcer(limit int64, loader UsageLoader) *QuotaEnforcer {
	if limit <= 0 {
		limit = domain.DefaultQuotaBytes
	}
	return &QuotaEnforcer{
		limit:  limit,
		loader: loader,
		users:  make(map[string]*userQuota),
	}
}

// Limit returns the per-user ceiling in bytes.
func (q *QuotaEnforcer) Limit() int64 {
	return q.limit
}

func (q *QuotaEnforcer) user(userID string) *userQuota {
	q.mu.Lock()
	defer q.mu.Unlock()
	u, ok := q.users[userID]
	if !ok {
		u = &userQuota{}
		q.users[userID] = u
	}
	return u
}

// load must be called with u.mu held.
func (q *QuotaEnforcer) load(ctx context.Context, userID string, u *userQuota) error {
	if u.loaded {
		return nil
	}
	if q.loader != nil {
		used, err := q.loader.GetUsage(ctx, userID)
		if err != nil {
			return fmt.Errorf("loading usage: %w", err)
		}
		u.committed = used
	}
	u.loaded = true
	return nil
}

// TryReserve sets aside size bytes for userID. It fails with
// *domain.QuotaExceededError, and changes nothing, if the reservation would
// take the user past the ceiling.
func (q *QuotaEnforcer) TryReserve(ctx context.Context, userID string, size int64) (*Reservation, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size", domain.ErrValidation)
	}

	u := q.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := q.load(ctx, userID, u); err != nil {
		return nil, err
	}

	used := u.committed + u.pending
	if used+size > q.limit {
		return nil, &domain.QuotaExceededError{
			UserID:    userID,
			Used:      used,
			Requested: size,
			Limit:     q.limit,
		}
	}
	u.pending += size

	return &Reservation{quota: u, size: size}, nil
}

// Used returns committed + pending bytes for a user.
func (q *QuotaEnforcer) Used(ctx context.Context, userID string) (int64, error) {
	u := q.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := q.load(ctx, userID, u); err != nil {
		return 0, err
	}
	return u.committed + u.pending, nil
}

// Credit returns size bytes to a user after a deletion.
func (q *QuotaEnforcer) Credit(userID string, size int64) {
	u := q.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.loaded {
		return
	}
	u.committed -= size
	if u.committed < 0 {
		u.committed = 0
	}
}

// Forget drops the cached counters for a user so the next reservation
// reloads them from the store.
func (q *QuotaEnforcer) Forget(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.users, userID)
}

// Reservation is a pending claim on quota. It must be finalised exactly
// once with Commit or Release.
type Reservation struct {
	quota *userQuota
	size  int64
	done  bool
}

// Size returns the reserved byte count.
func (r *Reservation) Size() int64 {
	return r.size
}

// Commit turns the pending bytes into committed usage.
func (r *Reservation) Commit() error {
	return r.finalise(true)
}

// Release returns the pending bytes unused.
func (r *Reservation) Release() error {
	return r.finalise(false)
}

func (r *Reservation) finalise(commit bool) error {
	u := r.quota
	u.mu.Lock()
	defer u.mu.Unlock()

	if r.done {
		return domain.ErrReservationFinalized
	}
	r.done = true

	u.pending -= r.size
	if commit {
		u.committed += r.size
	}
	return nil
}
