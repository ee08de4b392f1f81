// Package memory provides in-memory implementations of the Nexus stores.
// They back the "memory" storage driver and are used by service tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

// Store holds users, sessions and documents behind one lock so that saving
// a document and charging its owner happen atomically.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*domain.User
	usernames map[string]string
	sessions  map[string]domain.Session
	documents map[string]map[string]storedDocument
}

type storedDocument struct {
	doc  domain.Document
	data []byte
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:     make(map[string]*domain.User),
		usernames: make(map[string]string),
		sessions:  make(map[string]domain.Session),
		documents: make(map[string]map[string]storedDocument),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// UserStore returns a UserStore backed by this store.
func (s *Store) UserStore() driven.UserStore { return &userStore{s} }

// SessionStore returns a SessionStore backed by this store.
func (s *Store) SessionStore() driven.SessionStore { return &sessionStore{s} }

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore { return &documentStore{s} }

// ==================== User Store ====================

type userStore struct{ s *Store }

var _ driven.UserStore = (*userStore)(nil)

func (u *userStore) CreateUser(_ context.Context, user *domain.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, taken := u.s.usernames[user.Username]; taken {
		return fmt.Errorf("user %q: %w", user.Username, domain.ErrAlreadyExists)
	}
	if _, taken := u.s.users[user.ID]; taken {
		return fmt.Errorf("user id %q: %w", user.ID, domain.ErrAlreadyExists)
	}
	stored := *user
	stored.TotalStorageBytes = 0
	u.s.users[user.ID] = &stored
	u.s.usernames[user.Username] = user.ID
	user.TotalStorageBytes = 0
	return nil
}

func (u *userStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (u *userStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u.s.mu.RLock()
	id, ok := u.s.usernames[username]
	u.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u.GetUser(ctx, id)
}

func (u *userStore) ListUserIDs(_ context.Context) ([]string, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	ids := make([]string, 0, len(u.s.users))
	for id := range u.s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ==================== Session Store ====================

type sessionStore struct{ s *Store }

var _ driven.SessionStore = (*sessionStore)(nil)

func (ss *sessionStore) SaveSession(_ context.Context, session *domain.Session) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	ss.s.sessions[session.ID] = *session
	return nil
}

func (ss *sessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()

	sess, ok := ss.s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sess, nil
}

func (ss *sessionStore) RevokeSession(_ context.Context, id string, at time.Time) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	sess, ok := ss.s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sess.RevokedAt == nil {
		sess.RevokedAt = &at
		ss.s.sessions[id] = sess
	}
	return nil
}

func (ss *sessionStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	n := 0
	for id, sess := range ss.s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(ss.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// ==================== Document Store ====================

type documentStore struct{ s *Store }

var _ driven.DocumentStore = (*documentStore)(nil)

func (d *documentStore) SaveDocument(_ context.Context, doc *domain.Document, data []byte, quota int64) (bool, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	user, ok := d.s.users[doc.UserID]
	if !ok {
		return false, fmt.Errorf("user %s: %w", doc.UserID, domain.ErrNotFound)
	}
	docs := d.s.documents[doc.UserID]
	if _, exists := docs[doc.ID]; exists {
		return false, nil
	}
	if user.TotalStorageBytes+doc.Size > quota {
		return false, &domain.QuotaExceededError{
			UserID:    doc.UserID,
			Used:      user.TotalStorageBytes,
			Requested: doc.Size,
			Limit:     quota,
		}
	}

	if docs == nil {
		docs = make(map[string]storedDocument)
		d.s.documents[doc.UserID] = docs
	}
	docs[doc.ID] = storedDocument{doc: *doc, data: append([]byte(nil), data...)}
	user.TotalStorageBytes += doc.Size
	return true, nil
}

func (d *documentStore) GetDocument(_ context.Context, userID, id string) (*domain.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	stored, ok := d.s.documents[userID][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := stored.doc
	return &doc, nil
}

func (d *documentStore) GetDocumentData(_ context.Context, userID, id string) ([]byte, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	stored, ok := d.s.documents[userID][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), stored.data...), nil
}

func (d *documentStore) ListDocuments(_ context.Context, userID string) ([]domain.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(d.s.documents[userID]))
	for _, stored := range d.s.documents[userID] {
		docs = append(docs, stored.doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (d *documentStore) DeleteDocument(_ context.Context, userID, id string) (*domain.Document, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	stored, ok := d.s.documents[userID][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(d.s.documents[userID], id)
	if user, ok := d.s.users[userID]; ok {
		user.TotalStorageBytes -= stored.doc.Size
		if user.TotalStorageBytes < 0 {
			user.TotalStorageBytes = 0
		}
	}
	doc := stored.doc
	return &doc, nil
}

func (d *documentStore) GetUsage(_ context.Context, userID string) (int64, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	user, ok := d.s.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return user.TotalStorageBytes, nil
}
