package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/core/ports/driving"
)

// Ensure UserService implements the interface.
var _ driving.UserService = (*UserService)(nil)

// UserService reports account information.
type UserService struct {
	users driven.UserStore
	docs  driven.DocumentStore
	limit int64
}

// NewUserService creates a user service reporting against the given quota.
func NewUserService(users driven.UserStore, docs driven.DocumentStore, limit int64) *UserService {
	return &UserService{users: users, docs: docs, limit: limit}
}

// Usage returns the user's committed storage and document count.
func (s *UserService) Usage(ctx context.Context, userID string) (*domain.Usage, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.ListDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.Usage{
		Username:          user.Username,
		TotalStorageBytes: user.TotalStorageBytes,
		QuotaBytes:        s.limit,
		DocumentCount:     len(docs),
	}, nil
}

// Lookup resolves a username for local tooling that acts on a user's
// behalf without a session.
func (s *UserService) Lookup(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	return s.users.GetUserByUsername(ctx, username)
}
