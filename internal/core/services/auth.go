package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/core/ports/driving"
	"github.com/custodia-labs/nexus/internal/logger"
)

// Ensure AuthService implements the interface.
var _ driving.AuthService = (*AuthService)(nil)

// maxUsernameLength bounds usernames in runes.
const maxUsernameLength = 64

// AuthService registers users, issues session tokens and resolves them
// back into identities.
type AuthService struct {
	users    driven.UserStore
	sessions driven.SessionStore
	hasher   driven.PasswordHasher
	signer   driven.TokenSigner
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService creates an auth service. Sessions live for ttl.
func NewAuthService(
	users driven.UserStore,
	sessions driven.SessionStore,
	hasher driven.PasswordHasher,
	signer driven.TokenSigner,
	ttl time.Duration,
) *AuthService {
	if ttl <= 0 {
		ttl = domain.DefaultSettings().Auth.SessionTTL
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		signer:   signer,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Register creates an account with zero storage used.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username longer than %d characters", domain.ErrValidation, maxUsernameLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	logger.Info("Registered user %s (%s)", user.Username, user.ID)
	return user, nil
}

// Login verifies the password and opens a new session. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Token, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	value, err := s.signer.Sign(driven.TokenClaims{
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	logger.Debug("Opened session %s for user %s", session.ID, user.ID)
	return &domain.Token{Value: value, ExpiresAt: session.ExpiresAt}, nil
}

// Resolve verifies a token and its session. Every failure is reported as
// domain.ErrUnauthorized.
func (s *AuthService) Resolve(ctx context.Context, credential string) (*domain.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, domain.ErrUnauthorized
	}

	claims, err := s.signer.Verify(credential)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Session lookup failed: %v", err)
		}
		return nil, domain.ErrUnauthorized
	}
	if session.UserID != claims.UserID || !session.Active(s.now()) {
		return nil, domain.ErrUnauthorized
	}

	return &domain.Identity{
		UserID:    claims.UserID,
		Username:  claims.Username,
		SessionID: session.ID,
	}, nil
}

// Logout revokes the session behind a credential.
func (s *AuthService) Logout(ctx context.Context, credential string) error {
	identity, err := s.Resolve(ctx, credential)
	if err != nil {
		return err
	}
	if err := s.sessions.RevokeSession(ctx, identity.SessionID, s.now().UTC()); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	logger.Debug("Revoked session %s for user %s", identity.SessionID, identity.UserID)
	return nil
}

// PurgeSessions deletes sessions that expired before now.
func (s *AuthService) PurgeSessions(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}
