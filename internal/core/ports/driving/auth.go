package driving

import (
	"context"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// AuthService manages accounts and resolves credentials into identities.
type AuthService interface {
	// Register creates an account. Returns domain.ErrAlreadyExists if the
	// username is taken and domain.ErrValidation for empty fields.
	Register(ctx context.Context, username, password string) (*domain.User, error)

	// Login verifies a password and issues a session token.
	Login(ctx context.Context, username, password string) (*domain.Token, error)

	// Resolve turns a credential into an identity or domain.ErrUnauthorized.
	Resolve(ctx context.Context, credential string) (*domain.Identity, error)

	// Logout revokes the session behind a credential.
	Logout(ctx context.Context, credential string) error
}
