package driven

import "time"

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Compare returns domain.ErrInvalidCredentials on mismatch.
	Compare(hash, password string) error
}

// TokenClaims is the payload of a session token.
type TokenClaims struct {
	UserID    string
	Username  string
	SessionID string
	ExpiresAt time.Time
}

// TokenSigner issues and verifies signed session tokens.
type TokenSigner interface {
	Sign(claims TokenClaims) (string, error)

	// Verify returns domain.ErrUnauthorized for any invalid, expired or forged token.
	Verify(token string) (*TokenClaims, error)
}
