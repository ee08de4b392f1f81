package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

// Ensure JWTSigner implements the interface.
var _ driven.TokenSigner = (*JWTSigner)(nil)

// Issuer is written to and required in every token.
const Issuer = "nexus"

// claims is the wire form of driven.TokenClaims.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTSigner signs session tokens with HMAC-SHA256.
type JWTSigner struct {
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewJWTSigner creates a signer. The secret must not be empty.
func NewJWTSigner(secret string) (*JWTSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: jwt secret is empty", domain.ErrValidation)
	}
	s := &JWTSigner{secret: []byte(secret), now: time.Now}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// Sign issues a token for the claims.
func (s *JWTSigner) Sign(c driven.TokenClaims) (string, error) {
	if c.UserID == "" || c.SessionID == "" {
		return "", fmt.Errorf("%w: token needs a user and a session", domain.ErrValidation)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: c.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   c.UserID,
			ID:        c.SessionID,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	})
	return token.SignedString(s.secret)
}

// Verify parses and validates a token.
func (s *JWTSigner) Verify(token string) (*driven.TokenClaims, error) {
	var c claims
	_, err := s.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if c.Subject == "" || c.ID == "" {
		return nil, fmt.Errorf("%w: token missing subject or id", domain.ErrUnauthorized)
	}

	out := &driven.TokenClaims{
		UserID:    c.Subject,
		Username:  c.Username,
		SessionID: c.ID,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
