// Package auth issues and checks judgehub session tokens.
//
// A session is an HS256 JWT carrying the user id in "sub" and a unique
// "jti". Tokens are stateless except for revocation: logging out records the
// jti in a Revoker until the token would have expired anyway, and Validate
// consults it on every request.
//
// Clients present the token either as "Authorization: Bearer <jwt>" or in
// the HttpOnly "token" cookie set by the login and GitHub callback handlers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "judgehub"

var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenRevoked = errors.New("auth: token revoked")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims is the verified content of a session token.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// TokenService signs and verifies session tokens.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
}

// NewTokenService needs a secret of at least 16 characters. A nil revoker
// gets an in-process MemoryRevoker.
func NewTokenService(secret string, ttl time.Duration, revoker Revoker) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, revoker: revoker}, nil
}

// TTL is how long freshly issued tokens live. Handlers use it for cookie
// Max-Age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration issues a token that expires after d. Negative d is
// allowed and yields an already-expired token.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, algorithm and expiry. It does not
// consult the revoker; use Validate for request authentication.
func (s *TokenService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	rc, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if rc.Subject == "" || rc.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrInvalidToken)
	}

	return &Claims{
		UserID:    rc.Subject,
		TokenID:   rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}

// Validate returns the user id of a valid, unrevoked token.
func (s *TokenService) Validate(ctx context.Context, tokenStr string) (string, error) {
	c, err := s.Parse(tokenStr)
	if err != nil {
		return "", err
	}

	revoked, err := s.revoker.IsRevoked(ctx, c.TokenID)
	if err != nil {
		return "", fmt.Errorf("auth: checking revocation: %w", err)
	}
	if revoked {
		return "", ErrTokenRevoked
	}
	return c.UserID, nil
}

// Revoke blocks tokenStr until it expires. Expired tokens need no entry and
// are accepted silently.
func (s *TokenService) Revoke(ctx context.Context, tokenStr string) error {
	c, err := s.Parse(tokenStr)
	if errors.Is(err, ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.revoker.Revoke(ctx, c.TokenID, c.ExpiresAt)
}
