// Package auth issues and checks member sessions.
//
// SESSION FLOW:
//  1. A member signs up or logs in (e-mail + optional PIN), or an admin signs
//     in with Google.
//  2. The server issues a signed JWT carrying the member ID and role.
//  3. Browsers get it in an HttpOnly "token" cookie; the CLI keeps it in its
//     identity file and sends it as "Authorization: Bearer <jwt>".
//  4. Middleware validates the token and puts the claims in the request
//     context.
//
// The role lives in the token so admin checks need no DB lookup. A demoted
// admin keeps admin rights until their token expires (TokenTTL).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vibeteen/vibe-teen/internal/model"
)

const issuer = "vibe-teen"

// TokenTTL is how long a member session lasts. Members come back every
// Sunday, so a month avoids re-typing the e-mail every week.
const TokenTTL = 30 * 24 * time.Hour

// TokenService signs and validates session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: TokenTTL}, nil
}

// Claims is the validated content of a session token.
type Claims struct {
	MemberID string
	Role     model.Role
}

// IsAdmin reports whether the token grants admin routes.
func (c Claims) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// claims is the JWT payload: "sub" holds the member ID, "role" the role.
type claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Generate signs a session token for the member with the default lifetime.
func (s *TokenService) Generate(memberID string, role model.Role) (string, error) {
	return s.GenerateWithDuration(memberID, role, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(memberID string, role model.Role, d time.Duration) (string, error) {
	if memberID == "" {
		return "", errors.New("auth: empty member ID")
	}
	if role == "" {
		role = model.RoleUser
	}
	now := time.Now()

	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token: HS256 only, our issuer, not expired,
// with a subject.
func (s *TokenService) Validate(tokenStr string) (Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("auth: token expired")
		}
		return Claims{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Claims{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Claims{}, fmt.Errorf("auth: token has no subject")
	}

	role := c.Role
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	return Claims{MemberID: c.Subject, Role: role}, nil
}
