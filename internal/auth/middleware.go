package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// CookieName is the session cookie set on browser logins.
const CookieName = "token"

// contextKey is unexported so no other package can read or shadow our values.
type contextKey string

const claimsKey contextKey = "claims"

var errNoToken = errors.New("auth: no token")

// RequireAuth rejects requests without a valid session with 401 and puts the
// claims in the context otherwise.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := extractClaims(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
		})
	}
}

// RequireAdmin is RequireAuth plus a role check: members get 403.
func RequireAdmin(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := extractClaims(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			if !c.IsAdmin() {
				writeAuthError(w, http.StatusForbidden, "forbidden", "admin access required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
		})
	}
}

// OptionalAuth attaches the claims when a valid token is present and lets the
// request through either way. The mural page and the live socket use it: an
// anonymous visitor can watch, only a member can post.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := extractClaims(r, tokens); err == nil {
				r = r.WithContext(WithClaims(r.Context(), c))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims stores claims in ctx. Exported for handler tests.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the session claims, or ok=false for anonymous
// requests.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok && c.MemberID != ""
}

// MemberIDFromContext is a shortcut for handlers that only need the ID.
func MemberIDFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	return c.MemberID, ok
}

// extractClaims reads the token from the Authorization header (CLI) or the
// session cookie (browser), in that order.
func extractClaims(r *http.Request, tokens *TokenService) (Claims, error) {
	tok := bearerToken(r)
	if tok == "" {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			return Claims{}, errNoToken
		}
		tok = cookie.Value
	}
	return tokens.Validate(tok)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `","message":"` + msg + `"}`))
}
