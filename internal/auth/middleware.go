package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	tokenKey  contextKey = "token"

	// CookieName is the HttpOnly cookie carrying the session token.
	CookieName = "token"
)

var errNoToken = errors.New("auth: no token presented")

// RequireAuth rejects requests without a valid, unrevoked token with 401.
// On success the user id and raw token are stored in the request context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, userID, err := authenticate(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), userID, raw)))
		})
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, userID, err := authenticate(r, tokens); err == nil {
				r = r.WithContext(withIdentity(r.Context(), userID, raw))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// TokenFromContext returns the raw token the request authenticated with.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey).(string)
	return tok, ok && tok != ""
}

// WithUserID returns ctx carrying userID, as RequireAuth would set it.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func withIdentity(ctx context.Context, userID, raw string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, tokenKey, raw)
}

// authenticate prefers the Authorization header over the cookie.
func authenticate(r *http.Request, tokens *TokenService) (raw, userID string, err error) {
	raw = bearerToken(r)
	if raw == "" {
		if c, cerr := r.Cookie(CookieName); cerr == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		return "", "", errNoToken
	}

	userID, err = tokens.Validate(r.Context(), raw)
	if err != nil {
		return "", "", err
	}
	return raw, userID, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
