package httphandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie consulted when no Authorization header is sent.
const SessionCookie = "session"

// ErrNoSession is returned when a request carries no session token.
var ErrNoSession = errors.New("no session token")

type sessionKey struct{}

// SessionSubject returns the subject of the verified session, or "".
func SessionSubject(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey{}).(string); ok {
		return v
	}
	return ""
}

// SessionVerifier checks HS256 session tokens. Issuing tokens is left to the
// deployment's identity provider.
type SessionVerifier struct {
	secret []byte
}

// NewSessionVerifier creates a verifier for tokens signed with secret.
func NewSessionVerifier(secret []byte) *SessionVerifier {
	return &SessionVerifier{secret: secret}
}

// Verify parses raw and returns its claims when the signature and the time
// based claims are valid.
func (v *SessionVerifier) Verify(raw string) (*jwt.RegisteredClaims, error) {
	if raw == "" {
		return nil, ErrNoSession
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	return claims, nil
}

// RequireSession rejects requests without a valid session with a bare 401.
func RequireSession(v *SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Verify(sessionToken(r))
			if err != nil {
				logger.Debug("session rejected", "path", r.URL.Path, "error", err)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionToken extracts the token from a Bearer Authorization header, falling
// back to the session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
