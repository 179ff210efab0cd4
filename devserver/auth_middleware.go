package devserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	interrors "github.com/jrsteele09/lunar-session/internal/errors"
	"github.com/jrsteele09/lunar-session/token/jwt"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyClaims stores the verified access token claims
const ContextKeyClaims ContextKey = "claims"

// ClaimsFromContext returns the claims RequireAuth stored on the request.
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*jwt.AccessClaims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// RequireAuth is middleware that validates a Bearer access token
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error(), nil)
				return
			}

			claims, err := s.inspector.Verify(raw)
			if err != nil {
				msg := "invalid token"
				switch {
				case interrors.Is(err, interrors.ErrTokenExpired):
					msg = "token expired"
				case interrors.Is(err, interrors.ErrTokenRevoked):
					msg = "token revoked"
				}
				writeError(w, http.StatusUnauthorized, msg, nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}
