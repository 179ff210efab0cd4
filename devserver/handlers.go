package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/lunar-session/authmodel"
	interrors "github.com/jrsteele09/lunar-session/internal/errors"
	"github.com/jrsteele09/lunar-session/token/jwt"
	"github.com/jrsteele09/lunar-session/users"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxBodyBytes    = 1 << 16
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	writeJSON(w, status, authmodel.ErrorResponse{Error: message, Fields: fields})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return false
	}
	return true
}

// issue creates a fresh token pair for user.
func (s *Server) issue(user *users.User, refreshToken string) (*authmodel.TokenResponse, error) {
	accessToken, exp, err := s.creator.CreateAccessToken(user)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		if refreshToken, err = s.refresh.Create(user.ID); err != nil {
			return nil, err
		}
	}
	return &authmodel.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(exp.Sub(jwt.NowTimeFunc()).Seconds()),
		User:         user.Public(),
	}, nil
}

// LoginHandler exchanges credentials for a token pair.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.Identifier = strings.TrimSpace(req.Identifier)

		if err := req.Validate(s.config.GetMinPasswordLength()); err != nil {
			var fe *authmodel.FieldError
			if !errors.As(err, &fe) {
				writeError(w, http.StatusBadRequest, err.Error(), nil)
				return
			}
			writeError(w, http.StatusBadRequest, "validation failed", map[string]string{string(fe.Field): fe.Message})
			return
		}

		user, err := s.repos.Users.GetByIdentifier(req.Identifier)
		if err != nil || user == nil || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
			s.logger.Info().Str("identifier", req.Identifier).Msg("Rejected login")
			writeError(w, http.StatusUnauthorized, interrors.ErrInvalidCredentials.Error(), nil)
			return
		}

		resp, err := s.issue(user, "")
		if err != nil {
			log.Err(err).Msg("Failed to issue tokens")
			writeError(w, http.StatusInternalServerError, interrors.ErrInternal.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// RefreshHandler rotates a refresh token. Each refresh token is accepted once.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.refreshExchanges.Add(1)

		var req authmodel.RefreshRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "refresh_token is required", nil)
			return
		}

		userID, replacement, err := s.refresh.Rotate(req.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}

		user, err := s.repos.Users.GetByID(userID)
		if err != nil {
			_ = s.refresh.Delete(replacement)
			writeError(w, http.StatusUnauthorized, interrors.ErrUserNotFound.Error(), nil)
			return
		}

		resp, err := s.issue(user, replacement)
		if err != nil {
			log.Err(err).Msg("Failed to issue tokens")
			writeError(w, http.StatusInternalServerError, interrors.ErrInternal.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// LogoutHandler deletes the refresh token and, when a valid bearer token is
// presented, revokes it as well. It succeeds for unknown tokens.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.RefreshRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.RefreshToken != "" {
			_ = s.refresh.Delete(req.RefreshToken)
		}

		if raw, err := bearerToken(r); err == nil {
			if claims, err := s.inspector.Verify(raw); err == nil && claims.JTI != "" {
				s.Revoke(claims.JTI, claims.ExpiresAt)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the user the bearer token belongs to.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, interrors.ErrInvalidToken.Error(), nil)
			return
		}
		user, err := s.repos.Users.GetByID(claims.Subject)
		if err != nil {
			writeError(w, http.StatusNotFound, interrors.ErrUserNotFound.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, user.Public())
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}
