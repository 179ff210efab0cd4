// Package devserver is a small LunarBase-compatible auth API for local
// development and integration tests. It issues HS256 access tokens and
// single-use refresh tokens.
package devserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/lunar-session/internal/config"
	"github.com/jrsteele09/lunar-session/token/jwt"
	"github.com/jrsteele09/lunar-session/token/refresh"
	"github.com/jrsteele09/lunar-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Repos holds the storage the server works on.
type Repos struct {
	Users         users.UserRepo
	RefreshTokens refresh.Repo
}

type Server struct {
	env       string
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	repos     Repos
	creator   *jwt.Creator
	inspector *jwt.Inspector
	refresh   *refresh.Manager
	revoked   *revocationList
	logger    zerolog.Logger

	refreshExchanges atomic.Int64
}

func New(cfg config.Config, repos Repos) (*Server, error) {
	if repos.Users == nil {
		return nil, fmt.Errorf("[devserver.New] Users repo is required")
	}
	if repos.RefreshTokens == nil {
		return nil, fmt.Errorf("[devserver.New] RefreshTokens repo is required")
	}

	key, err := jwt.NewSigningKey(cfg.GetSigningSecret())
	if err != nil {
		return nil, fmt.Errorf("[devserver.New] %w", err)
	}
	revoked := newRevocationList(func() time.Time { return jwt.NowTimeFunc() })

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		repos:     repos,
		creator:   jwt.NewCreator(cfg, key),
		inspector: jwt.NewInspector(key, revoked),
		refresh:   refresh.NewManager(repos.RefreshTokens, cfg),
		revoked:   revoked,
		logger:    log.With().Str("component", "devserver").Logger(),
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// RefreshExchanges returns how many refresh requests the server has handled.
func (s *Server) RefreshExchanges() int64 {
	return s.refreshExchanges.Load()
}

// Revoke marks an access token id as revoked until exp.
func (s *Server) Revoke(jti string, exp time.Time) {
	s.revoked.revoke(jti, exp)
}

// Run serves on addr until ctx is done, then shuts down gracefully. Expired
// revocations and refresh tokens are purged once a minute.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Dev server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server.ListenAndServe %w", err)
		}
		close(errCh)
	}()

	cleanup := time.NewTicker(time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-cleanup.C:
			s.purge()
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server.Shutdown: %w", err)
			}
			return nil
		}
	}
}

// purge drops expired revocations and refresh tokens.
func (s *Server) purge() {
	revoked := s.revoked.purge()
	removed, err := s.refresh.Purge()
	if err != nil {
		log.Err(err).Msg("Failed to purge expired refresh tokens")
	}
	s.logger.Debug().Int("revoked", revoked).Int("refresh_tokens_removed", removed).Msg("Purged expired tokens")
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logger.Debug().Str("method", colouredMethod(parts[0])).Str("path", parts[1]).Msg("Route")
		} else {
			s.logger.Debug().Str("path", parts[0]).Msg("Route")
		}
	}
}
