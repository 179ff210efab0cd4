package devserver

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/lunar-session/client"
)

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) APIMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chainedMiddleWare := []func(http.HandlerFunc) http.HandlerFunc{
		s.RequestIDMiddleware,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.CorsMiddleware,
		s.NoStoreMiddleware,
	}
	return append(chainedMiddleWare, mw...)
}

// RequestIDMiddleware makes sure every request carries an X-Request-ID and
// echoes it on the response.
func (s *Server) RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(client.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(client.RequestIDHeader, id)
		}
		w.Header().Set(client.RequestIDHeader, id)
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		event := s.logger.Debug()
		if rec.status >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Str("request_id", r.Header.Get(client.RequestIDHeader)).
			Msg("Request")
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				s.logger.Error().Interface("panic", rv).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
				writeError(w, http.StatusInternalServerError, "internal error", nil)
			}
		}()
		next(w, r)
	}
}

// NoStoreMiddleware keeps token responses out of caches.
func (s *Server) NoStoreMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next(w, r)
	}
}

func (s *Server) CorsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// No Origin header = same-origin request, no CORS headers needed
		if origin == "" {
			next(w, r)
			return
		}

		allowedOrigins := s.config.GetAllowedOrigins()
		isAllowed := allowedOrigins.IsAllowedOrigin(origin)
		isWildcard := allowedOrigins.IsAllowedOrigin("*")

		switch {
		case isAllowed:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		case isWildcard:
			// Don't set Allow-Credentials with wildcard
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		if r.Method == http.MethodOptions && (isAllowed || isWildcard) {
			w.Header().Set("Access-Control-Allow-Methods", s.config.GetAllowedMethods())
			w.Header().Set("Access-Control-Allow-Headers", s.config.GetAllowedHeaders())
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		next(w, r)
	}
}
