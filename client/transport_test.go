package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/lunar-session/client"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// rotatingSource hands out "token-N", advancing N on rotate.
type rotatingSource struct {
	mu sync.Mutex
	n  int
}

func (s *rotatingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &oauth2.Token{AccessToken: "token-" + string(rune('0'+s.n)), TokenType: "Bearer"}, nil
}

func (s *rotatingSource) rotate(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return true
}

func TestAuthTransport_RetriesOnceAfterUnauthorized(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization")+"|"+string(body))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	src := &rotatingSource{}
	hc := client.NewAuthClient(src, src.rotate)

	resp, err := hc.Post(srv.URL+"/api/collections", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{`Bearer token-0|{"a":1}`, `Bearer token-1|{"a":1}`}, seen)
}

func TestAuthTransport_GivesUpWhenRefreshFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	hc := &http.Client{Transport: &client.AuthTransport{
		Source:       oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "stale"}),
		Unauthorized: func(context.Context) bool { return false },
	}}
	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(1), calls.Load())
}

func TestAuthTransport_TokenSourceError(t *testing.T) {
	hc := &http.Client{Transport: &client.AuthTransport{Source: failingSource{}}}
	_, err := hc.Get("http://127.0.0.1:1/")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not signed in")
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, errors.New("not signed in") }
