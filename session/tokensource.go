package session

import (
	"context"

	"github.com/jrsteele09/lunar-session/token"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	m *Manager
}

// TokenSource exposes the session's access token to oauth2-aware HTTP
// clients. An expiring token is refreshed before it is handed out.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return tokenSource{m: m}
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	if !ts.m.CheckAuth(context.Background()) {
		return nil, ErrNotAuthenticated
	}
	s := ts.m.Snapshot()
	if !s.IsAuthenticated {
		return nil, ErrNotAuthenticated
	}

	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
	}
	if exp, err := token.DecodeExpiry(s.AccessToken); err == nil {
		tok.Expiry = exp
	}
	return tok, nil
}
