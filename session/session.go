package session

import (
	"github.com/jrsteele09/lunar-session/store"
	"github.com/jrsteele09/lunar-session/users"
)

// Session is a point-in-time copy of the authentication state.
type Session struct {
	State           State
	User            *users.User
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
	// Loading is true while a login, logout or refresh is in flight.
	Loading bool
	// Error is the last failure message. It is cleared when the next operation starts.
	Error string
}

func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// record is the persisted form of s.
func (s Session) record() *store.Record {
	return &store.Record{
		User:            s.User.Public(),
		IsAuthenticated: s.IsAuthenticated,
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
	}
}

// fromRecord rebuilds a session from storage. Records without a full
// credential pair yield an anonymous session.
func fromRecord(r *store.Record) Session {
	if !r.HasCredentials() || !r.IsAuthenticated {
		return Session{State: Anonymous}
	}
	return Session{
		State:           Authenticated,
		User:            r.User.Public(),
		AccessToken:     r.AccessToken,
		RefreshToken:    r.RefreshToken,
		IsAuthenticated: true,
	}
}
