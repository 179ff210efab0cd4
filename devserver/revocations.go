package devserver

import (
	"sync"
	"time"
)

// revocationList holds the ids of access tokens revoked by logout. An entry
// is only needed until the token it names expires on its own.
type revocationList struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func newRevocationList(now func() time.Time) *revocationList {
	return &revocationList{expires: make(map[string]time.Time), now: now}
}

func (l *revocationList) revoke(jti string, exp time.Time) {
	if jti == "" || !exp.After(l.now()) {
		return
	}
	l.mu.Lock()
	l.expires[jti] = exp
	l.mu.Unlock()
}

// IsRevoked satisfies jwt.RevokedChecker.
func (l *revocationList) IsRevoked(jti string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.expires[jti]
	return ok
}

// purge drops entries whose tokens have expired and returns how many remain.
func (l *revocationList) purge() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for jti, exp := range l.expires {
		if !exp.After(now) {
			delete(l.expires, jti)
		}
	}
	return len(l.expires)
}
