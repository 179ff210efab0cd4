package refresh

import (
	"time"
)

// StoredRefreshToken represents the server-side storage of refresh token metadata.
// The client only receives the Token field (a random string).
type StoredRefreshToken struct {
	Token     string    // The actual random token string (sent to client)
	UserID    string    // Server-side metadata
	IssuedAt  time.Time // Server-side metadata (issued at time)
	ExpiresAt time.Time // Server-side metadata (hard expiry)
}

// Repo manages server-side storage of refresh token metadata, keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	// Take atomically removes and returns a token, making each token single-use.
	Take(token string) (*StoredRefreshToken, error)
	// DeleteExpired removes every token whose expiry is not after now and
	// reports how many were removed.
	DeleteExpired(now time.Time) (int, error)
}
