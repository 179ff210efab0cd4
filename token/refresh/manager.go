package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/lunar-session/internal/config"
	interrors "github.com/jrsteele09/lunar-session/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	config config.DevServerConfig
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, cfg config.DevServerConfig) *Manager {
	return &Manager{
		repo:   repo,
		config: cfg,
	}
}

// Create generates a new refresh token and stores it
func (m *Manager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, m.config.GetRefreshTokenLength())
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	now := NowTimeFunc()
	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:     tokenStr,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.config.GetRefreshTokenExpiry()),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

// Rotate consumes token and issues a replacement for the same user. A token
// can be rotated exactly once; presenting it again fails.
func (m *Manager) Rotate(token string) (userID, replacement string, err error) {
	stored, err := m.repo.Take(token)
	if err != nil {
		return "", "", interrors.Wrapf(interrors.ErrInvalidRefreshToken, "rotate")
	}
	if m.IsExpired(stored) {
		return "", "", interrors.Wrapf(interrors.ErrRefreshTokenExpired, "rotate")
	}

	replacement, err = m.Create(stored.UserID)
	if err != nil {
		return "", "", err
	}
	return stored.UserID, replacement, nil
}

// Get retrieves a refresh token from storage
func (m *Manager) Get(token string) (*StoredRefreshToken, error) {
	return m.repo.Get(token)
}

// Delete removes a refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// Purge removes expired refresh tokens from storage.
func (m *Manager) Purge() (int, error) {
	return m.repo.DeleteExpired(NowTimeFunc())
}

// IsExpired checks if a refresh token is past its expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return !NowTimeFunc().Before(rt.ExpiresAt)
}
