package refresh_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/lunar-session/internal/config"
	interrors "github.com/jrsteele09/lunar-session/internal/errors"
	"github.com/jrsteele09/lunar-session/token/refresh"
	refreshrepofake "github.com/jrsteele09/lunar-session/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func TestManager_RotateIsSingleUse(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m := refresh.NewManager(repo, config.New())

	first, err := m.Create("user-1")
	require.NoError(t, err)
	require.Len(t, first, 64)

	userID, second, err := m.Rotate(first)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
	require.NotEqual(t, first, second)

	_, _, err = m.Rotate(first)
	require.ErrorIs(t, err, interrors.ErrInvalidRefreshToken)

	_, err = m.Get(second)
	require.NoError(t, err)
}

func TestManager_RotateExpired(t *testing.T) {
	now := time.Now()
	refresh.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { refresh.NowTimeFunc = time.Now })

	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), config.New())
	tok, err := m.Create("user-1")
	require.NoError(t, err)

	now = now.Add(8 * 24 * time.Hour)
	_, _, err = m.Rotate(tok)
	require.ErrorIs(t, err, interrors.ErrRefreshTokenExpired)

	// The expired token was still consumed.
	_, err = m.Get(tok)
	require.Error(t, err)
}

func TestManager_Purge(t *testing.T) {
	now := time.Now()
	refresh.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { refresh.NowTimeFunc = time.Now })

	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), config.New())
	old, err := m.Create("a")
	require.NoError(t, err)

	now = now.Add(6 * 24 * time.Hour)
	fresh, err := m.Create("b")
	require.NoError(t, err)

	now = now.Add(2 * 24 * time.Hour)
	removed, err := m.Purge()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = m.Get(old)
	require.Error(t, err)
	_, err = m.Get(fresh)
	require.NoError(t, err)
}
