package devserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRevocationList(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := newRevocationList(func() time.Time { return now })

	list.revoke("live", now.Add(10*time.Minute))
	list.revoke("stale", now.Add(-time.Minute))
	list.revoke("", now.Add(time.Minute))

	require.True(t, list.IsRevoked("live"))
	require.False(t, list.IsRevoked("stale"))
	require.Equal(t, 1, list.purge())

	now = now.Add(10 * time.Minute)
	require.Equal(t, 0, list.purge())
	require.False(t, list.IsRevoked("live"))
}
