package devserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/lunar-session/authmodel"
	"github.com/jrsteele09/lunar-session/client"
	"github.com/jrsteele09/lunar-session/devserver"
	"github.com/jrsteele09/lunar-session/internal/config"
	"github.com/jrsteele09/lunar-session/session"
	"github.com/jrsteele09/lunar-session/store/memory"
	"github.com/jrsteele09/lunar-session/token"
	"github.com/stretchr/testify/require"
)

type liveFixture struct {
	*testFixture
	url     string
	api     *client.Client
	store   *memory.Store
	manager *session.Manager
}

// setupLive serves the dev server over HTTP. Refresh requests are held for
// refreshDelay so concurrent callers overlap.
func setupLive(t *testing.T, refreshDelay time.Duration) *liveFixture {
	t.Helper()
	fx := setupTestFixture(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == devserver.RouteAuthRefresh {
			time.Sleep(refreshDelay)
		}
		fx.server.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	api := client.New(ts.URL, client.WithTimeout(5*time.Second))
	st := memory.New()
	manager, err := session.NewManager(config.New(), api, st)
	require.NoError(t, err)

	return &liveFixture{testFixture: fx, url: ts.URL, api: api, store: st, manager: manager}
}

func TestLive_LoginLogout(t *testing.T) {
	fx := setupLive(t, 0)
	ctx := context.Background()

	require.NoError(t, fx.manager.Login(ctx, testEmail, testPassword))
	snap := fx.manager.Snapshot()
	require.Equal(t, session.Authenticated, snap.State)
	require.Equal(t, fx.user.ID, snap.User.ID)

	rec, err := fx.store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, snap.AccessToken, rec.AccessToken)

	me, err := fx.api.Me(ctx, snap.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testEmail, me.Email)

	require.NoError(t, fx.manager.Logout(ctx))
	require.Equal(t, session.Anonymous, fx.manager.State())

	_, err = fx.api.Me(ctx, snap.AccessToken)
	require.True(t, client.IsStatus(err, http.StatusUnauthorized))
	_, err = fx.api.Refresh(ctx, snap.RefreshToken)
	require.ErrorIs(t, err, authmodel.ErrRefreshFailure)
}

func TestLive_WrongPassword(t *testing.T) {
	fx := setupLive(t, 0)

	err := fx.manager.Login(context.Background(), testEmail, "not-the-password")
	require.ErrorIs(t, err, authmodel.ErrInvalidCredentials)
	require.Equal(t, session.Anonymous, fx.manager.State())
	require.NotEmpty(t, fx.manager.Snapshot().Error)
}

func TestLive_ConcurrentRefreshSharesOneExchange(t *testing.T) {
	fx := setupLive(t, 100*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, fx.manager.Login(ctx, testEmail, testPassword))
	before := fx.manager.Snapshot()

	results := make([]bool, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fx.manager.Refresh(ctx)
		}(i)
	}
	wg.Wait()

	require.Equal(t, []bool{true, true}, results)
	require.Equal(t, int64(1), fx.server.RefreshExchanges())

	after := fx.manager.Snapshot()
	require.Equal(t, session.Authenticated, after.State)
	require.NotEqual(t, before.RefreshToken, after.RefreshToken)

	// The rotated-out refresh token is dead.
	_, err := fx.api.Refresh(ctx, before.RefreshToken)
	require.ErrorIs(t, err, authmodel.ErrRefreshFailure)
}

func TestLive_SchedulerRefreshesShortLivedTokens(t *testing.T) {
	t.Setenv("LUNAR_DEV_ACCESS_TOKEN_EXPIRY", "4m")
	t.Setenv("LUNAR_CHECK_INTERVAL", "20ms")
	fx := setupLive(t, 0)
	ctx := context.Background()

	require.NoError(t, fx.manager.Login(ctx, testEmail, testPassword))
	first := fx.manager.Snapshot().RefreshToken
	require.True(t, fx.manager.IsExpiringSoon())

	scheduler := fx.manager.StartAutoRefresh(ctx)
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		return fx.server.RefreshExchanges() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		s := fx.manager.Snapshot()
		return s.State == session.Authenticated && s.RefreshToken != first
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLive_AuthTransportRetriesAfterRevocation(t *testing.T) {
	fx := setupLive(t, 0)
	ctx := context.Background()
	require.NoError(t, fx.manager.Login(ctx, testEmail, testPassword))

	claims, err := token.Decode(fx.manager.Snapshot().AccessToken)
	require.NoError(t, err)
	fx.server.Revoke(claims.ID, claims.ExpiresAt)

	httpClient := client.NewAuthClient(fx.manager.TokenSource(), fx.manager.HandleUnauthorized)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fx.url+client.MePath, nil)
	require.NoError(t, err)

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(1), fx.server.RefreshExchanges())
	require.Equal(t, session.Authenticated, fx.manager.State())
}

func TestLive_RestoreFromSharedStore(t *testing.T) {
	fx := setupLive(t, 0)
	ctx := context.Background()
	require.NoError(t, fx.manager.Login(ctx, testEmail, testPassword))

	other, err := session.NewManager(config.New(), fx.api, fx.store)
	require.NoError(t, err)
	require.NoError(t, other.Restore(ctx))
	require.Equal(t, session.Authenticated, other.State())
	require.True(t, other.CheckAuth(ctx))
	require.Equal(t, fx.manager.Snapshot().AccessToken, other.Snapshot().AccessToken)
}

func TestLive_TwoProcessesRefreshingOneSharedPair(t *testing.T) {
	fx := setupTestFixture(t)
	ctx := context.Background()
	shared := memory.New()

	// The first refresh to arrive is held until the other manager has stored
	// its rotated pair, so it presents a token that was already consumed.
	var refreshes atomic.Int32
	firstArrived := make(chan struct{})
	var original string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == devserver.RouteAuthRefresh && refreshes.Add(1) == 1 {
			close(firstArrived)
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if rec, err := shared.Load(r.Context()); err == nil && rec != nil && rec.RefreshToken != original {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
		}
		fx.server.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	api := client.New(ts.URL, client.WithTimeout(10*time.Second))
	first, err := session.NewManager(config.New(), api, shared)
	require.NoError(t, err)
	second, err := session.NewManager(config.New(), api, shared)
	require.NoError(t, err)

	require.NoError(t, first.Login(ctx, testEmail, testPassword))
	require.NoError(t, second.Restore(ctx))
	original = first.Snapshot().RefreshToken

	loserDone := make(chan bool, 1)
	go func() { loserDone <- second.Refresh(ctx) }()
	<-firstArrived

	require.True(t, first.Refresh(ctx))
	require.True(t, <-loserDone, "the slower process adopts the stored pair")

	stored, err := shared.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored, "the rotated pair survives the rejected refresh")
	require.NotEqual(t, original, stored.RefreshToken)

	for _, m := range []*session.Manager{first, second} {
		s := m.Snapshot()
		require.Equal(t, session.Authenticated, s.State)
		require.Equal(t, stored.RefreshToken, s.RefreshToken)
	}
	require.Equal(t, int64(2), fx.server.RefreshExchanges())

	// The adopted pair is live on the server.
	_, err = api.Me(ctx, second.Snapshot().AccessToken)
	require.NoError(t, err)
}
