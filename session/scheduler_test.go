package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/lunar-session/authmodel"
	"github.com/jrsteele09/lunar-session/session"
	"github.com/stretchr/testify/require"
)

const tick = 10 * time.Millisecond

func TestScheduler_RefreshesExpiringToken(t *testing.T) {
	fx := newFixture(t, testConfig{interval: tick})
	fx.api.set(func(f *fakeAPI) { f.accessTTL = 4 * time.Minute })
	fx.login(t)
	before := fx.manager.Snapshot()
	fx.api.set(func(f *fakeAPI) { f.accessTTL = 15 * time.Minute })

	sched := fx.manager.StartAutoRefresh(context.Background())
	defer sched.Stop()

	require.Eventually(t, func() bool {
		_, refresh, _ := fx.api.calls()
		return refresh == 1 && fx.manager.State() == session.Authenticated
	}, time.Second, tick)

	after := fx.manager.Snapshot()
	require.True(t, after.IsAuthenticated)
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.NotEqual(t, before.RefreshToken, after.RefreshToken)
	require.Equal(t, after.RefreshToken, fx.stored(t).RefreshToken)

	// The new token has 15 minutes left, so later ticks leave it alone.
	time.Sleep(5 * tick)
	_, refresh, _ := fx.api.calls()
	require.Equal(t, 1, refresh)
}

func TestScheduler_RefreshFailureLogsOut(t *testing.T) {
	fx := newFixture(t, testConfig{interval: tick})
	fx.api.set(func(f *fakeAPI) { f.accessTTL = 4 * time.Minute })
	fx.login(t)
	fx.api.set(func(f *fakeAPI) { f.refreshErr = authmodel.ErrRefreshFailure })

	sched := fx.manager.StartAutoRefresh(context.Background())
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return fx.manager.State() == session.Anonymous
	}, time.Second, tick)
	require.False(t, fx.manager.IsAuthenticated())
	require.Nil(t, fx.store.Raw())
}

func TestScheduler_IdleWhileAnonymous(t *testing.T) {
	fx := newFixture(t, testConfig{interval: tick})
	sched := fx.manager.StartAutoRefresh(context.Background())
	defer sched.Stop()

	time.Sleep(5 * tick)
	_, refresh, _ := fx.api.calls()
	require.Zero(t, refresh)

	// Arms once a login happens.
	fx.api.set(func(f *fakeAPI) { f.accessTTL = time.Minute })
	fx.login(t)
	require.Eventually(t, func() bool {
		_, refresh, _ := fx.api.calls()
		return refresh > 0
	}, time.Second, tick)
}

func TestScheduler_Stop(t *testing.T) {
	fx := newFixture(t, testConfig{interval: tick})
	fx.login(t)

	sched := fx.manager.StartAutoRefresh(context.Background())
	sched.Stop()
	sched.Stop()

	select {
	case <-sched.Done():
	default:
		t.Fatal("scheduler still running after Stop")
	}

	// Nothing runs after Stop even when the token is expiring.
	fx.api.set(func(f *fakeAPI) { f.accessTTL = time.Minute })
	fx.login(t)
	time.Sleep(5 * tick)
	_, refresh, _ := fx.api.calls()
	require.Zero(t, refresh)
}

func TestScheduler_StopsWithContext(t *testing.T) {
	fx := newFixture(t, testConfig{interval: tick})
	ctx, cancel := context.WithCancel(context.Background())
	sched := fx.manager.StartAutoRefresh(ctx)
	cancel()

	select {
	case <-sched.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not exit on context cancel")
	}
}
