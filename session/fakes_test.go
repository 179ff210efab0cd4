package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/lunar-session/authmodel"
	"github.com/jrsteele09/lunar-session/session"
	"github.com/jrsteele09/lunar-session/store"
	"github.com/jrsteele09/lunar-session/store/memory"
	"github.com/jrsteele09/lunar-session/users"
	"github.com/stretchr/testify/require"
)

const (
	testIdentifier = "user@example.com"
	testPassword   = "password123"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var testUser = &users.User{ID: "user-1", Username: "user", Email: testIdentifier, Role: users.RoleEditor}

type testConfig struct {
	interval time.Duration
}

func (c testConfig) GetRefreshThreshold() time.Duration { return 5 * time.Minute }
func (c testConfig) GetMinPasswordLength() int          { return authmodel.DefaultMinPasswordLength }
func (c testConfig) GetCheckInterval() time.Duration {
	if c.interval == 0 {
		return time.Minute
	}
	return c.interval
}

func accessToken(t *testing.T, ttl time.Duration, jti string) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": testUser.ID,
		"exp": testNow.Add(ttl).Unix(),
		"jti": jti,
	})
	raw, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

// fakeAPI issues tokens that expire accessTTL after testNow.
type fakeAPI struct {
	t  *testing.T
	mu sync.Mutex

	accessTTL  time.Duration
	loginErr   error
	refreshErr error
	logoutErr  error
	// refreshGate, when set, holds Refresh until it is closed.
	refreshGate    chan struct{}
	refreshStarted chan struct{}

	loginCalls   int
	refreshCalls int
	logoutCalls  int
	seq          int
	// loggedOut lists the refresh tokens passed to Logout.
	loggedOut []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{t: t, accessTTL: 15 * time.Minute}
}

func (f *fakeAPI) pair() *authmodel.TokenResponse {
	f.seq++
	return &authmodel.TokenResponse{
		AccessToken:  accessToken(f.t, f.accessTTL, fmt.Sprintf("jti-%d", f.seq)),
		RefreshToken: fmt.Sprintf("refresh-%d", f.seq),
		User:         testUser,
	}
}

func (f *fakeAPI) Login(_ context.Context, req authmodel.LoginRequest) (*authmodel.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.pair(), nil
}

func (f *fakeAPI) Refresh(_ context.Context, refreshToken string) (*authmodel.TokenResponse, error) {
	f.mu.Lock()
	f.refreshCalls++
	gate, started := f.refreshGate, f.refreshStarted
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.pair(), nil
}

func (f *fakeAPI) Logout(_ context.Context, _, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	f.loggedOut = append(f.loggedOut, refreshToken)
	return f.logoutErr
}

func (f *fakeAPI) loggedOutTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loggedOut...)
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) calls() (login, refresh, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.refreshCalls, f.logoutCalls
}

type fixture struct {
	api     *fakeAPI
	store   *memory.Store
	manager *session.Manager
}

func newFixture(t *testing.T, cfg testConfig, options ...session.Option) *fixture {
	t.Helper()
	api := newFakeAPI(t)
	st := memory.New()
	m := newManager(t, cfg, api, st, options...)
	return &fixture{api: api, store: st, manager: m}
}

func newManager(t *testing.T, cfg testConfig, api session.API, st store.Store, options ...session.Option) *session.Manager {
	t.Helper()
	options = append([]session.Option{session.WithNowTime(func() time.Time { return testNow })}, options...)
	m, err := session.NewManager(cfg, api, st, options...)
	require.NoError(t, err)
	return m
}

func (fx *fixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, fx.manager.Login(context.Background(), testIdentifier, testPassword))
}

func (fx *fixture) stored(t *testing.T) *store.Record {
	t.Helper()
	r, err := fx.store.Load(context.Background())
	require.NoError(t, err)
	return r
}

// stubStore returns a fixed record, used for records the real stores refuse to write.
type stubStore struct {
	mu      sync.Mutex
	record  *store.Record
	loadErr error
	cleared int
}

func (s *stubStore) Load(context.Context) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record, s.loadErr
}

func (s *stubStore) Save(_ context.Context, r *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = r
	return nil
}

func (s *stubStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	s.cleared++
	return nil
}
