// Package session owns the client-side authentication lifecycle: login,
// logout, silent refresh and rehydration of a LunarBase session.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/lunar-session/authmodel"
	"github.com/jrsteele09/lunar-session/store"
	"github.com/jrsteele09/lunar-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotAuthenticated = errors.New("session is not authenticated")
	ErrWatchUnsupported = errors.New("store does not report changes")
)

// NowTimeFunc is the default clock for new managers.
var NowTimeFunc = time.Now

const refreshKey = "refresh"

// API is the LunarBase auth endpoint set the manager talks to.
type API interface {
	Login(ctx context.Context, req authmodel.LoginRequest) (*authmodel.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*authmodel.TokenResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Config holds the session tunables. internal/config.Session satisfies it.
type Config interface {
	GetRefreshThreshold() time.Duration
	GetCheckInterval() time.Duration
	GetMinPasswordLength() int
}

// Manager is the single writer of a session and its storage slot.
type Manager struct {
	cfg     Config
	api     API
	store   store.Store
	nowTime func() time.Time
	logger  zerolog.Logger
	metrics *Metrics

	// opLock serializes operations that mutate the session.
	opLock sync.Mutex

	lock    sync.RWMutex
	session Session

	refreshGroup singleflight.Group

	subsLock sync.Mutex
	subs     map[int]chan State
	nextSub  int
}

type Option func(*Manager)

// WithNowTime sets the clock used for expiry checks (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics records operation outcomes on metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a manager in the Anonymous state. Call Restore to
// rehydrate a persisted session.
func NewManager(cfg Config, api API, st store.Store, options ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("[session.NewManager] config is required")
	}
	if api == nil {
		return nil, errors.New("[session.NewManager] api is required")
	}
	if st == nil {
		return nil, errors.New("[session.NewManager] store is required")
	}

	m := &Manager{
		cfg:     cfg,
		api:     api,
		store:   st,
		nowTime: NowTimeFunc,
		logger:  log.With().Str("component", "session").Logger(),
		session: Session{State: Anonymous},
		subs:    make(map[int]chan State),
	}
	for _, opt := range options {
		opt(m)
	}
	m.metrics.setState(Anonymous)
	return m, nil
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.session.clone()
}

func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.session.State
}

func (m *Manager) IsAuthenticated() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.session.IsAuthenticated
}

// IsExpiringSoon reports whether the access token has less than the refresh
// threshold left. A missing or undecodable token is always expiring.
func (m *Manager) IsExpiringSoon() bool {
	m.lock.RLock()
	accessToken := m.session.AccessToken
	m.lock.RUnlock()
	return token.IsExpiringSoon(accessToken, m.nowTime(), m.cfg.GetRefreshThreshold())
}

// set replaces the session and notifies subscribers when the state changed.
func (m *Manager) set(s Session) {
	m.lock.Lock()
	prev := m.session.State
	m.session = s
	m.lock.Unlock()

	if prev != s.State {
		m.logger.Debug().Stringer("from", prev).Stringer("to", s.State).Msg("Session state changed")
		m.metrics.setState(s.State)
		m.publish(s.State)
	}
}

func (m *Manager) update(fn func(s *Session)) {
	s := m.Snapshot()
	fn(&s)
	m.set(s)
}

// Login exchanges credentials for a token pair. Input is validated locally
// first; a *authmodel.FieldError is returned without contacting the server.
// Any failure leaves the session Anonymous with no credentials.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	prev := m.Snapshot()
	hadCredentials := prev.State.HoldsCredentials()
	req := authmodel.LoginRequest{Identifier: strings.TrimSpace(identifier), Password: secret}

	if err := req.Validate(m.cfg.GetMinPasswordLength()); err != nil {
		m.failLogin(ctx, hadCredentials, err)
		return err
	}

	m.set(Session{State: Authenticating, Loading: true})

	resp, err := m.api.Login(ctx, req)
	if err == nil && !resp.HasPair() {
		err = errors.Wrap(authmodel.ErrNetwork, "login response is missing the token pair")
	}
	if err != nil {
		m.failLogin(ctx, hadCredentials, err)
		return err
	}

	s := Session{
		State:           Authenticated,
		User:            resp.User.Public(),
		AccessToken:     resp.AccessToken,
		RefreshToken:    resp.RefreshToken,
		IsAuthenticated: true,
	}
	s.Error = m.persist(ctx, s)
	m.set(s)
	m.metrics.login(nil)

	if hadCredentials && prev.RefreshToken != "" && prev.RefreshToken != s.RefreshToken {
		// The replaced pair is invalidated best-effort, like a logout.
		if err := m.api.Logout(ctx, prev.AccessToken, prev.RefreshToken); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to invalidate the replaced session")
		}
	}

	m.logger.Info().Str("identifier", req.Identifier).Msg("Logged in")
	return nil
}

func (m *Manager) failLogin(ctx context.Context, hadCredentials bool, err error) {
	if hadCredentials {
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			log.Err(clearErr).Msg("Failed to clear stored session after failed login")
		}
	}
	m.set(Session{State: Anonymous, Error: err.Error()})
	m.metrics.login(err)
	m.logger.Info().Err(err).Str("field", string(authmodel.FieldOf(err))).Msg("Login failed")
}

// persist writes s to the store. A storage failure never discards a valid
// credential pair; it is logged and returned as the session error message.
func (m *Manager) persist(ctx context.Context, s Session) string {
	if err := m.store.Save(ctx, s.record()); err != nil {
		log.Err(err).Msg("Failed to persist session")
		return errors.Wrap(err, "persist session").Error()
	}
	return ""
}

// Logout invalidates the refresh token on the server when possible and then
// clears the session and its storage whatever the server said. Only a
// storage failure is returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.opLock.Lock()
	defer m.opLock.Unlock()
	return m.logout(ctx)
}

func (m *Manager) logout(ctx context.Context) error {
	prev := m.Snapshot()
	m.update(func(s *Session) {
		s.Loading = true
		s.Error = ""
	})

	remoteOK := true
	if prev.RefreshToken != "" {
		if err := m.api.Logout(ctx, prev.AccessToken, prev.RefreshToken); err != nil {
			remoteOK = false
			m.logger.Warn().Err(err).Msg("Remote logout failed; clearing local session anyway")
		}
	}

	m.set(Session{State: Anonymous})
	m.metrics.logout(remoteOK)

	if err := m.store.Clear(ctx); err != nil {
		m.update(func(s *Session) { s.Error = err.Error() })
		return errors.Wrap(err, "[Logout] clear store")
	}
	if prev.State != Anonymous {
		m.logger.Info().Msg("Logged out")
	}
	return nil
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// share one exchange and all observe its result. The exchange is not
// cancelled with ctx; a caller whose ctx ends stops waiting and gets false.
// Any failure clears the credentials and leaves the session Expired.
func (m *Manager) Refresh(ctx context.Context) bool {
	ok, _ := m.refresh(ctx)
	return ok
}

// refresh returns ctx's error when the caller gave up waiting.
func (m *Manager) refresh(ctx context.Context) (bool, error) {
	ch := m.refreshGroup.DoChan(refreshKey, func() (any, error) {
		return m.exchange(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (m *Manager) exchange(ctx context.Context) bool {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	prev := m.Snapshot()
	if prev.RefreshToken == "" {
		m.update(func(s *Session) { s.Error = ErrNotAuthenticated.Error() })
		m.metrics.refresh(ErrNotAuthenticated)
		return false
	}

	m.update(func(s *Session) {
		s.State = Refreshing
		s.Loading = true
		s.Error = ""
	})

	resp, err := m.api.Refresh(ctx, prev.RefreshToken)
	if err == nil && !resp.HasPair() {
		err = errors.Wrap(authmodel.ErrRefreshFailure, "refresh response is missing the token pair")
	}
	if err != nil {
		if rec := m.releaseRejected(ctx, prev.RefreshToken); rec != nil {
			// Another process sharing the slot rotated the pair first.
			m.set(fromRecord(rec))
			m.metrics.refresh(nil)
			m.logger.Info().Msg("Adopted session refreshed by another process")
			return true
		}
		m.set(Session{State: Expired, Error: err.Error()})
		m.metrics.refresh(err)
		m.logger.Warn().Err(err).Msg("Session refresh failed")
		return false
	}

	user := resp.User.Public()
	if user == nil {
		user = prev.User
	}
	s := Session{
		State:           Authenticated,
		User:            user,
		AccessToken:     resp.AccessToken,
		RefreshToken:    resp.RefreshToken,
		IsAuthenticated: true,
	}
	s.Error = m.persist(ctx, s)
	m.set(s)
	m.metrics.refresh(nil)

	m.logger.Debug().Dur("remaining", token.Remaining(s.AccessToken, m.nowTime())).Msg("Session refreshed")
	return true
}

// releaseRejected clears the storage slot if it still holds the rejected
// refresh token. When the slot holds a different complete pair instead, that
// record is returned so the caller can adopt it.
func (m *Manager) releaseRejected(ctx context.Context, rejected string) *store.Record {
	cleared, err := store.ClearIfHolds(ctx, m.store, rejected)
	if err != nil {
		log.Err(err).Msg("Failed to clear stored session after refresh failure")
		return nil
	}
	if cleared {
		return nil
	}

	rec, err := m.store.Load(ctx)
	if err != nil {
		log.Err(err).Msg("Failed to reload stored session after refresh failure")
		return nil
	}
	if rec == nil || rec.Validate() != nil || !rec.IsAuthenticated || !rec.HasCredentials() || rec.RefreshToken == rejected {
		return nil
	}
	return rec
}

// CheckAuth is the route guard check. An authenticated session whose access token
// is expiring is refreshed, and logged out if that fails.
func (m *Manager) CheckAuth(ctx context.Context) bool {
	if !m.IsAuthenticated() {
		return false
	}
	if m.IsExpiringSoon() {
		m.refreshOrLogout(ctx)
	}
	return m.IsAuthenticated()
}

// HandleUnauthorized reacts to a protected request rejected with 401: the
// session is refreshed, or logged out when that fails. It reports whether a
// retry with the new access token makes sense.
func (m *Manager) HandleUnauthorized(ctx context.Context) bool {
	if !m.IsAuthenticated() {
		return false
	}
	return m.refreshOrLogout(ctx)
}

func (m *Manager) refreshOrLogout(ctx context.Context) bool {
	ok, waitErr := m.refresh(ctx)
	if ok {
		return true
	}
	if waitErr != nil {
		return false
	}
	if err := m.Logout(ctx); err != nil {
		log.Err(err).Msg("Logout after refresh failure")
	}
	return false
}

// Restore rehydrates the session from storage, reading both tokens as one
// record. A partial record is discarded and its slot cleared. An access token
// that already expired is kept; the next CheckAuth or scheduler tick
// refreshes it.
func (m *Manager) Restore(ctx context.Context) error {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	rec, err := m.store.Load(ctx)
	if err != nil {
		m.set(Session{State: Anonymous, Error: err.Error()})
		return errors.Wrap(err, "[Restore] load session")
	}
	if err := rec.Validate(); err != nil {
		m.logger.Warn().Err(err).Msg("Discarding stored session")
		m.set(Session{State: Anonymous})
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			return errors.Wrap(clearErr, "[Restore] clear partial session")
		}
		return nil
	}

	s := fromRecord(rec)
	m.set(s)
	if s.IsAuthenticated {
		m.logger.Info().Dur("remaining", token.Remaining(s.AccessToken, m.nowTime())).Msg("Session restored")
	}
	return nil
}

// WatchStore follows changes another process makes to the storage slot and
// rehydrates from them. It blocks until ctx is done.
func (m *Manager) WatchStore(ctx context.Context) error {
	watcher, ok := m.store.(store.Watcher)
	if !ok {
		return ErrWatchUnsupported
	}

	changed := make(chan struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				m.syncFromStore(ctx)
			}
		}
	}()

	err := watcher.Watch(ctx, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	wg.Wait()
	return err
}

// syncFromStore adopts the stored record when it differs from the session.
func (m *Manager) syncFromStore(ctx context.Context) {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	rec, err := m.store.Load(ctx)
	if err != nil {
		log.Err(err).Msg("Failed to reload changed session")
		return
	}
	if rec.Validate() != nil {
		rec = nil
	}

	current := m.Snapshot()
	next := fromRecord(rec)
	if current.IsAuthenticated == next.IsAuthenticated && current.record().Equal(next.record()) {
		return
	}
	if !next.IsAuthenticated && !current.State.HoldsCredentials() {
		return
	}

	m.logger.Info().Bool("authenticated", next.IsAuthenticated).Msg("Session changed in another process")
	m.set(next)
}

// Subscribe returns a feed of state changes. The channel holds only the
// latest state, so a slow reader sees the most recent one. Call the returned
// function to unsubscribe.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.subsLock.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subsLock.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsLock.Lock()
			delete(m.subs, id)
			m.subsLock.Unlock()
		})
	}
}

func (m *Manager) publish(st State) {
	m.subsLock.Lock()
	defer m.subsLock.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}
