package session

import (
	"context"
	"sync"
	"time"
)

// Scheduler keeps a session alive in the background. While the session is
// Authenticated it checks the access token every check interval, refreshes
// it when it is expiring and logs out when the refresh fails.
type Scheduler struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartAutoRefresh starts a scheduler that runs until Stop is called or ctx
// is done.
func (m *Manager) StartAutoRefresh(ctx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{cancel: cancel, done: make(chan struct{})}

	states, unsubscribe := m.Subscribe()
	go func() {
		defer close(s.done)
		defer unsubscribe()
		m.runScheduler(ctx, states)
	}()
	return s
}

// Stop cancels the scheduler and waits for it to exit. An in-flight refresh
// exchange is left to complete on its own.
func (s *Scheduler) Stop() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the scheduler has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (m *Manager) runScheduler(ctx context.Context, states <-chan State) {
	interval := m.cfg.GetCheckInterval()
	var ticker *time.Ticker
	var tick <-chan time.Time

	arm := func(st State) {
		switch {
		case st.HoldsCredentials() && ticker == nil:
			ticker = time.NewTicker(interval)
			tick = ticker.C
			m.logger.Debug().Dur("interval", interval).Msg("Auto refresh armed")
		case !st.HoldsCredentials() && ticker != nil:
			ticker.Stop()
			ticker, tick = nil, nil
			m.logger.Debug().Msg("Auto refresh disarmed")
		}
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	arm(m.State())
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			arm(st)
		case <-tick:
			if m.State() == Authenticated && m.IsExpiringSoon() {
				m.logger.Debug().Msg("Access token expiring, refreshing")
				m.refreshOrLogout(ctx)
			}
		}
	}
}
