package session

import (
	"errors"

	"github.com/jrsteele09/lunar-session/authmodel"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session operations. A nil *Metrics records nothing.
type Metrics struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	logouts   *prometheus.CounterVec
	state     *prometheus.GaugeVec
}

// NewMetrics creates the session collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunar",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunar",
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Token refresh exchanges by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunar",
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Logouts by outcome of the remote invalidation.",
		}, []string{"remote"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lunar",
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{m.logins, m.refreshes, m.logouts, m.state} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Result label values.
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultNetwork            = "network"
	ResultRefreshFailure     = "refresh_failure"
	ResultError              = "error"
)

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, authmodel.ErrInvalidCredentials):
		return ResultInvalidCredentials
	case errors.Is(err, authmodel.ErrNetwork):
		return ResultNetwork
	case errors.Is(err, authmodel.ErrRefreshFailure):
		return ResultRefreshFailure
	default:
		return ResultError
	}
}

func (m *Metrics) login(err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(resultOf(err)).Inc()
}

func (m *Metrics) refresh(err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(resultOf(err)).Inc()
}

func (m *Metrics) logout(remoteOK bool) {
	if m == nil {
		return
	}
	remote := "ok"
	if !remoteOK {
		remote = "failed"
	}
	m.logouts.WithLabelValues(remote).Inc()
}

func (m *Metrics) setState(current State) {
	if m == nil {
		return
	}
	for _, st := range States {
		v := 0.0
		if st == current {
			v = 1
		}
		m.state.WithLabelValues(st.String()).Set(v)
	}
}
