package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkin bundles the view-engine metrics. A nil *Checkin is valid and
// records nothing.
type Checkin struct {
	Transitions    *prometheus.CounterVec
	StaleResponses *prometheus.CounterVec
	FetchFailures  *prometheus.CounterVec
	Submissions    *prometheus.CounterVec
	Conquests      prometheus.Counter
	OpenSessions   prometheus.Gauge
}

// NewCheckin registers the engine metrics against reg, defaulting to the
// global registry when reg is nil. Re-registering returns the existing
// collectors.
func NewCheckin(reg prometheus.Registerer) (*Checkin, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "engine",
		Name:      "transitions_total",
		Help:      "View intents handled, labeled by transition and outcome.",
	}, []string{"transition", "outcome"}))
	if err != nil {
		return nil, err
	}
	stale, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "engine",
		Name:      "stale_responses_total",
		Help:      "Fetch results discarded because their epoch was superseded.",
	}, []string{"fetch"}))
	if err != nil {
		return nil, err
	}
	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "engine",
		Name:      "fetch_failures_total",
		Help:      "Fetches that failed and left the previous state in place.",
	}, []string{"fetch"}))
	if err != nil {
		return nil, err
	}
	submissions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "engine",
		Name:      "submissions_total",
		Help:      "Visit submissions, labeled by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	conquests, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "engine",
		Name:      "conquests_total",
		Help:      "Views that turned conquered.",
	}))
	if err != nil {
		return nil, err
	}
	sessions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "checkin",
		Subsystem: "sessions",
		Name:      "open",
		Help:      "Currently open view sessions.",
	}))
	if err != nil {
		return nil, err
	}

	return &Checkin{
		Transitions:    transitions,
		StaleResponses: stale,
		FetchFailures:  failures,
		Submissions:    submissions,
		Conquests:      conquests,
		OpenSessions:   sessions,
	}, nil
}

// Transition counts one handled intent.
func (m *Checkin) Transition(name, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(name, outcome).Inc()
}

// Stale counts one discarded fetch result.
func (m *Checkin) Stale(fetch string) {
	if m == nil {
		return
	}
	m.StaleResponses.WithLabelValues(fetch).Inc()
}

// FetchFailed counts one failed fetch.
func (m *Checkin) FetchFailed(fetch string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(fetch).Inc()
}

// Submitted counts one resolved submission.
func (m *Checkin) Submitted(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Submissions.WithLabelValues(result).Inc()
}

// Conquered counts one rising edge of the completion flag.
func (m *Checkin) Conquered() {
	if m == nil {
		return
	}
	m.Conquests.Inc()
}

// SessionsOpen sets the open-session gauge.
func (m *Checkin) SessionsOpen(n int) {
	if m == nil {
		return
	}
	m.OpenSessions.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return g, nil
}
