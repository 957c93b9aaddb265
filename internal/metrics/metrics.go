package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Session outcomes.
const (
	OutcomeMessage   = "message"
	OutcomeNoMessage = "no_message"
	OutcomeError     = "error"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	sessions    *prometheus.CounterVec
	active      prometheus.Gauge
	stored      prometheus.Counter
	storeErrors prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smteepee",
				Subsystem: "smtp",
				Name:      "sessions_total",
				Help:      "Finished SMTP sessions by outcome.",
			},
			[]string{"outcome"},
		),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smteepee",
			Subsystem: "smtp",
			Name:      "active_sessions",
			Help:      "SMTP sessions currently in progress.",
		}),
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smteepee",
			Subsystem: "messages",
			Name:      "stored_total",
			Help:      "Messages persisted.",
		}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smteepee",
			Subsystem: "messages",
			Name:      "store_errors_total",
			Help:      "Messages that could not be persisted.",
		}),
	}

	reg.MustRegister(m.sessions, m.active, m.stored, m.storeErrors)
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) SessionFinished(outcome string) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MessageStored() {
	if m == nil {
		return
	}
	m.stored.Inc()
}

func (m *Metrics) StoreFailed() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}
