// Package metrics provides Prometheus instrumentation for claude sessions.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/randalmurphal/claudelite/claude/protocol"
	"github.com/randalmurphal/claudelite/claude/session"
	"github.com/randalmurphal/claudelite/claudecontract"
)

// Turn statuses.
const (
	StatusSuccess    = "success"
	StatusError      = "error"
	StatusIncomplete = "incomplete" // the process went away before the CLI reported a result
)

// Error kinds.
const (
	KindDecode     = "decode"
	KindDisconnect = "disconnect"
	KindOther      = "other"
)

type collectors struct {
	turns        *prometheus.CounterVec
	messages     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	turnDuration prometheus.Histogram
	cost         prometheus.Counter
	activeTurns  prometheus.Gauge
}

// Listener is a session.Listener that records turns, messages, errors and
// cost. A Listener tracks the turn timing of one session; use ForSession to
// instrument more sessions against the same collectors.
type Listener struct {
	session.NopListener
	c *collectors

	mu        sync.Mutex
	turnStart time.Time
}

// New registers the collectors with reg and returns a listener for the
// first session. Registering twice with the same registry panics.
func New(reg prometheus.Registerer) *Listener {
	f := promauto.With(reg)
	c := &collectors{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claudelite_turns_total",
			Help: "Total number of completed turns by status.",
		}, []string{"status"}),

		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claudelite_messages_total",
			Help: "Total number of messages received by type.",
		}, []string{"type"}),

		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claudelite_errors_total",
			Help: "Total number of session errors by kind.",
		}, []string{"kind"}),

		turnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "claudelite_turn_duration_seconds",
			Help:    "Turn duration in seconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),

		cost: f.NewCounter(prometheus.CounterOpts{
			Name: "claudelite_turn_cost_usd_total",
			Help: "Total reported cost of turns in USD.",
		}),

		activeTurns: f.NewGauge(prometheus.GaugeOpts{
			Name: "claudelite_active_turns",
			Help: "Number of turns currently in progress.",
		}),
	}
	return &Listener{c: c}
}

// ForSession returns a new listener that shares l's collectors.
func (l *Listener) ForSession() *Listener {
	return &Listener{c: l.c}
}

func (l *Listener) OnTurnStart(string) {
	l.mu.Lock()
	l.turnStart = time.Now()
	l.mu.Unlock()
	l.c.activeTurns.Inc()
}

func (l *Listener) OnMessage(msg protocol.Message) {
	typ := msg.Type()
	if typ == "" {
		typ = "unknown"
	}
	l.c.messages.WithLabelValues(typ).Inc()

	if r, ok := msg.(*protocol.ResultMessage); ok {
		l.c.cost.Add(r.Cost())
	}
}

func (l *Listener) OnTurnComplete(messages []protocol.Message) {
	l.mu.Lock()
	start := l.turnStart
	l.turnStart = time.Time{}
	l.mu.Unlock()

	if !start.IsZero() {
		l.c.turnDuration.Observe(time.Since(start).Seconds())
	}
	l.c.activeTurns.Dec()
	l.c.turns.WithLabelValues(turnStatus(messages)).Inc()
}

func (l *Listener) OnError(err error) {
	l.c.errors.WithLabelValues(errorKind(err)).Inc()
}

func turnStatus(messages []protocol.Message) string {
	if len(messages) == 0 {
		return StatusIncomplete
	}
	r, ok := messages[len(messages)-1].(*protocol.ResultMessage)
	switch {
	case !ok:
		return StatusIncomplete
	case r.Subtype == claudecontract.ResultSubtypeErrorProcessExited,
		r.Subtype == claudecontract.ResultSubtypeErrorDisconnected:
		return StatusIncomplete
	case r.IsError:
		return StatusError
	}
	return StatusSuccess
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrDecode):
		return KindDecode
	case errors.Is(err, session.ErrDisconnected):
		return KindDisconnect
	}
	return KindOther
}
