// Package metrics exposes session pool counters to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cellswarm"

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	sessionsActive  prometheus.Gauge
	sessionsStarted prometheus.Counter
	dialFailures    prometheus.Counter
	received        *prometheus.CounterVec
	errors          *prometheus.CounterVec
	moves           *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions with an open transport.",
		}),
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions whose transport connected.",
		}),
		dialFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dial_failures_total",
			Help:      "Transport connections that could not be established.",
		}),
		received: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages by opcode.",
		}, []string{"opcode"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Session errors by kind.",
		}, []string{"kind"}),
		moves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_sent_total",
			Help:      "Movement commands sent by decision reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) DialFailed() {
	if m == nil {
		return
	}
	m.dialFailures.Inc()
}

func (m *Metrics) Received(opcode uint8) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(strconv.Itoa(int(opcode))).Inc()
}

// Error kinds.
const (
	KindParse      = "parse"
	KindDesync     = "desync"
	KindDecompress = "decompress"
	KindTransport  = "transport"
)

func (m *Metrics) Error(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Move(reason string) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(reason).Inc()
}
