// Package wtmetrics exports echo protocol counters to Prometheus.
package wtmetrics

import (
	"net/http"
	"strconv"

	"github.com/OkutaniDaichi0106/gowtecho/wtecho"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wtecho"

// Metrics holds the collectors fed by a wtecho.Tracer.
type Metrics struct {
	Handshakes         *prometheus.CounterVec
	SessionsActive     prometheus.Gauge
	StreamEchoes       *prometheus.CounterVec
	StreamBytes        prometheus.Counter
	DatagramEchoes     prometheus.Counter
	StreamResets       prometheus.Counter
	SealedStreams      prometheus.Counter
	EncryptionFailures prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "CONNECT requests answered, by response status.",
		}, []string{"status"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently open.",
		}),
		StreamEchoes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_echoes_total",
			Help:      "Stream totals echoed, by direction of the received stream.",
		}, []string{"direction"}),
		StreamBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bytes_total",
			Help:      "Bytes counted on streams that were echoed.",
		}),
		DatagramEchoes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagram_echoes_total",
			Help:      "Datagram sizes echoed.",
		}),
		StreamResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_resets_total",
			Help:      "Streams reset by the peer.",
		}),
		SealedStreams: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sealed_payloads_total",
			Help:      "Envelopes written by the encryption overlay.",
		}),
		EncryptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encryption_failures_total",
			Help:      "Stream chunks that could not be sealed.",
		}),
	}
}

// Tracer returns a wtecho.Tracer that updates m.
func (m *Metrics) Tracer() *wtecho.Tracer {
	return &wtecho.Tracer{
		HandshakeCompleted: func(_ wtecho.StreamID, status int) {
			m.Handshakes.WithLabelValues(strconv.Itoa(status)).Inc()
		},
		SessionStarted: func(wtecho.SessionID) {
			m.SessionsActive.Inc()
		},
		SessionClosed: func(wtecho.SessionID) {
			m.SessionsActive.Dec()
		},
		StreamEchoed: func(_ wtecho.StreamID, total uint64, unidirectional bool) {
			direction := "bidirectional"
			if unidirectional {
				direction = "unidirectional"
			}
			m.StreamEchoes.WithLabelValues(direction).Inc()
			m.StreamBytes.Add(float64(total))
		},
		DatagramEchoed: func(int) {
			m.DatagramEchoes.Inc()
		},
		StreamReset: func(wtecho.StreamID) {
			m.StreamResets.Inc()
		},
		StreamSealed: func(wtecho.StreamID, int) {
			m.SealedStreams.Inc()
		},
		EncryptionFailed: func(wtecho.StreamID, error) {
			m.EncryptionFailures.Inc()
		},
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
