package sherlock

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// clientMetrics instruments the SDK when WithMetrics is supplied.
// A nil *clientMetrics is valid and observes nothing.
type clientMetrics struct {
	requests     *prometheus.CounterVec
	handshakes   prometheus.Counter
	negotiations prometheus.Counter
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sherlock",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Registrar API requests by HTTP status class.",
		}, []string{"class"}),
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sherlock",
			Subsystem: "client",
			Name:      "auth_handshakes_total",
			Help:      "Completed challenge/login handshakes.",
		}),
		negotiations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sherlock",
			Subsystem: "client",
			Name:      "purchase_negotiations_total",
			Help:      "Purchase negotiations that produced an offer set.",
		}),
	}
	reg.MustRegister(m.requests, m.handshakes, m.negotiations)
	return m
}

func (m *clientMetrics) observeRequest(status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(statusClass(status)).Inc()
}

func (m *clientMetrics) observeHandshake() {
	if m == nil {
		return
	}
	m.handshakes.Inc()
}

func (m *clientMetrics) observeNegotiation() {
	if m == nil {
		return
	}
	m.negotiations.Inc()
}

// statusClass buckets an HTTP status for the requests counter.
// Status 0 means the request never completed.
func statusClass(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
