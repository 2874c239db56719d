package mirror

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the mirror service collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	purges        prometheus.Counter
	purgedRecords prometheus.Counter
	storedRecords prometheus.Counter
}

// NewMetrics registers the mirror collectors on a fresh registry.
func NewMetrics() *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pawpaw_mirror",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled, by route, method and status.",
		}, []string{"route", "method", "status"}),
		purges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pawpaw_mirror",
			Subsystem: "records",
			Name:      "purges_total",
			Help:      "Account purges completed.",
		}),
		purgedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pawpaw_mirror",
			Subsystem: "records",
			Name:      "purged_total",
			Help:      "Records removed by account purges.",
		}),
		storedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pawpaw_mirror",
			Subsystem: "records",
			Name:      "stored_total",
			Help:      "Record writes accepted.",
		}),
	}
	metrics.registry.MustRegister(
		metrics.requests,
		metrics.purges,
		metrics.purgedRecords,
		metrics.storedRecords,
	)
	return metrics
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) observePurge(removed int64) {
	m.purges.Inc()
	if removed > 0 {
		m.purgedRecords.Add(float64(removed))
	}
}

func (m *Metrics) observeStored() {
	m.storedRecords.Inc()
}
