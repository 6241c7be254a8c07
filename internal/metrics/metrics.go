// Package metrics exposes Prometheus counters for recently viewed tracking.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recently_viewed"

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	views       *prometheus.CounterVec
	renders     *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	purged      prometheus.Counter
	gatherer    prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		views: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_total",
			Help:      "Item views seen by the tracker, by outcome.",
		}, []string{"outcome"}),
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Recently viewed sections rendered, by whether any history existed.",
		}, []string{"history"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Backing store failures, by operation and visitor kind.",
		}, []string{"op", "kind"}),
		purged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transients_purged_total",
			Help:      "Expired anonymous cache rows removed by the purge loop.",
		}),
		gatherer: gatherer,
	}
}

func (m *Metrics) ViewTracked() {
	if m == nil {
		return
	}
	m.views.WithLabelValues("tracked").Inc()
}

func (m *Metrics) ViewIgnored() {
	if m == nil {
		return
	}
	m.views.WithLabelValues("ignored").Inc()
}

func (m *Metrics) ViewFailed() {
	if m == nil {
		return
	}
	m.views.WithLabelValues("failed").Inc()
}

func (m *Metrics) Rendered(hasHistory bool) {
	if m == nil {
		return
	}
	label := "empty"
	if hasHistory {
		label = "present"
	}
	m.renders.WithLabelValues(label).Inc()
}

func (m *Metrics) StoreError(op string, kind string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
