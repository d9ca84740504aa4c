package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBuckets cover order amounts in minor units, from ₹1 to ₹1,00,000.
var DefaultBuckets = []float64{100, 1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000, 10000000}

// PrometheusFactory is a MetricFactory backed by client_golang. Dotted metric
// names are rewritten to Prometheus form: "storefront.order.placed" becomes
// "storefront_order_placed_total".
type PrometheusFactory struct {
	reg     prometheus.Registerer
	gather  prometheus.Gatherer
	buckets []float64

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory creates a factory registering on reg. A nil reg uses a
// fresh private registry.
func NewPrometheusFactory(reg *prometheus.Registry) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &PrometheusFactory{
		reg:        reg,
		gather:     reg,
		buckets:    DefaultBuckets,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements MetricFactory. Asking for the same name twice returns
// the same collector.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: promName(name) + "_total",
		Help: "Count of " + name + " events.",
	})
	f.reg.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    promName(name),
		Help:    "Distribution of " + name + ".",
		Buckets: f.buckets,
	})
	f.reg.MustRegister(h)
	f.histograms[name] = h
	return h
}

// Gatherer returns the registry the factory writes to.
func (f *PrometheusFactory) Gatherer() prometheus.Gatherer { return f.gather }

// Handler serves the factory's registry in the Prometheus text format.
func (f *PrometheusFactory) Handler() http.Handler {
	return promhttp.HandlerFor(f.gather, promhttp.HandlerOpts{})
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
