// Package monitoring collects docma's operational metrics in a private
// Prometheus registry. A CLI run can dump them in the node exporter
// textfile format when it finishes.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docma"

var (
	registry = prometheus.NewRegistry()

	pluginLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plugin_lookups_total",
		Help:      "Uncached plugin resolutions by router and outcome.",
	}, []string{"router", "result"})

	dataLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "data_loads_total",
		Help:      "Physical data source loads by provider type and outcome.",
	}, []string{"type", "result"})

	transfers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_total",
		Help:      "Imports and fetches by operation, scheme and outcome.",
	}, []string{"op", "scheme", "result"})

	transferBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfer_bytes_total",
		Help:      "Bytes successfully imported or fetched.",
	}, []string{"op", "scheme"})

	renders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renders_total",
		Help:      "Template renders by output format and outcome.",
	}, []string{"format", "result"})

	renderSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "render_duration_seconds",
		Help:      "Template render latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"format"})

	compiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compiles_total",
		Help:      "Template compilations by outcome.",
	}, []string{"result"})
)

func init() {
	registry.MustRegister(
		pluginLookups,
		dataLoads,
		transfers,
		transferBytes,
		renders,
		renderSeconds,
		compiles,
	)
}

// Registry returns the registry holding docma's metrics.
func Registry() *prometheus.Registry {
	return registry
}

func result(ok bool) string {
	if ok {
		return "ok"
	}

	return "error"
}

// PluginLookup records an uncached plugin resolution.
func PluginLookup(router string, hit bool) {
	outcome := "hit"
	if !hit {
		outcome = "miss"
	}
	pluginLookups.WithLabelValues(router, outcome).Inc()
}

// DataLoad records a physical data source load.
func DataLoad(srcType string, err error) {
	dataLoads.WithLabelValues(srcType, result(err == nil)).Inc()
}

// Transfer records an import or fetch of n bytes.
func Transfer(op, scheme string, n int, err error) {
	transfers.WithLabelValues(op, scheme, result(err == nil)).Inc()
	if err == nil {
		transferBytes.WithLabelValues(op, scheme).Add(float64(n))
	}
}

// Render records one template render started at start.
func Render(format string, start time.Time, err error) {
	renders.WithLabelValues(format, result(err == nil)).Inc()
	renderSeconds.WithLabelValues(format).Observe(time.Since(start).Seconds())
}

// Compile records one template compilation.
func Compile(err error) {
	compiles.WithLabelValues(result(err == nil)).Inc()
}

// WriteTextfile writes the current metrics to path in the textfile
// collector format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
