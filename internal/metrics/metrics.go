// Package metrics exposes the Prometheus instrumentation for connection
// lifecycle, decode errors and stream staleness, grounded on the
// teacher's internal/interfaces/http/metrics.go MetricsRegistry pattern.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric the transport, relay and adapters record.
type Registry struct {
	WSConnections   *prometheus.CounterVec
	WSReconnects    *prometheus.CounterVec
	WSReadErrors    *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec
	OrderBookResync *prometheus.CounterVec
	StreamStale     *prometheus.GaugeVec
	RESTCacheHits   *prometheus.CounterVec
	RESTCacheMisses *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry builds and registers a fresh metrics registry. Facade
// instances each own one, so tests can run several facades without
// Prometheus's default-registry collisions.
func NewRegistry() *Registry {
	r := &Registry{
		WSConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccxgo_ws_connections_total",
			Help: "Total WebSocket connections opened, by venue.",
		}, []string{"venue"}),
		WSReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccxgo_ws_reconnects_total",
			Help: "Total WebSocket reconnect attempts, by venue.",
		}, []string{"venue"}),
		WSReadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccxgo_ws_read_errors_total",
			Help: "Total WebSocket read errors, by venue.",
		}, []string{"venue"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccxgo_decode_errors_total",
			Help: "Total frame decode errors, by venue and endpoint.",
		}, []string{"venue", "endpoint"}),
		OrderBookResync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccxgo_order_book_resync_total",
			Help: "Total order-book snapshot resyncs triggered by a sequence gap.",
		}, []string{"venue", "symbol"}),
		StreamStale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ccxgo_stream_stale",
			Help: "1 if a stream's last event exceeds its staleness bound, else 0.",
		}, []string{"venue", "stream_key"}),
		RESTCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccxgo_rest_cache_hits_total",
			Help: "Total REST cache hits, by venue.",
		}, []string{"venue"}),
		RESTCacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccxgo_rest_cache_misses_total",
			Help: "Total REST cache misses, by venue.",
		}, []string{"venue"}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		r.WSConnections, r.WSReconnects, r.WSReadErrors,
		r.DecodeErrors, r.OrderBookResync, r.StreamStale,
		r.RESTCacheHits, r.RESTCacheMisses,
	)
	r.registry = reg
	return r
}

// registry backs Gatherer(); kept unexported so callers go through one API.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }
