package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the segmenter.
type Metrics struct {
	registry                 *prometheus.Registry
	requestsTotal            prometheus.Counter
	errorsTotal              prometheus.Counter
	segmentsOpenedTotal      prometheus.Counter
	segmentsClosedTotal      prometheus.Counter
	segmentsDeletedTotal     prometheus.Counter
	segmentDeleteErrors      prometheus.Counter
	manifestWritesTotal      prometheus.Counter
	manifestWriteErrorsTotal prometheus.Counter
	playlistEntries          prometheus.Gauge
	segmentsOnDisk           prometheus.Gauge
}

// New creates and registers Prometheus metrics for the segmenter.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_requests_total",
			Help: "Total number of HTTP requests received by the ops listener",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_errors_total",
			Help: "Total number of ops listener responses with error status (4xx or 5xx)",
		}),
		segmentsOpenedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_segments_opened_total",
			Help: "Total number of segment files opened for writing",
		}),
		segmentsClosedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_segments_closed_total",
			Help: "Total number of segments closed and appended to the playlist",
		}),
		segmentsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_segments_deleted_total",
			Help: "Total number of segment files deleted by retention",
		}),
		segmentDeleteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_segment_delete_errors_total",
			Help: "Total number of segment files retention failed to delete",
		}),
		manifestWritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_manifest_writes_total",
			Help: "Total number of successful playlist writes",
		}),
		manifestWriteErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_manifest_write_errors_total",
			Help: "Total number of failed playlist writes",
		}),
		playlistEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hls_playlist_entries",
			Help: "Number of segments currently advertised in the playlist",
		}),
		segmentsOnDisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hls_segments_on_disk",
			Help: "Number of closed segment files retained on disk",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.segmentsOpenedTotal,
		m.segmentsClosedTotal,
		m.segmentsDeletedTotal,
		m.segmentDeleteErrors,
		m.manifestWritesTotal,
		m.manifestWriteErrorsTotal,
		m.playlistEntries,
		m.segmentsOnDisk,
	)

	return m
}

// Registry returns the private registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

func (m *Metrics) IncSegmentsOpened() {
	m.segmentsOpenedTotal.Inc()
}

func (m *Metrics) IncSegmentsClosed() {
	m.segmentsClosedTotal.Inc()
}

func (m *Metrics) IncSegmentsDeleted() {
	m.segmentsDeletedTotal.Inc()
}

func (m *Metrics) IncSegmentDeleteErrors() {
	m.segmentDeleteErrors.Inc()
}

// ObserveManifestWrite counts a playlist write as succeeded or failed.
func (m *Metrics) ObserveManifestWrite(err error) {
	if err != nil {
		m.manifestWriteErrorsTotal.Inc()
		return
	}
	m.manifestWritesTotal.Inc()
}

// SetRetained sets the playlist-entries and on-disk gauges.
func (m *Metrics) SetRetained(entries, onDisk int) {
	m.playlistEntries.Set(float64(entries))
	m.segmentsOnDisk.Set(float64(onDisk))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
