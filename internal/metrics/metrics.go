// Package metrics implements the observability hooks with prometheus
// collectors and exports them as a node-exporter textfile.
package metrics

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/observability"
)

const namespace = "cbzkit"

// Metrics collects run, decode and cache events.
type Metrics struct {
	registry *prometheus.Registry

	discoveredPages *prometheus.CounterVec
	skippedInputs   *prometheus.CounterVec
	transforms      *prometheus.CounterVec
	transformTime   prometheus.Histogram
	archives        *prometheus.CounterVec
	entries         *prometheus.CounterVec
	archiveBytes    *prometheus.CounterVec
	buildTime       *prometheus.HistogramVec
	decodes         *prometheus.CounterVec
	decodeTime      *prometheus.HistogramVec
	cacheOps        *prometheus.CounterVec
	cacheBytes      *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		discoveredPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "discovered_pages_total",
			Help: "Source pages found during discovery.",
		}, []string{"mode"}),
		skippedInputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "skipped_inputs_total",
			Help: "Inputs skipped during discovery.",
		}, []string{"mode"}),
		transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "page_transforms_total",
			Help: "Source pages run through the transform pipeline.",
		}, []string{"result"}),
		transformTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "page_transform_seconds",
			Help:    "Time to transform one source page.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "archives_total",
			Help: "Archive builds by outcome.",
		}, []string{"mode", "result"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "archive_entries_total",
			Help: "Entries written to finished archives.",
		}, []string{"mode"}),
		archiveBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "archive_bytes_total",
			Help: "Bytes written to finished archives.",
		}, []string{"mode"}),
		buildTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "archive_build_seconds",
			Help:    "Time from first transform to finished archive.",
			Buckets: prometheus.ExponentialBuckets(0.05, 3, 8),
		}, []string{"mode"}),
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "container_decodes_total",
			Help: "Foreign container decodes by format and outcome.",
		}, []string{"format", "result"}),
		decodeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "container_decode_seconds",
			Help:    "Time to decode one container.",
			Buckets: prometheus.ExponentialBuckets(0.05, 3, 8),
		}, []string{"format"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_operations_total",
			Help: "Decoded-page cache lookups and writes.",
		}, []string{"key_type", "op"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_written_bytes_total",
			Help: "Bytes written to the decoded-page cache.",
		}, []string{"key_type"}),
	}
	m.registry.MustRegister(
		m.discoveredPages, m.skippedInputs,
		m.transforms, m.transformTime,
		m.archives, m.entries, m.archiveBytes, m.buildTime,
		m.decodes, m.decodeTime,
		m.cacheOps, m.cacheBytes,
	)
	return m
}

// Install registers m as the global pipeline, decode and cache hooks.
func (m *Metrics) Install() {
	observability.SetPipelineHooks(m)
	observability.SetDecodeHooks(m)
	observability.SetCacheHooks(m)
}

// Registry exposes the collectors, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current values to path in the text exposition
// format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// =============================================================================
// Hook implementations
// =============================================================================

func (m *Metrics) OnDiscovery(_ context.Context, mode string, pages, skipped int, _ time.Duration, _ error) {
	m.discoveredPages.WithLabelValues(mode).Add(float64(pages))
	m.skippedInputs.WithLabelValues(mode).Add(float64(skipped))
}

func (m *Metrics) OnPageTransformed(_ context.Context, _ int, d time.Duration, err error) {
	m.transforms.WithLabelValues(result(err)).Inc()
	m.transformTime.Observe(d.Seconds())
}

func (m *Metrics) OnArchiveWritten(_ context.Context, mode string, entries int, size int64, d time.Duration, err error) {
	m.archives.WithLabelValues(mode, result(err)).Inc()
	if err != nil {
		return
	}
	m.entries.WithLabelValues(mode).Add(float64(entries))
	m.archiveBytes.WithLabelValues(mode).Add(float64(size))
	m.buildTime.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) OnDecode(_ context.Context, format string, _ int, d time.Duration, err error) {
	m.decodes.WithLabelValues(format, result(err)).Inc()
	m.decodeTime.WithLabelValues(format).Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

// result turns an error into a low-cardinality label: "ok", "canceled",
// the lower-cased error code, or "error" for uncoded errors.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case stderrors.Is(err, context.Canceled):
		return "canceled"
	}
	if code := errors.GetCode(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.DecodeHooks   = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
)
