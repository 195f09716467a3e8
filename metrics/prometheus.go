package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Dispute metrics
	AppealsTotal     prometheus.Counter
	VotesTotal       *prometheus.CounterVec
	EvidenceTotal    prometheus.Counter
	ResolutionsTotal *prometheus.CounterVec
	SweepDuration    prometheus.Histogram
	OpenDisputes     prometheus.Gauge

	// Blob gateway metrics
	BlobUploadsTotal  *prometheus.CounterVec
	BlobUploadBytes   prometheus.Counter
	BlobDownloadBytes prometheus.Counter

	// Outbox metrics
	OutboxDispatched *prometheus.CounterVec
	OutboxPending    prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaseflow_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"route", "method", "status"},
		),

		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaseflow_request_duration_seconds",
				Help:    "Duration of HTTP request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),

		AppealsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leaseflow_appeals_total",
				Help: "Total number of disputes opened by appeal",
			},
		),

		VotesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaseflow_votes_total",
				Help: "Total number of votes cast",
			},
			[]string{"choice"},
		),

		EvidenceTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leaseflow_evidence_total",
				Help: "Total number of evidence submissions",
			},
		),

		ResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaseflow_resolutions_total",
				Help: "Total number of dispute resolutions",
			},
			[]string{"winner"},
		),

		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leaseflow_sweep_duration_seconds",
				Help:    "Duration of deadline sweeper passes",
				Buckets: prometheus.DefBuckets,
			},
		),

		OpenDisputes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leaseflow_open_disputes",
				Help: "Number of disputes currently open for voting",
			},
		),

		BlobUploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaseflow_blob_uploads_total",
				Help: "Total number of blob uploads by outcome",
			},
			[]string{"outcome"},
		),

		BlobUploadBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leaseflow_blob_upload_bytes_total",
				Help: "Total bytes forwarded to the blob publisher",
			},
		),

		BlobDownloadBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leaseflow_blob_download_bytes_total",
				Help: "Total bytes served from the blob aggregator",
			},
		),

		OutboxDispatched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaseflow_outbox_dispatched_total",
				Help: "Total number of outbox messages dispatched",
			},
			[]string{"topic"},
		),

		OutboxPending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leaseflow_outbox_pending",
				Help: "Number of outbox messages awaiting dispatch",
			},
		),
	}
}
