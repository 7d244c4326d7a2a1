package lib

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/* This file implements dev-ops telemetry for the vault in the form of prometheus metrics */

const metricsPattern = "/metrics"

// Metrics represents a server that exposes Prometheus metrics
type Metrics struct {
	server   *http.Server         // the http prometheus server
	config   MetricsConfig        // the configuration
	registry *prometheus.Registry // the registry every collector below is registered to
	log      LoggerI              // the logger

	TransferMetrics // upload and download telemetry
	TreeMetrics     // merkle tree telemetry
}

// TransferMetrics represents the telemetry of the file server
type TransferMetrics struct {
	Uploads       prometheus.Counter // how many files were uploaded?
	UploadedBytes prometheus.Counter // how many bytes of file content were uploaded?
	FilesServed   prometheus.Counter // how many files were downloaded?
	ProofsServed  prometheus.Counter // how many proofs were downloaded?
}

// TreeMetrics represents the telemetry of the latest committed tree
type TreeMetrics struct {
	LeafCount      prometheus.Gauge     // how many leaves does the committed tree have?
	TreeDepth      prometheus.Gauge     // how long is every proof of the committed tree?
	CommitDuration prometheus.Histogram // how long does it take to build and persist a tree?
}

// NewMetricsServer() creates a new telemetry server
// Each server owns its registry so multiple instances may coexist in one process
func NewMetricsServer(config MetricsConfig, log LoggerI) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	mux := http.NewServeMux()
	mux.Handle(metricsPattern, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &Metrics{
		server:   &http.Server{Addr: config.PrometheusAddress, Handler: mux},
		config:   config,
		registry: registry,
		log:      log,
		TransferMetrics: TransferMetrics{
			Uploads: factory.NewCounter(prometheus.CounterOpts{
				Name: "merklevault_uploads_total",
				Help: "Total number of uploaded files",
			}),
			UploadedBytes: factory.NewCounter(prometheus.CounterOpts{
				Name: "merklevault_uploaded_bytes_total",
				Help: "Total number of uploaded file content bytes",
			}),
			FilesServed: factory.NewCounter(prometheus.CounterOpts{
				Name: "merklevault_files_served_total",
				Help: "Total number of files served to clients",
			}),
			ProofsServed: factory.NewCounter(prometheus.CounterOpts{
				Name: "merklevault_proofs_served_total",
				Help: "Total number of proofs served to clients",
			}),
		},
		TreeMetrics: TreeMetrics{
			LeafCount: factory.NewGauge(prometheus.GaugeOpts{
				Name: "merklevault_tree_leaf_count",
				Help: "Number of leaves of the committed tree",
			}),
			TreeDepth: factory.NewGauge(prometheus.GaugeOpts{
				Name: "merklevault_tree_depth",
				Help: "Proof length of the committed tree",
			}),
			CommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
				Name: "merklevault_commit_duration_seconds",
				Help: "Time to build and persist a tree in seconds",
			}),
		},
	}
}

// Registry() exposes the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Start() starts the telemetry server
func (m *Metrics) Start() {
	// exit if empty
	if m == nil {
		return
	}
	// if the metrics server is enabled
	if m.config.Enabled {
		go func() {
			m.log.Infof("Starting metrics server on %s", m.config.PrometheusAddress)
			// run the server
			if err := m.server.ListenAndServe(); err != nil {
				if err != http.ErrServerClosed {
					m.log.Errorf("Metrics server failed with err: %s", err.Error())
				}
			}
		}()
	}
}

// Stop() gracefully stops the telemetry server
func (m *Metrics) Stop() {
	// exit if empty
	if m == nil {
		return
	}
	// if the metrics server isn't enabled
	if m.config.Enabled {
		// shutdown the server
		if err := m.server.Shutdown(context.Background()); err != nil {
			m.log.Error(err.Error())
		}
	}
}

// UpdateUpload() records a single stored upload
func (m *Metrics) UpdateUpload(size int) {
	// exit if empty
	if m == nil {
		return
	}
	m.Uploads.Inc()
	m.UploadedBytes.Add(float64(size))
}

// UpdateFileServed() records a single file download
func (m *Metrics) UpdateFileServed() {
	if m == nil {
		return
	}
	m.FilesServed.Inc()
}

// UpdateProofServed() records a single proof download
func (m *Metrics) UpdateProofServed() {
	if m == nil {
		return
	}
	m.ProofsServed.Inc()
}

// UpdateCommitMetrics() updates the metrics about the last committed tree
func (m *Metrics) UpdateCommitMetrics(leafCount, depth int, duration time.Duration) {
	// exit if empty
	if m == nil {
		return
	}
	// set the shape of the tree
	m.LeafCount.Set(float64(leafCount))
	m.TreeDepth.Set(float64(depth))
	// update the commit time in seconds
	m.CommitDuration.Observe(duration.Seconds())
}
