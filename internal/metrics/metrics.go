// Package metrics exposes Prometheus counters for the contract
// interaction layer. Metrics live in a dedicated registry so embedding
// applications keep control of the default global one. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates counters for transactions, reads, and downloads
type Metrics struct {
	registry *prometheus.Registry

	txSubmitted  *prometheus.CounterVec
	txConfirmed  *prometheus.CounterVec
	txFailed     *prometheus.CounterVec
	readFailures *prometheus.CounterVec
	downloads    *prometheus.CounterVec
}

// New creates a Metrics with its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	txSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launchpad",
		Name:      "tx_submitted_total",
		Help:      "Transactions submitted to the chain by action.",
	}, []string{"action"})

	txConfirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launchpad",
		Name:      "tx_confirmed_total",
		Help:      "Transactions confirmed on chain by action.",
	}, []string{"action"})

	txFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launchpad",
		Name:      "tx_failed_total",
		Help:      "Transactions that failed or were rejected by action.",
	}, []string{"action"})

	readFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launchpad",
		Name:      "read_failures_total",
		Help:      "Contract read failures by source.",
	}, []string{"source"})

	downloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launchpad",
		Name:      "downloads_total",
		Help:      "Dataset downloads by terminal status.",
	}, []string{"status"})

	reg.MustRegister(txSubmitted, txConfirmed, txFailed, readFailures, downloads)

	return &Metrics{
		registry:     reg,
		txSubmitted:  txSubmitted,
		txConfirmed:  txConfirmed,
		txFailed:     txFailed,
		readFailures: readFailures,
		downloads:    downloads,
	}
}

// Handler returns an HTTP handler serving the Prometheus exposition
// format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TxSubmitted records a submitted transaction
func (m *Metrics) TxSubmitted(action string) {
	if m == nil {
		return
	}
	m.txSubmitted.WithLabelValues(action).Inc()
}

// TxConfirmed records a confirmed transaction
func (m *Metrics) TxConfirmed(action string) {
	if m == nil {
		return
	}
	m.txConfirmed.WithLabelValues(action).Inc()
}

// TxFailed records a failed or rejected transaction
func (m *Metrics) TxFailed(action string) {
	if m == nil {
		return
	}
	m.txFailed.WithLabelValues(action).Inc()
}

// ReadFailed records a contract read failure
func (m *Metrics) ReadFailed(source string) {
	if m == nil {
		return
	}
	m.readFailures.WithLabelValues(source).Inc()
}

// DownloadFinished records a download reaching a terminal status
func (m *Metrics) DownloadFinished(status string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(status).Inc()
}
