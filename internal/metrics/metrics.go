// Package metrics collects and exposes Prometheus metrics for the
// ingestion and import pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline events. Services hold the interface so tests
// can pass a no-op.
type Collector interface {
	RecordIngested(count int)
	RecordIngestFailure(count int)
	RecordDeleted(count int)
	RecordPollAttempt()
	RecordImportOutcome(outcome string)
	RecordExported(count int)
}

type PromCollector struct {
	ingested      prometheus.Counter
	ingestFailed  prometheus.Counter
	deleted       prometheus.Counter
	pollAttempts  prometheus.Counter
	importOutcome *prometheus.CounterVec
	exported      prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *PromCollector {
	c := &PromCollector{
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photovault_photos_ingested_total",
			Help: "Photos successfully ingested (row + both blobs confirmed)",
		}),
		ingestFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photovault_ingest_failures_total",
			Help: "Per-file ingestion failures",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photovault_photos_deleted_total",
			Help: "Photos fully deleted (blobs + row)",
		}),
		pollAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photovault_import_poll_attempts_total",
			Help: "Provider session poll attempts",
		}),
		importOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photovault_imports_total",
			Help: "Import sessions by terminal outcome",
		}, []string{"outcome"}),
		exported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photovault_photos_exported_total",
			Help: "Photos pushed to the external provider",
		}),
	}

	reg.MustRegister(c.ingested, c.ingestFailed, c.deleted, c.pollAttempts, c.importOutcome, c.exported)
	return c
}

func (c *PromCollector) RecordIngested(count int)      { c.ingested.Add(float64(count)) }
func (c *PromCollector) RecordIngestFailure(count int) { c.ingestFailed.Add(float64(count)) }
func (c *PromCollector) RecordDeleted(count int)       { c.deleted.Add(float64(count)) }
func (c *PromCollector) RecordPollAttempt()            { c.pollAttempts.Inc() }
func (c *PromCollector) RecordImportOutcome(outcome string) {
	c.importOutcome.WithLabelValues(outcome).Inc()
}
func (c *PromCollector) RecordExported(count int) { c.exported.Add(float64(count)) }

// Handler returns the HTTP handler exposing the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Noop is a Collector that records nothing. Used in tests.
type Noop struct{}

func (Noop) RecordIngested(int)         {}
func (Noop) RecordIngestFailure(int)    {}
func (Noop) RecordDeleted(int)          {}
func (Noop) RecordPollAttempt()         {}
func (Noop) RecordImportOutcome(string) {}
func (Noop) RecordExported(int)         {}
