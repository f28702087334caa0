// Package metrics publishes process counters on the default prometheus
// registry, served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labops_reference_cache_hits_total",
		Help: "Reference cache lookups served without a store fetch.",
	}, []string{"category"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labops_reference_cache_misses_total",
		Help: "Reference cache lookups that went to the store.",
	}, []string{"category"})

	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labops_reference_cache_invalidations_total",
		Help: "Reference cache invalidation calls.",
	})

	TemplateRowsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labops_template_rows_added_total",
		Help: "Facility rows created from deployment templates.",
	}, []string{"kind", "path"}) // kind: milestone|equipment, path: apply|sync

	TemplateRowsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labops_template_rows_skipped_total",
		Help: "Template rows skipped as already present.",
	}, []string{"kind", "path"})
)
