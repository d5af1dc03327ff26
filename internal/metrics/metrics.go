// Package metrics exposes the spec §6 metrics surface: one gauge per
// column reporting on-disk size in bytes, refreshed on request.
// Grounded on the teacher go.mod's prometheus/client_golang dependency
// (no metrics package shipped with turbo-geth in this pack, so the
// registration style follows prometheus's own idiomatic
// GaugeVec/HistogramVec usage rather than a teacher file).
//
// Supplemented from original_source/crates/client/sync/src/metrics/
// block_metrics.rs (spec §3.1): beyond the required column-size
// gauge, a block-import latency histogram and a "blocks behind tip"
// gauge are carried as optional ambient observability — metrics are
// an external-collaborator surface (spec §1), so these are additive,
// not a new feature.
package metrics

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	idb "github.com/starknetfull/corestore/internal/db"
)

// Collector owns the registered series and the backend it samples
// column sizes from.
type Collector struct {
	backend *idb.Backend

	ColumnSize      *prometheus.GaugeVec
	ImportLatency   prometheus.Histogram
	BlocksBehindTip prometheus.Gauge
	LastBlockFee    prometheus.Gauge
}

// NewCollector builds and registers the metric series against reg. The
// caller supplies the registry (rather than using the global default)
// so tests can use a throwaway one.
func NewCollector(b *idb.Backend, reg prometheus.Registerer) *Collector {
	c := &Collector{
		backend: b,
		ColumnSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "corestore",
			Name:      "column_size_bytes",
			Help:      "On-disk size of one column family, in bytes.",
		}, []string{"column"}),
		ImportLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "corestore",
			Name:      "block_import_duration_seconds",
			Help:      "Wall-clock time to import one confirmed block.",
			Buckets:   prometheus.DefBuckets,
		}),
		BlocksBehindTip: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corestore",
			Name:      "blocks_behind_tip",
			Help:      "Difference between the upstream gateway's head and the locally synced tip.",
		}),
		LastBlockFee: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corestore",
			Name:      "last_block_total_fee",
			Help:      "Sum of actual_fee across every receipt in the most recently imported block.",
		}),
	}
	reg.MustRegister(c.ColumnSize, c.ImportLatency, c.BlocksBehindTip, c.LastBlockFee)
	return c
}

// Refresh samples every column's current on-disk size and updates the
// gauge vector (spec §6: "Refreshed on request").
func (c *Collector) Refresh() {
	for name, size := range c.backend.ColumnSizes() {
		c.ColumnSize.WithLabelValues(name).Set(float64(size))
	}
}

// ObserveImport records how long one confirmed-block import took.
func (c *Collector) ObserveImport(d time.Duration) {
	c.ImportLatency.Observe(d.Seconds())
}

// SetBlocksBehindTip records the gap between the gateway's advertised
// head and the locally synced tip.
func (c *Collector) SetBlocksBehindTip(n float64) {
	c.BlocksBehindTip.Set(n)
}

// ObserveBlockFee records a block's total fee, computed by
// kv.TotalActualFee's uint256.Int accumulator. float64 loses precision
// above 2^53, acceptable for an observability gauge (the durable value
// stays in the receipt felts; this is a dashboard number, not a source
// of truth).
func (c *Collector) ObserveBlockFee(total *uint256.Int) {
	f, _ := new(big.Float).SetInt(total.ToBig()).Float64()
	c.LastBlockFee.Set(f)
}
