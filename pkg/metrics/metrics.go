// Package metrics exposes graph statistics as Prometheus metrics.
//
// The Collector reads a snapshot from its Source on every scrape; nothing is
// recorded in between. Graph mutations are not locked, so an embedder that
// scrapes while writing passes the lock it serializes writers with.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector(graph, metrics.WithLocker(&mu)))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/orneryd/tinkergraph/pkg/cache"
	"github.com/orneryd/tinkergraph/pkg/narrow"
	"github.com/orneryd/tinkergraph/pkg/pool"
)

const namespace = "tinkergraph"

// Source is what the collector reads. *storage.Graph implements it.
type Source interface {
	VertexCount() int
	EdgeCount() int
	CacheStatistics() cache.Stats
	MemoryStatistics() pool.Statistics
	CastingStatistics() narrow.Statistics
}

// Collector is a prometheus.Collector over one Source.
type Collector struct {
	src    Source
	locker sync.Locker

	vertices *prometheus.Desc
	edges    *prometheus.Desc

	cacheEntries       *prometheus.Desc
	cacheHits          *prometheus.Desc
	cacheMisses        *prometheus.Desc
	cacheEvictions     *prometheus.Desc
	cacheInvalidations *prometheus.Desc
	cacheHitRatio      *prometheus.Desc

	allocations    *prometheus.Desc
	deallocations  *prometheus.Desc
	allocatedBytes *prometheus.Desc
	freedBytes     *prometheus.Desc
	active         *prometheus.Desc
	peak           *prometheus.Desc
	poolHits       *prometheus.Desc
	poolReturns    *prometheus.Desc
	efficiency     *prometheus.Desc
	pressure       *prometheus.Desc
	optimization   *prometheus.Desc

	narrowing *prometheus.Desc
}

// Option configures a Collector.
type Option func(*Collector)

// WithLocker makes every scrape hold l while reading the source.
func WithLocker(l sync.Locker) Option {
	return func(c *Collector) { c.locker = l }
}

// NewCollector creates a collector reading src.
func NewCollector(src Source, opts ...Option) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	c := &Collector{
		src: src,

		vertices: desc("graph", "vertices", "Number of vertices in the graph."),
		edges:    desc("graph", "edges", "Number of edges in the graph."),

		cacheEntries:       desc("index_cache", "entries", "Entries held by the index cache."),
		cacheHits:          desc("index_cache", "hits_total", "Index cache lookups served from the cache."),
		cacheMisses:        desc("index_cache", "misses_total", "Index cache lookups that missed."),
		cacheEvictions:     desc("index_cache", "evictions_total", "Index cache entries evicted by size."),
		cacheInvalidations: desc("index_cache", "invalidations_total", "Index cache entries removed by invalidation."),
		cacheHitRatio:      desc("index_cache", "hit_ratio", "Share of index cache lookups that hit."),

		allocations:    desc("memory", "allocations_total", "Element shells handed out."),
		deallocations:  desc("memory", "deallocations_total", "Element shells released."),
		allocatedBytes: desc("memory", "allocated_bytes_total", "Bytes of element shells handed out."),
		freedBytes:     desc("memory", "freed_bytes_total", "Bytes of element shells released."),
		active:         desc("memory", "active_objects", "Element shells currently in use."),
		peak:           desc("memory", "peak_objects", "Highest number of element shells in use."),
		poolHits:       desc("memory", "pool_hits_total", "Allocations served from a pool."),
		poolReturns:    desc("memory", "pool_returns_total", "Releases kept by a pool."),
		efficiency:     desc("memory", "efficiency", "Freed bytes over allocated bytes."),
		pressure:       desc("memory", "pressure", "1 while the memory pressure heuristic trips."),
		optimization:   desc("memory", "optimization_level", "Number of forced cleanups."),

		narrowing: desc("narrowing", "attempts_total", "Element narrowing attempts by outcome.", "kind", "outcome"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.vertices, c.edges,
		c.cacheEntries, c.cacheHits, c.cacheMisses, c.cacheEvictions, c.cacheInvalidations, c.cacheHitRatio,
		c.allocations, c.deallocations, c.allocatedBytes, c.freedBytes, c.active, c.peak,
		c.poolHits, c.poolReturns, c.efficiency, c.pressure, c.optimization,
		c.narrowing,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.locker != nil {
		c.locker.Lock()
	}
	vertices, edges := c.src.VertexCount(), c.src.EdgeCount()
	cs := c.src.CacheStatistics()
	ms := c.src.MemoryStatistics()
	ns := c.src.CastingStatistics()
	if c.locker != nil {
		c.locker.Unlock()
	}

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}

	gauge(c.vertices, float64(vertices))
	gauge(c.edges, float64(edges))

	gauge(c.cacheEntries, float64(cs.Size))
	counter(c.cacheHits, float64(cs.Hits))
	counter(c.cacheMisses, float64(cs.Misses))
	counter(c.cacheEvictions, float64(cs.Evictions))
	counter(c.cacheInvalidations, float64(cs.Invalidations))
	gauge(c.cacheHitRatio, cs.HitRatio)

	counter(c.allocations, float64(ms.Allocations))
	counter(c.deallocations, float64(ms.Deallocations))
	counter(c.allocatedBytes, float64(ms.TotalAllocatedBytes))
	counter(c.freedBytes, float64(ms.TotalFreedBytes))
	gauge(c.active, float64(ms.Active))
	gauge(c.peak, float64(ms.Peak))
	counter(c.poolHits, float64(ms.PoolHits))
	counter(c.poolReturns, float64(ms.PoolReturns))
	gauge(c.efficiency, ms.Efficiency)
	gauge(c.pressure, boolFloat(ms.MemoryPressure))
	gauge(c.optimization, float64(ms.OptimizationLevel))

	for _, kind := range []narrow.Kind{narrow.KindVertex, narrow.KindEdge} {
		for _, outcome := range narrow.Outcomes {
			counter(c.narrowing, float64(ns.Count(kind, outcome)), string(kind), string(outcome))
		}
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
