package storage

import "github.com/orneryd/tinkergraph/pkg/pool"

// Tracker returns the memory tracker the element pools report to.
func (g *Graph) Tracker() *pool.Tracker {
	return g.tracker
}

// MemoryStatistics returns the tracker statistics.
func (g *Graph) MemoryStatistics() pool.Statistics {
	return g.tracker.Statistics()
}

// ForceCleanup compacts the element pools and hints the runtime to collect.
// It returns the number of idle shells released.
func (g *Graph) ForceCleanup() int {
	return g.tracker.ForceCleanup()
}

// ResetMemoryStatistics zeroes the tracker counters. Meant for tests.
func (g *Graph) ResetMemoryStatistics() {
	g.tracker.ResetStatistics()
}
