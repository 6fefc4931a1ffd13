// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package readercache

import "github.com/prometheus/client_golang/prometheus"

type cacheMetrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	releases    prometheus.Counter
	openReaders prometheus.Gauge
}

func makeCacheMetrics() cacheMetrics {
	return cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vedit",
			Subsystem: "reader_cache",
			Name:      "hits_total",
			Help:      "Number of lookups served by a resident reader.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vedit",
			Subsystem: "reader_cache",
			Name:      "misses_total",
			Help:      "Number of lookups that opened a reader.",
		}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vedit",
			Subsystem: "reader_cache",
			Name:      "releases_total",
			Help:      "Number of reader handles released.",
		}),
		openReaders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vedit",
			Subsystem: "reader_cache",
			Name:      "open_readers",
			Help:      "Number of readers currently open.",
		}),
	}
}

func (m *cacheMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.hits, m.misses, m.releases, m.openReaders}
}

// register registers the collectors with reg. On failure, the collectors
// registered so far are unregistered again.
func (m *cacheMetrics) register(reg prometheus.Registerer) error {
	cs := m.collectors()
	for i, c := range cs {
		if err := reg.Register(c); err != nil {
			for _, r := range cs[:i] {
				reg.Unregister(r)
			}
			return err
		}
	}
	return nil
}

// Metrics holds metrics for the cache.
type Metrics struct {
	// The number of files with a resident reader.
	Count int64
	// The number of files remembered without a reader.
	Ghosts int64
	// The number of cache hits.
	Hits int64
	// The number of cache misses.
	Misses int64
}

// Metrics retrieves metrics for the cache.
func (c *Cache) Metrics() Metrics {
	var m Metrics
	for i := range c.shards {
		s := &c.shards[i]
		withEntry, test := s.residentCounts()
		m.Count += int64(withEntry)
		m.Ghosts += int64(test)
		m.Hits += s.hits.Load()
		m.Misses += s.misses.Load()
	}
	return m
}
