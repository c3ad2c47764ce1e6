// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kcore

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the metrics of a Kernel to Prometheus.
type Collector struct {
	k *Kernel

	cacheHits        *prometheus.Desc
	cacheMisses      *prometheus.Desc
	cacheEvictions   *prometheus.Desc
	cacheExhaustions *prometheus.Desc
	cacheReads       *prometheus.Desc
	cacheWrites      *prometheus.Desc
	cacheReferenced  *prometheus.Desc

	allocFreePages *prometheus.Desc
	allocAllocs    *prometheus.Desc
	allocFrees     *prometheus.Desc
	allocSteals    *prometheus.Desc
	allocStolen    *prometheus.Desc
	allocFailures  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for k's metrics.
func NewCollector(k *Kernel) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("kcore", subsystem, name), help, labels, nil)
	}
	return &Collector{
		k:                k,
		cacheHits:        desc("cache", "hits_total", "Buffer cache lookups that found their block cached."),
		cacheMisses:      desc("cache", "misses_total", "Buffer cache lookups that repurposed a buffer."),
		cacheEvictions:   desc("cache", "evictions_total", "Cached blocks displaced by misses."),
		cacheExhaustions: desc("cache", "exhaustions_total", "Misses that found every buffer referenced."),
		cacheReads:       desc("cache", "reads_total", "Blocks read from the device."),
		cacheWrites:      desc("cache", "writes_total", "Blocks written to the device."),
		cacheReferenced:  desc("cache", "referenced_buffers", "Buffers with outstanding holders or pins."),
		allocFreePages:   desc("alloc", "free_pages", "Pages on a core's free list.", "core"),
		allocAllocs:      desc("alloc", "allocs_total", "Pages allocated."),
		allocFrees:       desc("alloc", "frees_total", "Pages freed."),
		allocSteals:      desc("alloc", "steals_total", "Refills of a core's free list from another core."),
		allocStolen:      desc("alloc", "stolen_pages_total", "Pages moved between cores by steals."),
		allocFailures:    desc("alloc", "failures_total", "Allocations that found no free page."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.cacheHits, c.cacheMisses, c.cacheEvictions, c.cacheExhaustions,
		c.cacheReads, c.cacheWrites, c.cacheReferenced,
		c.allocFreePages, c.allocAllocs, c.allocFrees, c.allocSteals,
		c.allocStolen, c.allocFailures,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.k.Metrics()
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.cacheHits, m.Cache.Hits)
	counter(c.cacheMisses, m.Cache.Misses)
	counter(c.cacheEvictions, m.Cache.Evictions)
	counter(c.cacheExhaustions, m.Cache.Exhaustions)
	counter(c.cacheReads, m.Cache.Reads)
	counter(c.cacheWrites, m.Cache.Writes)
	ch <- prometheus.MustNewConstMetric(c.cacheReferenced, prometheus.GaugeValue, float64(m.Cache.Referenced))

	for core, n := range m.Alloc.FreePages {
		ch <- prometheus.MustNewConstMetric(c.allocFreePages, prometheus.GaugeValue, float64(n), strconv.Itoa(core))
	}
	counter(c.allocAllocs, m.Alloc.Allocs)
	counter(c.allocFrees, m.Alloc.Frees)
	counter(c.allocSteals, m.Alloc.Steals)
	counter(c.allocStolen, m.Alloc.PagesStolen)
	counter(c.allocFailures, m.Alloc.Failures)
}
