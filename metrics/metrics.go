// Package metrics exports provider health and cache counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentuity/go-catalog/cache"
	"github.com/agentuity/go-catalog/resilience"
)

const namespace = "catalog"

// StatsSource is a named producer of cache counters, such as a repository.
type StatsSource interface {
	Name() string
	Stats() cache.Stats
}

// Collector reads its values at scrape time, so it never drifts from the
// monitor and the repositories it observes.
type Collector struct {
	monitor   *resilience.HealthMonitor
	providers []resilience.ProviderID
	sources   []StatsSource

	healthy  *prometheus.Desc
	failures *prometheus.Desc
	hits     *prometheus.Desc
	misses   *prometheus.Desc
	stale    *prometheus.Desc
	sets     *prometheus.Desc
	corrupt  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector reports health for providers (plus any provider the monitor
// has seen fail) and cache counters for every source.
func NewCollector(monitor *resilience.HealthMonitor, providers []resilience.ProviderID, sources ...StatsSource) *Collector {
	cacheDesc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, []string{"repository"}, nil)
	}
	return &Collector{
		monitor:   monitor,
		providers: append([]resilience.ProviderID(nil), providers...),
		sources:   append([]StatsSource(nil), sources...),
		healthy: prometheus.NewDesc(prometheus.BuildFQName(namespace, "provider", "healthy"),
			"Whether the provider is eligible to serve requests (1) or tripped (0).", []string{"provider"}, nil),
		failures: prometheus.NewDesc(prometheus.BuildFQName(namespace, "provider", "failures"),
			"Failures recorded since the provider's last success.", []string{"provider"}, nil),
		hits:    cacheDesc("hits_total", "Reads served from a fresh cache entry."),
		misses:  cacheDesc("misses_total", "Reads that found no usable cache entry."),
		stale:   cacheDesc("stale_total", "Reads that found an expired cache entry."),
		sets:    cacheDesc("sets_total", "Cache entries written."),
		corrupt: cacheDesc("corrupt_total", "Cache entries dropped because they could not be decoded."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.healthy, c.failures, c.hits, c.misses, c.stale, c.sets, c.corrupt} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.monitor != nil {
		for _, h := range c.monitor.Snapshot(c.providers...) {
			healthy := 0.0
			if h.Healthy {
				healthy = 1
			}
			id := string(h.ProviderID)
			ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, healthy, id)
			ch <- prometheus.MustNewConstMetric(c.failures, prometheus.GaugeValue, float64(h.FailureCount), id)
		}
	}
	for _, src := range c.sources {
		s := src.Stats()
		name := src.Name()
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.stale, prometheus.CounterValue, float64(s.Stale), name)
		ch <- prometheus.MustNewConstMetric(c.sets, prometheus.CounterValue, float64(s.Sets), name)
		ch <- prometheus.MustNewConstMetric(c.corrupt, prometheus.CounterValue, float64(s.Corrupt), name)
	}
}
