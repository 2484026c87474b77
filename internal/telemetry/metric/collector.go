package metric

import "github.com/prometheus/client_golang/prometheus"

// StatsFunc reports a live per-site statistic (e.g. history queue
// length) at scrape time, rather than a metric pushed on every
// mutation.
type StatsFunc func() map[string]int

// Collector is a prometheus.Collector that pulls a per-site stat from
// the running cache on every scrape instead of tracking it as a
// pushed gauge. Useful for values a scrape can compute cheaply but
// that would otherwise need updating on every enqueue/dequeue.
type Collector struct {
	desc  *prometheus.Desc
	stats StatsFunc
}

// NewCollector builds a Collector reporting name, labelled by site,
// from calls to stats at scrape time.
func NewCollector(name, help string, stats StatsFunc) *Collector {
	return &Collector{
		desc:  prometheus.NewDesc(namespace+"_"+name, help, []string{"site"}, nil),
		stats: stats,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for site, v := range c.stats() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(v), site)
	}
}
