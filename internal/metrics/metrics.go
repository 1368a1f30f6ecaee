// Package metrics exposes tally snapshots as Prometheus metrics.
//
// Per-link metrics are Gauges because the counter is sampled: on each
// refresh the GaugeVec is reset, deleting label pairs for links that were
// compacted away, then repopulated from the snapshot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sszokoly/sipcounter/internal/counter"
)

var labelNames = []string{"server", "client", "proto", "server_port", "client_port", "direction", "type"}

// Collector maintains the cached metric set for one counting session.
type Collector struct {
	messages *prometheus.GaugeVec

	totalMessages prometheus.Gauge
	totalLinks    prometheus.Gauge
}

// NewCollector creates the metric set. Register it with MustRegister.
func NewCollector() *Collector {
	c := &Collector{}

	c.messages = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sipcounter_link_messages",
		Help: "Number of SIP messages counted per link, direction and message type.",
	}, labelNames)

	c.totalMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sipcounter_total_messages",
		Help: "Total SIP messages counted across all links.",
	})
	c.totalLinks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sipcounter_total_links",
		Help: "Number of links in the last snapshot.",
	})

	return c
}

// MustRegister registers all metrics into the provided registry.
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.messages, c.totalMessages, c.totalLinks)
}

// Update replaces the cached metrics with the given snapshot.
func (c *Collector) Update(snap counter.Snapshot) {
	c.messages.Reset()

	total := 0
	for key, rows := range snap {
		for dir, tally := range rows {
			for label, n := range tally {
				c.messages.WithLabelValues(
					key.ServerIP, key.ClientIP, key.Proto, key.ServerPort,
					key.ClientPort, string(dir), label,
				).Set(float64(n))
				total += n
			}
		}
	}

	c.totalMessages.Set(float64(total))
	c.totalLinks.Set(float64(len(snap)))
}
