// internal/metrics/collector.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pinkcliff/codeTest02/internal/acquisition"
	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

// Collector exports sensor values as they are ingested and gateway
// counters from the last observed manager stats.
type Collector struct {
	values   *prometheus.GaugeVec
	readings *prometheus.CounterVec

	reads     *prometheus.Desc
	failures  *prometheus.Desc
	connected *prometheus.Desc
	buffered  *prometheus.Desc

	mu   sync.Mutex
	last acquisition.Stats
}

// NewCollector creates the collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "acq_sensor_value",
			Help: "Last converted value per sensor",
		}, []string{"sensor_id", "type"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acq_readings_total",
			Help: "Readings ingested after change detection",
		}, []string{"type"}),

		reads: prometheus.NewDesc("acq_gateway_reads_total",
			"Poll cycles attempted", []string{"gateway"}, nil),
		failures: prometheus.NewDesc("acq_gateway_failures_total",
			"Poll cycles failed", []string{"gateway"}, nil),
		connected: prometheus.NewDesc("acq_gateway_connected",
			"1 while the gateway connection is up", []string{"gateway"}, nil),
		buffered: prometheus.NewDesc("acq_history_buffered",
			"Readings held in the history buffer", nil, nil),
	}

	reg.MustRegister(c.values, c.readings, c)
	return c
}

// Consume implements acquisition.Consumer.
func (c *Collector) Consume(r sensor.Reading) error {
	c.values.WithLabelValues(r.SensorID, string(r.Type)).Set(r.Value)
	c.readings.WithLabelValues(string(r.Type)).Inc()
	return nil
}

// Observe replaces the stats exported on the next scrape.
func (c *Collector) Observe(st acquisition.Stats) {
	c.mu.Lock()
	c.last = st
	c.mu.Unlock()
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reads
	ch <- c.failures
	ch <- c.connected
	ch <- c.buffered
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	st := c.last
	c.mu.Unlock()

	for _, p := range st.Pollers {
		up := 0.0
		if p.State.Online() {
			up = 1
		}
		ch <- prometheus.MustNewConstMetric(c.reads, prometheus.CounterValue, float64(p.Reads), p.GatewayID)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(p.Failures), p.GatewayID)
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, up, p.GatewayID)
	}
	ch <- prometheus.MustNewConstMetric(c.buffered, prometheus.GaugeValue, float64(st.Buffered))
}
