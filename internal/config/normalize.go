// internal/config/normalize.go
package config

import (
	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

const (
	DefaultIntervalMs       = 1000
	DefaultTimeoutMs        = 5000
	DefaultHistoryCapacity  = 1000
	DefaultReportIntervalMs = 30000
	DefaultSinkWorkers      = 8
	DefaultSinkTimeoutMs    = 2000
	DefaultMQTTTopicPrefix  = "sensors"
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	a := &cfg.Acquisition
	if a.HistoryCapacity == 0 {
		a.HistoryCapacity = DefaultHistoryCapacity
	}
	if a.ReportIntervalMs == 0 {
		a.ReportIntervalMs = DefaultReportIntervalMs
	}

	for gi := range a.Gateways {
		g := &a.Gateways[gi]

		if g.Transport == "" {
			g.Transport = string(sensor.RTUOverTCP)
		}
		if g.IntervalMs == 0 {
			g.IntervalMs = DefaultIntervalMs
		}
		if g.TimeoutMs == 0 {
			g.TimeoutMs = DefaultTimeoutMs
		}

		for si := range g.Sensors {
			s := &g.Sensors[si]

			if s.FC == 0 {
				s.FC = 4 // read input registers
			}
			if s.Count == 0 {
				s.Count = 1
			}
			if s.Slave == 0 {
				s.Slave = 1
			}
			if s.Unit == "" {
				s.Unit = sensor.Type(s.Type).DefaultUnit()
			}
		}
	}

	if cfg.Sinks.Workers == nil {
		n := DefaultSinkWorkers
		cfg.Sinks.Workers = &n
	}
	if cfg.Sinks.TimeoutMs == 0 {
		cfg.Sinks.TimeoutMs = DefaultSinkTimeoutMs
	}
	if cfg.Sinks.MQTT.TopicPrefix == "" {
		cfg.Sinks.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
