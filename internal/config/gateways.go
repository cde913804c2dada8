// internal/config/gateways.go
package config

import (
	"time"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

// Gateways converts a validated, normalized config into gateway descriptors.
// The conversion formula of each sensor is resolved here, once.
func Gateways(cfg *Config) []sensor.Gateway {
	out := make([]sensor.Gateway, 0, len(cfg.Acquisition.Gateways))

	for _, g := range cfg.Acquisition.Gateways {
		descs := make([]sensor.Descriptor, 0, len(g.Sensors))
		for _, s := range g.Sensors {
			descs = append(descs, sensor.Descriptor{
				ID:           s.ID,
				Type:         sensor.Type(s.Type),
				SlaveAddr:    s.Slave,
				StartReg:     s.Register,
				RegCount:     s.Count,
				FunctionCode: s.FC,
				Formula:      formula(s.Linear),
				Unit:         s.Unit,
			})
		}

		out = append(out, sensor.Gateway{
			ID:        g.ID,
			IP:        g.IP,
			Port:      g.Port,
			Sensors:   descs,
			Interval:  time.Duration(g.IntervalMs) * time.Millisecond,
			Timeout:   time.Duration(g.TimeoutMs) * time.Millisecond,
			Transport: sensor.Transport(g.Transport),
		})
	}

	return out
}

func formula(l *LinearConfig) sensor.Formula {
	if l == nil {
		return sensor.Builtin{}
	}
	return sensor.Linear{Scale: l.Scale, Offset: l.Offset}
}
