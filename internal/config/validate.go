// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Zero values that Normalize fills in are accepted.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	if cfg.Acquisition.HistoryCapacity < 0 {
		return fmt.Errorf("history_capacity must be >= 0, got %d", cfg.Acquisition.HistoryCapacity)
	}
	if cfg.Acquisition.ReportIntervalMs < 0 {
		return fmt.Errorf("report_interval_ms must be >= 0, got %d", cfg.Acquisition.ReportIntervalMs)
	}
	if len(cfg.Acquisition.Gateways) == 0 {
		return errors.New("at least one gateway is required")
	}

	gatewayIDs := make(map[string]struct{})
	// sensor ids are global: history and sinks key on them
	sensorOwner := make(map[string]string)

	for _, g := range cfg.Acquisition.Gateways {
		if g.ID == "" {
			return errors.New("gateway id is required")
		}
		if _, dup := gatewayIDs[g.ID]; dup {
			return fmt.Errorf("gateway %q: duplicate id", g.ID)
		}
		gatewayIDs[g.ID] = struct{}{}

		if net.ParseIP(g.IP) == nil {
			return fmt.Errorf("gateway %q: invalid ip %q", g.ID, g.IP)
		}
		if g.Port <= 0 || g.Port > 65535 {
			return fmt.Errorf("gateway %q: port out of range: %d", g.ID, g.Port)
		}
		switch sensor.Transport(g.Transport) {
		case "", sensor.RTUOverTCP, sensor.ModbusTCP:
		default:
			return fmt.Errorf("gateway %q: unknown transport %q", g.ID, g.Transport)
		}
		if g.IntervalMs < 0 || g.TimeoutMs < 0 {
			return fmt.Errorf("gateway %q: interval_ms and timeout_ms must be >= 0", g.ID)
		}
		if len(g.Sensors) == 0 {
			return fmt.Errorf("gateway %q: at least one sensor is required", g.ID)
		}

		for _, s := range g.Sensors {
			if s.ID == "" {
				return fmt.Errorf("gateway %q: sensor id is required", g.ID)
			}
			if prev, dup := sensorOwner[s.ID]; dup {
				return fmt.Errorf(
					"sensor id collision: %q used by gateways %q and %q",
					s.ID,
					prev,
					g.ID,
				)
			}
			sensorOwner[s.ID] = g.ID

			if _, err := sensor.ParseType(s.Type); err != nil {
				return fmt.Errorf("gateway %q: sensor %q: %w", g.ID, s.ID, err)
			}
			switch s.FC {
			case 0, 3, 4:
			default:
				return fmt.Errorf("gateway %q: sensor %q: unsupported fc %d (want 3 or 4)", g.ID, s.ID, s.FC)
			}
			// count 0 means "use the default of 1"
			if s.Count > 125 {
				return fmt.Errorf("gateway %q: sensor %q: count %d exceeds 125", g.ID, s.ID, s.Count)
			}
		}
	}

	if err := validateSinks(cfg.Sinks); err != nil {
		return err
	}

	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", cfg.Log.Format)
	}

	return nil
}

func validateSinks(s SinksConfig) error {
	if s.Workers != nil && *s.Workers < 0 {
		return fmt.Errorf("sinks: workers must be >= 0, got %d", *s.Workers)
	}
	if s.Redis.Enabled && s.Redis.Addr == "" {
		return errors.New("sinks: redis enabled but addr is empty")
	}
	if s.Postgres.Enabled && s.Postgres.URL == "" {
		return errors.New("sinks: postgres enabled but url is empty")
	}
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		return errors.New("sinks: mqtt enabled but broker is empty")
	}
	if s.MQTT.QoS > 2 {
		return fmt.Errorf("sinks: mqtt qos must be 0..2, got %d", s.MQTT.QoS)
	}
	return nil
}
