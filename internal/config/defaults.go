// internal/config/defaults.go
package config

import "fmt"

// Default returns the reference plant layout: one 12 channel direct-readout
// temperature module and one module each for pressure, wind and humidity.
// Sinks are disabled. The result is already normalized.
func Default() *Config {
	temp := make([]SensorConfig, 0, 12)
	for i := 0; i < 12; i++ {
		temp = append(temp, SensorConfig{
			ID:       fmt.Sprintf("tem_ch%02d", i+1),
			Type:     "temperature",
			Register: uint16(i),
		})
	}

	wind := make([]SensorConfig, 0, 4)
	for i := 0; i < 4; i++ {
		wind = append(wind, SensorConfig{
			ID:       fmt.Sprintf("wind_%03d", i+1),
			Type:     "wind_speed",
			Register: uint16(i),
		})
	}

	cfg := &Config{
		Acquisition: AcquisitionConfig{
			Gateways: []GatewayConfig{
				{
					ID:         "temp_module_01",
					IP:         "192.168.0.101",
					Port:       8234,
					IntervalMs: 1000,
					Sensors:    temp,
				},
				{
					ID:         "pressure_module_01",
					IP:         "192.168.0.102",
					Port:       8234,
					IntervalMs: 1000,
					Sensors: []SensorConfig{
						{ID: "pressure_001", Type: "pressure", Register: 0},
						{ID: "pressure_temp_001", Type: "temperature", Register: 1},
					},
				},
				{
					ID:         "wind_module_01",
					IP:         "192.168.0.103",
					Port:       8234,
					IntervalMs: 500,
					Sensors:    wind,
				},
				{
					ID:         "humidity_module_01",
					IP:         "192.168.0.104",
					Port:       8234,
					IntervalMs: 2000,
					Sensors: []SensorConfig{
						{ID: "humidity_001", Type: "humidity", Register: 0},
						{ID: "humidity_temp_001", Type: "temperature", Register: 1},
					},
				},
			},
		},
	}

	Normalize(cfg)
	return cfg
}
