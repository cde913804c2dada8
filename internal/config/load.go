// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment overrides for deployment-specific endpoints.
const (
	EnvRedisAddr   = "ACQ_REDIS_ADDR"
	EnvPostgresURL = "ACQ_POSTGRES_URL"
	EnvMQTTBroker  = "ACQ_MQTT_BROKER"
)

// Load reads a YAML file and applies environment overrides.
// It does not validate or normalize.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes. Unknown keys are rejected.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Sinks.Redis.Addr = v
	}
	if v := os.Getenv(EnvPostgresURL); v != "" {
		cfg.Sinks.Postgres.URL = v
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		cfg.Sinks.MQTT.Broker = v
	}
}
