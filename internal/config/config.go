// internal/config/config.go
package config

type Config struct {
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Sinks       SinksConfig       `yaml:"sinks"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

type AcquisitionConfig struct {
	HistoryCapacity  int             `yaml:"history_capacity"`
	ReportIntervalMs int             `yaml:"report_interval_ms"`
	Gateways         []GatewayConfig `yaml:"gateways"`
}

// ---- GATEWAY ----

type GatewayConfig struct {
	ID         string         `yaml:"id"`
	IP         string         `yaml:"ip"`
	Port       int            `yaml:"port"`
	Transport  string         `yaml:"transport"` // rtu_over_tcp (default) | modbus_tcp
	IntervalMs int            `yaml:"interval_ms"`
	TimeoutMs  int            `yaml:"timeout_ms"`
	Sensors    []SensorConfig `yaml:"sensors"`
}

// ---- SENSOR ----

type SensorConfig struct {
	ID       string        `yaml:"id"`
	Type     string        `yaml:"type"`
	Slave    uint8         `yaml:"slave"`
	Register uint16        `yaml:"register"`
	Count    uint16        `yaml:"count"`
	FC       uint8         `yaml:"fc"`
	Unit     string        `yaml:"unit"`
	Linear   *LinearConfig `yaml:"linear"` // optional override of the type formula
}

type LinearConfig struct {
	Scale  float64 `yaml:"scale"`
	Offset float64 `yaml:"offset"`
}

// ---- SINKS ----

type SinksConfig struct {
	Workers   *int           `yaml:"workers"`    // async pool size; 0 writes inline, unset uses the default
	TimeoutMs int            `yaml:"timeout_ms"` // per write
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// ---- METRICS / LOG ----

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}
