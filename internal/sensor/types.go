// internal/sensor/types.go
package sensor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the supported sensor kinds.
type Type string

const (
	Temperature Type = "temperature"
	WindSpeed   Type = "wind_speed"
	Pressure    Type = "pressure"
	Humidity    Type = "humidity"
)

// ParseType validates a configured type name.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Temperature, WindSpeed, Pressure, Humidity:
		return t, nil
	}
	return "", fmt.Errorf("sensor: unknown type %q", s)
}

// DefaultUnit is the display unit used when a descriptor does not set one.
func (t Type) DefaultUnit() string {
	switch t {
	case Temperature:
		return "°C"
	case WindSpeed:
		return "m/s"
	case Pressure:
		return "kPa"
	case Humidity:
		return "%RH"
	}
	return ""
}

// Quality of a reading. Always Good until value validation exists.
type Quality string

const (
	Good      Quality = "good"
	Bad       Quality = "bad"
	Uncertain Quality = "uncertain"
)

// Reading is one converted, timestamped observation. Never mutated.
type Reading struct {
	ID        uuid.UUID
	SensorID  string
	Type      Type
	Value     float64
	Raw       uint16
	Timestamp time.Time
	Quality   Quality
	Unit      string
}

// NewReading stamps a fresh reading as good quality.
func NewReading(d Descriptor, value float64, raw uint16, at time.Time) Reading {
	return Reading{
		ID:        uuid.New(),
		SensorID:  d.ID,
		Type:      d.Type,
		Value:     value,
		Raw:       raw,
		Timestamp: at,
		Quality:   Good,
		Unit:      d.DisplayUnit(),
	}
}

// Map returns the document form shared by the storage and publish sinks.
func (r Reading) Map() map[string]any {
	unit := r.Unit
	if unit == "" {
		unit = r.Type.DefaultUnit()
	}
	return map[string]any{
		"sensor_id":   r.SensorID,
		"sensor_type": string(r.Type),
		"value":       r.Value,
		"raw_value":   r.Raw,
		"timestamp":   r.Timestamp.Format(time.RFC3339Nano),
		"quality":     string(r.Quality),
		"unit":        unit,
	}
}
