// internal/convert/convert.go
package convert

import (
	"strings"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

// directTempPrefix marks temperature channels that report tenths of a degree
// directly instead of a 4-20 mA loop value.
const directTempPrefix = "tem_"

// Convert maps one raw register to an engineering value.
// Pure. Defined for every uint16.
func Convert(d sensor.Descriptor, raw uint16) float64 {
	if lin, ok := d.Formula.(sensor.Linear); ok {
		return lin.Scale*float64(raw) + lin.Offset
	}
	return Builtin(d.Type, d.ID, raw)
}

// Builtin applies the type-selected formula.
func Builtin(t sensor.Type, id string, raw uint16) float64 {
	v := float64(raw)

	switch t {
	case sensor.Temperature:
		if strings.HasPrefix(id, directTempPrefix) {
			return v / 10.0
		}
		return currentLoop(v)*7.5 - 40
	case sensor.Pressure:
		return currentLoop(v) * 7.5
	case sensor.WindSpeed, sensor.Humidity:
		return v * 0.1
	default:
		return v
	}
}

// currentLoop linearizes a 4-20 mA reading sampled at 249 counts per mA.
func currentLoop(v float64) float64 {
	return v/249 - 4
}
