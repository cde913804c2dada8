// internal/sensor/descriptor.go
package sensor

import (
	"net"
	"strconv"
	"time"
)

// Formula selects how a raw register becomes an engineering value.
// It is resolved once when configuration is loaded.
// Exactly two variants exist: Linear and Builtin.
type Formula interface {
	formula()
}

// Linear is the per-sensor override value = Scale*raw + Offset.
type Linear struct {
	Scale  float64
	Offset float64
}

// Builtin selects the formula by sensor type.
type Builtin struct{}

func (Linear) formula()  {}
func (Builtin) formula() {}

// Descriptor is the static configuration of one sensor. Immutable.
type Descriptor struct {
	ID           string
	Type         Type
	SlaveAddr    uint8
	StartReg     uint16
	RegCount     uint16
	FunctionCode uint8
	Formula      Formula
	Unit         string
}

// DisplayUnit returns the configured unit or the type default.
func (d Descriptor) DisplayUnit() string {
	if d.Unit != "" {
		return d.Unit
	}
	return d.Type.DefaultUnit()
}

// Transport names a gateway wire protocol.
type Transport string

const (
	// RTUOverTCP tunnels raw RTU frames (with CRC) over a TCP stream.
	RTUOverTCP Transport = "rtu_over_tcp"
	// ModbusTCP speaks MBAP framed Modbus TCP.
	ModbusTCP Transport = "modbus_tcp"
)

// Gateway is the static configuration of one I/O gateway. Immutable.
type Gateway struct {
	ID        string
	IP        string
	Port      int
	Sensors   []Descriptor
	Interval  time.Duration
	Timeout   time.Duration
	Transport Transport
}

// Endpoint returns host:port.
func (g Gateway) Endpoint() string {
	return net.JoinHostPort(g.IP, strconv.Itoa(g.Port))
}
