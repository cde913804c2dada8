// internal/poller/builder.go
package poller

import (
	"fmt"

	"github.com/sirupsen/logrus"

	pmodbus "github.com/Pinkcliff/codeTest02/internal/poller/modbus"
	"github.com/Pinkcliff/codeTest02/internal/poller/rtu"
	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

// Build constructs an idle Poller and wires the client lifecycle.
// The connection is reused while healthy.
// On transport death the Poller discards the client and uses the factory on
// a future tick. Nothing is dialed until the poller starts.
func Build(gw sensor.Gateway, emit EmitFunc, log *logrus.Entry) (*Poller, error) {
	factory, err := NewFactory(gw)
	if err != nil {
		return nil, err
	}

	return New(
		Config{
			GatewayID: gw.ID,
			Interval:  gw.Interval,
			Sensors:   gw.Sensors,
		},
		factory,
		emit,
		log,
	)
}

// NewFactory returns a dial-once-per-call factory for the gateway transport.
func NewFactory(gw sensor.Gateway) (Factory, error) {
	endpoint := gw.Endpoint()

	switch gw.Transport {
	case sensor.RTUOverTCP, "":
		return func() (Client, error) {
			c, err := rtu.New(rtu.Config{Endpoint: endpoint, Timeout: gw.Timeout})
			if err != nil {
				return nil, err
			}
			return c, nil
		}, nil
	case sensor.ModbusTCP:
		return func() (Client, error) {
			c, err := pmodbus.New(pmodbus.Config{Endpoint: endpoint, Timeout: gw.Timeout})
			if err != nil {
				return nil, err
			}
			return c, nil
		}, nil
	default:
		return nil, fmt.Errorf("poller: gateway %s: unknown transport %q", gw.ID, gw.Transport)
	}
}
