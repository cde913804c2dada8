// internal/poller/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Client implements poller.Client over MBAP framed Modbus TCP for gateways
// that terminate the field bus themselves. Not safe for concurrent use.
type Client struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// New connects to the gateway.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus client: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus client: connect %s: %w", cfg.Endpoint, err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ReadRegisters reads holding (3) or input (4) registers from slave.
func (c *Client) ReadRegisters(fc, slave uint8, addr, qty uint16) ([]uint16, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("modbus client: not connected")
	}

	c.handler.SlaveId = slave

	var (
		b   []byte
		err error
	)
	switch fc {
	case 3:
		b, err = c.client.ReadHoldingRegisters(addr, qty)
	case 4:
		b, err = c.client.ReadInputRegisters(addr, qty)
	default:
		return nil, fmt.Errorf("modbus client: unsupported function code %d", fc)
	}
	if err != nil {
		return nil, fmt.Errorf("modbus client: fc=%d addr=%d qty=%d: %w", fc, addr, qty, err)
	}
	return unpackRegisters(b), nil
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
