// internal/poller/rtu/client.go
package rtu

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Pinkcliff/codeTest02/internal/frame"
)

// maxFrame bounds one response: 3 header + 255 payload + 2 crc.
const maxFrame = 260

// Client implements poller.Client with RTU frames tunnelled over TCP.
// One request in flight. Not safe for concurrent use.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	buf     []byte
}

// Config is minimal transport config.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// New dials the gateway. Connect and I/O share the timeout.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("rtu client: endpoint required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("rtu client: timeout must be > 0")
	}

	conn, err := net.DialTimeout("tcp", cfg.Endpoint, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("rtu client: dial %s: %w", cfg.Endpoint, err)
	}

	return &Client{
		conn:    conn,
		timeout: cfg.Timeout,
		buf:     make([]byte, 0, maxFrame),
	}, nil
}

// Close closes the TCP connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ReadRegisters sends one read request and returns the decoded registers.
func (c *Client) ReadRegisters(fc, slave uint8, addr, qty uint16) ([]uint16, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New("rtu client: not connected")
	}

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("rtu client: deadline: %w", err)
	}

	req := frame.BuildRequest(slave, addr, qty, fc)
	if err := writeAll(c.conn, req); err != nil {
		return nil, fmt.Errorf("rtu client: write: %w", err)
	}

	raw, err := c.readFrame()
	if err != nil {
		return nil, err
	}

	res, err := frame.ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	return res.Registers, nil
}

// readFrame accumulates bytes until the declared frame length is present.
// The connection deadline bounds the whole read.
func (c *Client) readFrame() ([]byte, error) {
	c.buf = c.buf[:0]
	var chunk [64]byte

	for {
		n, err := c.conn.Read(chunk[:])
		c.buf = append(c.buf, chunk[:n]...)

		if want, ok := frame.ExpectedLength(c.buf); ok && len(c.buf) >= want {
			return c.buf[:want], nil
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, fmt.Errorf("rtu client: read timeout after %d bytes: %w", len(c.buf), err)
			}
			return nil, fmt.Errorf("rtu client: read: %w", err)
		}
		if len(c.buf) >= maxFrame {
			return nil, fmt.Errorf("rtu client: response exceeds %d bytes", maxFrame)
		}
	}
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
