// internal/poller/types.go
package poller

import (
	"errors"
	"time"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

var (
	// ErrStopTimeout means the poll goroutine did not exit within the stop window.
	ErrStopTimeout = errors.New("poller: stop timed out")
	// ErrShortRead means the gateway returned fewer registers than requested.
	ErrShortRead = errors.New("poller: short register read")
)

// ChangeThreshold is the minimum absolute change that emits a new reading.
const ChangeThreshold = 0.1

// DefaultStopTimeout bounds Stop.
const DefaultStopTimeout = 5 * time.Second

// Client is one gateway connection. Owned by exactly one poll goroutine.
type Client interface {
	ReadRegisters(fc, slave uint8, addr, qty uint16) ([]uint16, error)
	Close() error
}

// Factory opens a new connection. One attempt per call.
type Factory func() (Client, error)

// EmitFunc receives readings that passed change detection.
type EmitFunc func(sensor.Reading)

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	GatewayID string
	At        time.Time

	// Readings holds every sensor read this cycle, in declared order,
	// up to the first failure.
	Readings []sensor.Reading
	Emitted  int

	Err error // non-nil means the poll cycle failed
}
