// internal/sink/types.go
package sink

import (
	"context"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

// Writer delivers one reading to one downstream store or bus.
type Writer interface {
	Name() string
	Write(ctx context.Context, r sensor.Reading) error
}

// Closer is implemented by writers that hold connections.
type Closer interface {
	Close() error
}

// Counters mirrors the delivery bookkeeping of the fan-out.
type Counters struct {
	TotalRead uint64
	Saved     map[string]uint64 // per writer name
	Errors    uint64
	Dropped   uint64 // rejected by a saturated worker pool
}
