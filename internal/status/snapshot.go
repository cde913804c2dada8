// internal/status/snapshot.go
package status

import "time"

// Snapshot is a point-in-time copy of one poller's counters.
// Reads counts poll cycles attempted; Successes and Failures split them.
type Snapshot struct {
	GatewayID string
	Reads     uint64
	Successes uint64
	Failures  uint64
	LastRead  time.Time
	State     State
	Alive     bool
}

// SuccessRate returns the percentage of successful cycles, 0 with no reads.
func (s Snapshot) SuccessRate() float64 {
	if s.Reads == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Reads) * 100
}
