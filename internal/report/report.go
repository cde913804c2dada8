// internal/report/report.go
package report

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/acquisition"
	"github.com/Pinkcliff/codeTest02/internal/sink"
)

type Gateway struct {
	ID          string
	Reads       uint64
	Successes   uint64
	Failures    uint64
	SuccessRate float64 // percent
	State       string
	Alive       bool
	LastRead    time.Time
}

type Report struct {
	At             time.Time
	Gateways       []Gateway
	Buffered       int
	ConsumerErrors uint64
	Sinks          sink.Counters
}

// Source yields the numbers a report is built from.
type Source func() (acquisition.Stats, sink.Counters)

func Build(st acquisition.Stats, c sink.Counters) Report {
	r := Report{
		At:             time.Now(),
		Buffered:       st.Buffered,
		ConsumerErrors: st.ConsumerErrors,
		Sinks:          c,
		Gateways:       make([]Gateway, 0, len(st.Pollers)),
	}
	for _, p := range st.Pollers {
		r.Gateways = append(r.Gateways, Gateway{
			ID:          p.GatewayID,
			Reads:       p.Reads,
			Successes:   p.Successes,
			Failures:    p.Failures,
			SuccessRate: p.SuccessRate(),
			State:       p.State.String(),
			Alive:       p.Alive,
			LastRead:    p.LastRead,
		})
	}
	return r
}

// Log writes one line per gateway and one summary line.
func (r Report) Log(log *logrus.Entry) {
	for _, g := range r.Gateways {
		log.WithFields(logrus.Fields{
			"gateway":      g.ID,
			"reads":        g.Reads,
			"failures":     g.Failures,
			"success_rate": roundPct(g.SuccessRate),
			"state":        g.State,
			"alive":        g.Alive,
		}).Info("gateway stats")
	}

	fields := logrus.Fields{
		"gateways":        len(r.Gateways),
		"buffered":        r.Buffered,
		"consumer_errors": r.ConsumerErrors,
		"total_read":      r.Sinks.TotalRead,
		"sink_errors":     r.Sinks.Errors,
		"sink_dropped":    r.Sinks.Dropped,
	}
	for name, n := range r.Sinks.Saved {
		fields["saved_"+name] = n
	}
	log.WithFields(fields).Info("acquisition stats")
}

// Run logs a report every interval until ctx is done.
// A non-positive interval disables reporting.
func Run(ctx context.Context, interval time.Duration, src Source, log *logrus.Entry) {
	if interval <= 0 {
		log.WithField("interval", interval).Warn("stats report disabled")
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			Build(src()).Log(log)
		}
	}
}

func roundPct(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
