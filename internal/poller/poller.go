// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/convert"
	"github.com/Pinkcliff/codeTest02/internal/sensor"
	"github.com/Pinkcliff/codeTest02/internal/status"
)

// Config is the runtime config the poller needs.
type Config struct {
	GatewayID   string
	Interval    time.Duration
	StopTimeout time.Duration
	Sensors     []sensor.Descriptor
}

// Poller owns one gateway connection and polls its sensors on a clock.
type Poller struct {
	cfg     Config
	factory Factory
	emit    EmitFunc
	log     *logrus.Entry

	// poll goroutine only
	client Client
	last   map[string]float64

	mu     sync.Mutex
	stats  status.Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle poller with immutable config.
func New(cfg Config, factory Factory, emit EmitFunc, log *logrus.Entry) (*Poller, error) {
	if cfg.GatewayID == "" {
		return nil, errors.New("poller: gateway id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Sensors) == 0 {
		return nil, errors.New("poller: at least one sensor required")
	}
	for _, d := range cfg.Sensors {
		if d.RegCount < 1 {
			return nil, fmt.Errorf("poller: sensor %q: register count must be >= 1", d.ID)
		}
	}
	if factory == nil {
		return nil, errors.New("poller: client factory required")
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if emit == nil {
		emit = func(sensor.Reading) {}
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}

	return &Poller{
		cfg:     cfg,
		factory: factory,
		emit:    emit,
		log:     log.WithField("gateway", cfg.GatewayID),
		last:    make(map[string]float64, len(cfg.Sensors)),
		stats:   status.Snapshot{GatewayID: cfg.GatewayID, State: status.Idle},
	}, nil
}

// ID returns the gateway id.
func (p *Poller) ID() string { return p.cfg.GatewayID }

// Stats returns a copy of the counters.
func (p *Poller) Stats() status.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// PollOnce performs exactly one poll cycle on the current connection.
// All-or-nothing: the first failing sensor aborts the cycle.
// Readings that pass change detection are emitted as they are read.
func (p *Poller) PollOnce() PollResult {
	return p.poll(context.Background())
}

// poll observes ctx between sensors so a stop waits for at most one read.
func (p *Poller) poll(ctx context.Context) PollResult {
	res := PollResult{
		GatewayID: p.cfg.GatewayID,
		At:        time.Now(),
	}

	if p.client == nil {
		res.Err = errors.New("poller: not connected")
		return res
	}

	for _, d := range p.cfg.Sensors {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		regs, err := p.client.ReadRegisters(d.FunctionCode, d.SlaveAddr, d.StartReg, d.RegCount)
		if err != nil {
			res.Err = fmt.Errorf("poller: sensor %s: %w", d.ID, err)
			return res
		}
		if len(regs) < int(d.RegCount) {
			res.Err = fmt.Errorf("poller: sensor %s: %w: got=%d want=%d", d.ID, ErrShortRead, len(regs), d.RegCount)
			return res
		}

		raw := regs[0]
		r := sensor.NewReading(d, convert.Convert(d, raw), raw, time.Now())
		res.Readings = append(res.Readings, r)

		if p.changed(r) {
			p.last[r.SensorID] = r.Value
			res.Emitted++
			p.emit(r)
		}
	}

	return res
}

// changed reports whether r differs enough from the last emitted value.
func (p *Poller) changed(r sensor.Reading) bool {
	prev, ok := p.last[r.SensorID]
	return !ok || math.Abs(r.Value-prev) > ChangeThreshold
}

func (p *Poller) setState(s status.State) {
	p.mu.Lock()
	p.stats.State = s
	p.mu.Unlock()
}

func (p *Poller) record(ok bool) {
	p.mu.Lock()
	p.stats.Reads++
	if ok {
		p.stats.Successes++
		p.stats.LastRead = time.Now()
	} else {
		p.stats.Failures++
	}
	p.mu.Unlock()
}

func (p *Poller) connect() error {
	p.setState(status.Connecting)
	c, err := p.factory()
	if err != nil {
		p.setState(status.Disconnected)
		return err
	}
	p.client = c
	p.setState(status.Connected)
	return nil
}

func (p *Poller) disconnect(next status.State) {
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			p.log.Debugf("close: %v", err)
		}
		p.client = nil
	}
	p.setState(next)
}
