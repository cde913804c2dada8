// internal/acquisition/manager.go
package acquisition

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/poller"
	"github.com/Pinkcliff/codeTest02/internal/sensor"
	"github.com/Pinkcliff/codeTest02/internal/status"
)

// Consumer receives every reading that passed change detection.
// It runs synchronously in the ingest path and must not block for long.
type Consumer interface {
	Consume(r sensor.Reading) error
}

// ConsumerFunc adapts a plain function.
type ConsumerFunc func(r sensor.Reading) error

func (f ConsumerFunc) Consume(r sensor.Reading) error { return f(r) }

// BuildFunc constructs a poller bound to emit.
type BuildFunc func(gw sensor.Gateway, emit poller.EmitFunc, log *logrus.Entry) (*poller.Poller, error)

// Filter narrows Query. Zero fields match everything.
type Filter struct {
	SensorID string
	Type     sensor.Type
}

// Stats is the aggregate view returned by Manager.Stats.
type Stats struct {
	Gateways       int
	Pollers        []status.Snapshot // sorted by gateway id
	Buffered       int
	ConsumerErrors uint64
}

// Manager owns the gateway pollers, the shared history and the consumers.
type Manager struct {
	log   *logrus.Entry
	build BuildFunc

	// gateway set; never held while ingesting
	gmu     sync.Mutex
	pollers map[string]*poller.Poller

	mu             sync.Mutex
	hist           *history
	consumers      []Consumer
	consumerErrors uint64
}

// Option customizes a Manager.
type Option func(*Manager)

// WithCapacity sets the history capacity.
func WithCapacity(n int) Option {
	return func(m *Manager) { m.hist = newHistory(n) }
}

// WithBuilder replaces poller.Build, mainly for tests.
func WithBuilder(b BuildFunc) Option {
	return func(m *Manager) { m.build = b }
}

// New creates an empty manager.
func New(log *logrus.Entry, opts ...Option) *Manager {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	m := &Manager{
		log:     log,
		build:   poller.Build,
		pollers: make(map[string]*poller.Poller),
		hist:    newHistory(DefaultCapacity),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// AddGateway registers an idle poller for gw. An existing gateway with the
// same id is stopped and discarded first; if the new build then fails the
// id stays unregistered.
func (m *Manager) AddGateway(gw sensor.Gateway) error {
	m.gmu.Lock()
	old := m.pollers[gw.ID]
	delete(m.pollers, gw.ID)
	m.gmu.Unlock()

	if old != nil {
		m.log.WithField("gateway", gw.ID).Info("replacing gateway")
		if err := old.Stop(); err != nil {
			m.log.WithField("gateway", gw.ID).Errorf("stop replaced poller: %v", err)
		}
	}

	p, err := m.build(gw, m.Ingest, m.log)
	if err != nil {
		return fmt.Errorf("acquisition: gateway %s: %w", gw.ID, err)
	}

	m.gmu.Lock()
	m.pollers[gw.ID] = p
	m.gmu.Unlock()
	return nil
}

// RemoveGateway stops and discards a gateway. No-op if absent.
func (m *Manager) RemoveGateway(id string) error {
	m.gmu.Lock()
	p := m.pollers[id]
	delete(m.pollers, id)
	m.gmu.Unlock()

	if p == nil {
		return nil
	}
	return p.Stop()
}

// StartAll starts every poller that is not running.
// It returns how many were started.
func (m *Manager) StartAll() int {
	started := 0
	for _, p := range m.list() {
		if p.Start() {
			started++
		}
	}
	if started > 0 {
		m.log.Infof("started %d gateway pollers", started)
	}
	return started
}

// StopAll stops every poller concurrently and joins their stop errors.
func (m *Manager) StopAll() error {
	ps := m.list()

	errs := make([]error, len(ps))
	var wg sync.WaitGroup
	for i, p := range ps {
		wg.Add(1)
		go func(i int, p *poller.Poller) {
			defer wg.Done()
			errs[i] = p.Stop()
		}(i, p)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// AddConsumer appends a fan-out target.
func (m *Manager) AddConsumer(c Consumer) {
	m.mu.Lock()
	m.consumers = append(m.consumers, c)
	m.mu.Unlock()
}

// Ingest stores r and fans it out. Called from poller goroutines.
// Consumers run outside the lock, in registration order, each isolated.
func (m *Manager) Ingest(r sensor.Reading) {
	m.mu.Lock()
	m.hist.push(r)
	consumers := m.consumers
	m.mu.Unlock()

	for i, c := range consumers {
		if err := m.deliver(c, r); err != nil {
			m.mu.Lock()
			m.consumerErrors++
			m.mu.Unlock()
			m.log.WithField("consumer", i).WithField("sensor_id", r.SensorID).Errorf("consumer failed: %v", err)
		}
	}
}

func (m *Manager) deliver(c Consumer, r sensor.Reading) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return c.Consume(r)
}

// Query returns buffered readings matching f, newest first.
func (m *Manager) Query(f Filter) []sensor.Reading {
	m.mu.Lock()
	snap := m.hist.snapshot()
	m.mu.Unlock()

	out := snap[:0]
	for _, r := range snap {
		if f.SensorID != "" && r.SensorID != f.SensorID {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		out = append(out, r)
	}

	// Reverse first so equal timestamps keep newest-insertion-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Stats returns gateway count, per-poller snapshots and buffered total.
func (m *Manager) Stats() Stats {
	ps := m.list()

	st := Stats{
		Gateways: len(ps),
		Pollers:  make([]status.Snapshot, 0, len(ps)),
	}
	for _, p := range ps {
		st.Pollers = append(st.Pollers, p.Stats())
	}

	m.mu.Lock()
	st.Buffered = m.hist.len()
	st.ConsumerErrors = m.consumerErrors
	m.mu.Unlock()

	return st
}

// list returns the pollers sorted by gateway id.
func (m *Manager) list() []*poller.Poller {
	m.gmu.Lock()
	out := make([]*poller.Poller, 0, len(m.pollers))
	for _, p := range m.pollers {
		out = append(out, p)
	}
	m.gmu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
