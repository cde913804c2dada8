// internal/sink/fanout.go
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

// DefaultTimeout bounds a single Write when the caller passes zero.
const DefaultTimeout = 2 * time.Second

// Fanout delivers every consumed reading to all writers.
//
// With workers > 0 writes run on an ants pool and Consume never blocks on
// a slow store. A saturated pool drops the write and counts it. With
// workers == 0 writes run inline and their errors are returned.
type Fanout struct {
	log     *logrus.Entry
	writers []Writer
	timeout time.Duration
	pool    *ants.Pool
	wg      sync.WaitGroup

	total   atomic.Uint64
	errs    atomic.Uint64
	dropped atomic.Uint64
	saved   map[string]*atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewFanout wires writers behind an optional worker pool.
func NewFanout(writers []Writer, workers int, timeout time.Duration, log *logrus.Entry) (*Fanout, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	f := &Fanout{
		log:     log,
		writers: writers,
		timeout: timeout,
		saved:   make(map[string]*atomic.Uint64, len(writers)),
	}
	for _, w := range writers {
		if _, dup := f.saved[w.Name()]; dup {
			return nil, fmt.Errorf("sink: duplicate writer name %q", w.Name())
		}
		f.saved[w.Name()] = new(atomic.Uint64)
	}

	if workers > 0 {
		p, err := ants.NewPool(workers, ants.WithNonblocking(true))
		if err != nil {
			return nil, fmt.Errorf("sink: worker pool: %w", err)
		}
		f.pool = p
	}

	return f, nil
}

// Consume implements acquisition.Consumer.
func (f *Fanout) Consume(r sensor.Reading) error {
	f.total.Add(1)

	if f.pool == nil {
		var errs []error
		for _, w := range f.writers {
			if err := f.write(w, r); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, w := range f.writers {
		w := w
		f.wg.Add(1)
		err := f.pool.Submit(func() {
			defer f.wg.Done()
			_ = f.write(w, r)
		})
		if err != nil {
			f.wg.Done()
			f.dropped.Add(1)
			f.log.WithFields(logrus.Fields{
				"sink":   w.Name(),
				"sensor": r.SensorID,
			}).WithError(err).Warn("sink write dropped")
		}
	}
	return nil
}

func (f *Fanout) write(w Writer, r sensor.Reading) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	defer func() {
		if v := recover(); v != nil {
			f.errs.Add(1)
			f.log.WithFields(logrus.Fields{
				"sink":  w.Name(),
				"panic": v,
			}).Error("sink write panicked")
			err = fmt.Errorf("%s: panic: %v", w.Name(), v)
		}
	}()

	if err := w.Write(ctx, r); err != nil {
		f.errs.Add(1)
		f.log.WithFields(logrus.Fields{
			"sink":   w.Name(),
			"sensor": r.SensorID,
		}).WithError(err).Warn("sink write failed")
		return fmt.Errorf("%s: %w", w.Name(), err)
	}
	f.saved[w.Name()].Add(1)
	return nil
}

// Counters returns a copy of the delivery counters.
func (f *Fanout) Counters() Counters {
	c := Counters{
		TotalRead: f.total.Load(),
		Errors:    f.errs.Load(),
		Dropped:   f.dropped.Load(),
		Saved:     make(map[string]uint64, len(f.saved)),
	}
	for name, n := range f.saved {
		c.Saved[name] = n.Load()
	}
	return c
}

// Flush waits for queued writes to finish.
func (f *Fanout) Flush() { f.wg.Wait() }

// Close drains queued writes, releases the pool and closes writers that
// hold connections. Consume must not be called after Close.
func (f *Fanout) Close() error {
	f.closeOnce.Do(func() {
		f.wg.Wait()
		if f.pool != nil {
			f.pool.Release()
		}
		var errs []error
		for _, w := range f.writers {
			if c, ok := w.(Closer); ok {
				if err := c.Close(); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
				}
			}
		}
		f.closeErr = errors.Join(errs...)
	})
	return f.closeErr
}
