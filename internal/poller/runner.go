// internal/poller/runner.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Pinkcliff/codeTest02/internal/status"
)

// Run connects and polls until ctx is done. Blocks.
// A failed initial connect is returned at once and never retried here.
// Later transport failures disconnect and the next tick reconnects.
// One Run per poller at a time; Start enforces that.
func (p *Poller) Run(ctx context.Context) error {
	defer p.disconnect(status.Idle)

	if err := p.connect(); err != nil {
		return fmt.Errorf("poller: initial connect: %w", err)
	}
	p.log.Info("connected")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.cycle(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	if p.client == nil {
		if err := p.connect(); err != nil {
			p.record(false)
			p.log.Warnf("reconnect failed: %v", err)
			return
		}
		p.log.Info("reconnected")
	}

	p.setState(status.Polling)
	res := p.poll(ctx)

	switch {
	case res.Err == nil:
		p.record(true)
		p.setState(status.Connected)
	case errors.Is(res.Err, context.Canceled), errors.Is(res.Err, context.DeadlineExceeded):
		p.setState(status.Connected)
	default:
		p.record(false)
		p.log.Warnf("poll cycle failed, disconnecting: %v", res.Err)
		p.disconnect(status.Disconnected)
	}
}

// Start launches the poll goroutine. It returns false if one is already
// running. A poller whose goroutine has exited may be started again.
func (p *Poller) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runningLocked() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.stats.Alive = true

	go func() {
		defer close(done)
		defer cancel()

		if err := p.Run(ctx); err != nil {
			p.log.Errorf("poller terminated: %v", err)
		}

		p.mu.Lock()
		p.stats.Alive = false
		p.mu.Unlock()
	}()

	return true
}

// Running reports whether the poll goroutine is alive.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

func (p *Poller) runningLocked() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop signals the poll goroutine and waits up to StopTimeout for it to
// exit. It is a no-op on a poller that was never started.
func (p *Poller) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	timer := time.NewTimer(p.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: gateway %s after %s", ErrStopTimeout, p.cfg.GatewayID, p.cfg.StopTimeout)
	}
}
