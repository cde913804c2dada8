// internal/poller/poller_test.go
package poller

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pinkcliff/codeTest02/internal/gatewaysim"
	"github.com/Pinkcliff/codeTest02/internal/sensor"
	"github.com/Pinkcliff/codeTest02/internal/status"
)

type fakeClient struct {
	mu     sync.Mutex
	values map[uint16]uint16 // start register -> raw
	failAt int               // 1-based read index that fails, 0 = never
	short  bool
	block  chan struct{}

	reads  int
	closed bool
}

func (f *fakeClient) ReadRegisters(fc, slave uint8, addr, qty uint16) ([]uint16, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.failAt != 0 && f.reads == f.failAt {
		return nil, errors.New("fail read")
	}
	if f.short {
		return nil, nil
	}
	out := make([]uint16, qty)
	out[0] = f.values[addr]
	return out, nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func sensors(n int) []sensor.Descriptor {
	out := make([]sensor.Descriptor, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sensor.Descriptor{
			ID:           "s" + string(rune('a'+i)),
			Type:         sensor.Temperature,
			SlaveAddr:    1,
			StartReg:     uint16(i),
			RegCount:     1,
			FunctionCode: 4,
			Formula:      sensor.Linear{Scale: 0.01},
		})
	}
	return out
}

func staticFactory(c Client) Factory {
	return func() (Client, error) { return c, nil }
}

// collector records emitted readings.
type collector struct {
	mu  sync.Mutex
	got []sensor.Reading
}

func (c *collector) emit(r sensor.Reading) {
	c.mu.Lock()
	c.got = append(c.got, r)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", d)
}

func TestNew_Validation(t *testing.T) {
	f := staticFactory(&fakeClient{})

	if _, err := New(Config{Interval: time.Second, Sensors: sensors(1)}, f, nil, nil); err == nil {
		t.Fatalf("expected error for missing gateway id")
	}
	if _, err := New(Config{GatewayID: "g", Sensors: sensors(1)}, f, nil, nil); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := New(Config{GatewayID: "g", Interval: time.Second}, f, nil, nil); err == nil {
		t.Fatalf("expected error for no sensors")
	}
	bad := sensors(1)
	bad[0].RegCount = 0
	if _, err := New(Config{GatewayID: "g", Interval: time.Second, Sensors: bad}, f, nil, nil); err == nil {
		t.Fatalf("expected error for zero register count")
	}
	if _, err := New(Config{GatewayID: "g", Interval: time.Second, Sensors: sensors(1)}, nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil factory")
	}
}

func TestPollOnce_Success(t *testing.T) {
	fc := &fakeClient{values: map[uint16]uint16{0: 2000, 1: 2500}}
	col := &collector{}

	p, err := New(Config{GatewayID: "g1", Interval: time.Second, Sensors: sensors(2)}, staticFactory(fc), col.emit, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	if err := p.connect(); err != nil {
		t.Fatalf("connect err=%v", err)
	}

	res := p.PollOnce()
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if len(res.Readings) != 2 || res.Emitted != 2 {
		t.Fatalf("expected 2 readings and 2 emits, got %d/%d", len(res.Readings), res.Emitted)
	}
	if col.got[0].SensorID != "sa" || col.got[1].SensorID != "sb" {
		t.Fatalf("readings not emitted in declared order")
	}
	if col.got[1].Raw != 2500 || math.Abs(col.got[1].Value-25) > 1e-9 {
		t.Fatalf("unexpected reading %+v", col.got[1])
	}
}

func TestPollOnce_FailureAbortsCycle(t *testing.T) {
	fc := &fakeClient{values: map[uint16]uint16{}, failAt: 2}

	p, err := New(Config{GatewayID: "g1", Interval: time.Second, Sensors: sensors(3)}, staticFactory(fc), nil, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	_ = p.connect()

	res := p.PollOnce()
	if res.Err == nil {
		t.Fatalf("expected error, got nil")
	}
	if len(res.Readings) != 1 {
		t.Fatalf("expected 1 reading before failure, got %d", len(res.Readings))
	}
	if fc.readCount() != 2 {
		t.Fatalf("remaining sensors should be skipped, reads=%d", fc.readCount())
	}
}

func TestPollOnce_ShortReadFails(t *testing.T) {
	fc := &fakeClient{short: true}

	p, _ := New(Config{GatewayID: "g1", Interval: time.Second, Sensors: sensors(1)}, staticFactory(fc), nil, nil)
	_ = p.connect()

	if res := p.PollOnce(); !errors.Is(res.Err, ErrShortRead) {
		t.Fatalf("expected short read, got %v", res.Err)
	}
}

func TestPollOnce_ChangeDetection(t *testing.T) {
	fc := &fakeClient{values: map[uint16]uint16{0: 2000}}
	col := &collector{}

	p, _ := New(Config{GatewayID: "g1", Interval: time.Second, Sensors: sensors(1)}, staticFactory(fc), col.emit, nil)
	_ = p.connect()

	steps := []struct {
		raw  uint16
		emit bool
	}{
		{2000, true},  // 20.0, no previous value
		{2005, false}, // 20.05
		{2000, false}, // 20.0 again
		{2020, true},  // 20.2
		{2029, false}, // 20.29 against last emitted 20.2
	}

	for i, s := range steps {
		fc.mu.Lock()
		fc.values[0] = s.raw
		fc.mu.Unlock()

		res := p.PollOnce()
		if res.Err != nil {
			t.Fatalf("step %d: err=%v", i, res.Err)
		}
		if (res.Emitted == 1) != s.emit {
			t.Fatalf("step %d raw=%d: emitted=%d want emit=%v", i, s.raw, res.Emitted, s.emit)
		}
	}
	if col.len() != 2 {
		t.Fatalf("expected 2 emitted readings, got %d", col.len())
	}
}

func TestRun_InitialConnectFailureIsFatal(t *testing.T) {
	var dials atomic.Int32
	factory := func() (Client, error) {
		dials.Add(1)
		return nil, errors.New("refused")
	}

	p, _ := New(Config{GatewayID: "g1", Interval: 10 * time.Millisecond, Sensors: sensors(1)}, factory, nil, nil)
	if !p.Start() {
		t.Fatalf("Start() returned false")
	}
	waitFor(t, time.Second, func() bool { return !p.Running() })

	time.Sleep(50 * time.Millisecond)
	if dials.Load() != 1 {
		t.Fatalf("initial connect must not be retried, dials=%d", dials.Load())
	}
	st := p.Stats()
	if st.Alive || st.State != status.Idle {
		t.Fatalf("expected dead idle poller, got %+v", st)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop after exit err=%v", err)
	}
}

func TestRun_ReconnectsAfterFailure(t *testing.T) {
	first := &fakeClient{values: map[uint16]uint16{}, failAt: 1}
	second := &fakeClient{values: map[uint16]uint16{0: 100}}

	var dials atomic.Int32
	factory := func() (Client, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}

	p, _ := New(Config{GatewayID: "g1", Interval: 10 * time.Millisecond, Sensors: sensors(1)}, factory, nil, nil)
	p.Start()
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return p.Stats().Successes >= 1 })

	if dials.Load() < 2 {
		t.Fatalf("expected a reconnect, dials=%d", dials.Load())
	}
	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	if !closed {
		t.Fatalf("failed connection was not closed")
	}
	if st := p.Stats(); st.Failures < 1 {
		t.Fatalf("failed cycle not counted: %+v", st)
	}
}

func TestStop_TimeoutSurfaced(t *testing.T) {
	fc := &fakeClient{values: map[uint16]uint16{}, block: make(chan struct{})}

	p, _ := New(Config{
		GatewayID:   "g1",
		Interval:    10 * time.Millisecond,
		StopTimeout: 50 * time.Millisecond,
		Sensors:     sensors(1),
	}, staticFactory(fc), nil, nil)
	p.Start()

	waitFor(t, time.Second, func() bool { return p.Stats().State == status.Polling })

	if err := p.Stop(); !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("expected stop timeout, got %v", err)
	}
	if p.Start() {
		t.Fatalf("Start must refuse while the old goroutine is alive")
	}

	close(fc.block)
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop err=%v", err)
	}
	if p.Stats().Alive {
		t.Fatalf("poller still alive after stop")
	}
}

func TestBuild_AgainstSimulator(t *testing.T) {
	regs := make([]uint16, 12)
	for i := range regs {
		regs[i] = uint16(200 + i)
	}
	sim, err := gatewaysim.Listen("127.0.0.1:0", regs, nil)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	defer sim.Close()

	descs := make([]sensor.Descriptor, 12)
	for i := range descs {
		descs[i] = sensor.Descriptor{
			ID: "tem_ch" + string(rune('a'+i)), Type: sensor.Temperature,
			SlaveAddr: 1, StartReg: uint16(i), RegCount: 1, FunctionCode: 4,
			Formula: sensor.Builtin{},
		}
	}

	col := &collector{}
	p, err := Build(sensor.Gateway{
		ID:        "sim",
		IP:        "127.0.0.1",
		Port:      sim.Addr().Port,
		Sensors:   descs,
		Interval:  20 * time.Millisecond,
		Timeout:   time.Second,
		Transport: sensor.RTUOverTCP,
	}, col.emit, nil)
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}

	p.Start()
	waitFor(t, 2*time.Second, func() bool { return p.Stats().Successes >= 3 })
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop err=%v", err)
	}

	if col.len() != 12 {
		t.Fatalf("expected 12 emitted readings, got %d", col.len())
	}
	if col.got[0].Value != 20.0 {
		t.Fatalf("expected 20.0 for raw 200, got %v", col.got[0].Value)
	}
	waitFor(t, time.Second, func() bool { return sim.OpenConns() == 0 })
}

func TestBuild_UnknownTransport(t *testing.T) {
	_, err := Build(sensor.Gateway{ID: "g", Transport: "serial", Interval: time.Second, Sensors: sensors(1)}, nil, nil)
	if err == nil {
		t.Fatalf("expected error for unknown transport")
	}
}
