// internal/acquisition/manager_test.go
package acquisition

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/gatewaysim"
	"github.com/Pinkcliff/codeTest02/internal/poller"
	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

func reading(id string, typ sensor.Type, at time.Time, v float64) sensor.Reading {
	return sensor.Reading{SensorID: id, Type: typ, Value: v, Timestamp: at, Quality: sensor.Good}
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

// simGateway starts a simulator and returns a gateway with n direct-readout
// temperature channels pointed at it.
func simGateway(t *testing.T, id string, n int, interval time.Duration) (sensor.Gateway, *gatewaysim.Server) {
	t.Helper()

	regs := make([]uint16, n)
	for i := range regs {
		regs[i] = uint16(200 + 10*i)
	}
	sim, err := gatewaysim.Listen("127.0.0.1:0", regs, nil)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	t.Cleanup(func() { _ = sim.Close() })

	descs := make([]sensor.Descriptor, n)
	for i := range descs {
		descs[i] = sensor.Descriptor{
			ID:           fmt.Sprintf("tem_ch%02d", i+1),
			Type:         sensor.Temperature,
			SlaveAddr:    1,
			StartReg:     uint16(i),
			RegCount:     1,
			FunctionCode: 4,
			Formula:      sensor.Builtin{},
		}
	}

	return sensor.Gateway{
		ID:        id,
		IP:        "127.0.0.1",
		Port:      sim.Addr().Port,
		Sensors:   descs,
		Interval:  interval,
		Timeout:   time.Second,
		Transport: sensor.RTUOverTCP,
	}, sim
}

func TestIngest_HistoryIsBoundedFIFO(t *testing.T) {
	m := New(nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 1500; i++ {
		m.Ingest(reading(fmt.Sprintf("s%d", i), sensor.Temperature, base.Add(time.Duration(i)*time.Millisecond), float64(i)))
	}

	if got := m.Stats().Buffered; got != 1000 {
		t.Fatalf("expected 1000 buffered, got %d", got)
	}

	m.mu.Lock()
	snap := m.hist.snapshot()
	m.mu.Unlock()
	for i, r := range snap {
		if r.Value != float64(500+i) {
			t.Fatalf("insertion order broken at %d: got %v", i, r.Value)
		}
	}

	out := m.Query(Filter{})
	if len(out) != 1000 {
		t.Fatalf("expected 1000 from Query, got %d", len(out))
	}
	if out[0].Value != 1499 || out[999].Value != 500 {
		t.Fatalf("unexpected ends: first=%v last=%v", out[0].Value, out[999].Value)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.After(out[i-1].Timestamp) {
			t.Fatalf("Query not descending at %d", i)
		}
	}
}

func TestQuery_Filters(t *testing.T) {
	m := New(nil, WithCapacity(10))
	now := time.Now()

	m.Ingest(reading("tem_ch01", sensor.Temperature, now, 1))
	m.Ingest(reading("wind_001", sensor.WindSpeed, now.Add(time.Second), 2))
	m.Ingest(reading("tem_ch01", sensor.Temperature, now.Add(2*time.Second), 3))
	m.Ingest(reading("tem_ch02", sensor.Temperature, now.Add(3*time.Second), 4))

	if got := m.Query(Filter{SensorID: "tem_ch01"}); len(got) != 2 || got[0].Value != 3 {
		t.Fatalf("sensor filter: %+v", got)
	}
	if got := m.Query(Filter{Type: sensor.Temperature}); len(got) != 3 || got[0].Value != 4 {
		t.Fatalf("type filter: %+v", got)
	}
	if got := m.Query(Filter{SensorID: "tem_ch01", Type: sensor.WindSpeed}); len(got) != 0 {
		t.Fatalf("combined filter should be empty: %+v", got)
	}
}

func TestQuery_EqualTimestampsNewestFirst(t *testing.T) {
	m := New(nil)
	at := time.Now()
	m.Ingest(reading("a", sensor.Humidity, at, 1))
	m.Ingest(reading("b", sensor.Humidity, at, 2))

	got := m.Query(Filter{})
	if got[0].SensorID != "b" {
		t.Fatalf("expected newest insertion first, got %s", got[0].SensorID)
	}
}

func TestIngest_ConsumersIsolatedAndOrdered(t *testing.T) {
	m := New(nil)

	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	m.AddConsumer(ConsumerFunc(func(sensor.Reading) error {
		record("panics")
		panic("boom")
	}))
	m.AddConsumer(ConsumerFunc(func(sensor.Reading) error {
		record("fails")
		return errors.New("sink down")
	}))
	m.AddConsumer(ConsumerFunc(func(sensor.Reading) error {
		record("ok")
		return nil
	}))

	m.Ingest(reading("s", sensor.Pressure, time.Now(), 1))

	if len(order) != 3 || order[0] != "panics" || order[1] != "fails" || order[2] != "ok" {
		t.Fatalf("unexpected consumer order %v", order)
	}
	st := m.Stats()
	if st.ConsumerErrors != 2 {
		t.Fatalf("expected 2 consumer errors, got %d", st.ConsumerErrors)
	}
	if st.Buffered != 1 {
		t.Fatalf("storage affected by consumer failure: buffered=%d", st.Buffered)
	}
}

func TestAddGateway_ReplacesSameID(t *testing.T) {
	m := New(nil)
	gw, _ := simGateway(t, "g1", 2, 20*time.Millisecond)

	if err := m.AddGateway(gw); err != nil {
		t.Fatalf("AddGateway err=%v", err)
	}
	m.StartAll()
	waitFor(t, 2*time.Second, func() bool { return m.Stats().Pollers[0].Successes >= 1 })

	gw2, _ := simGateway(t, "g1", 3, 20*time.Millisecond)
	if err := m.AddGateway(gw2); err != nil {
		t.Fatalf("AddGateway replace err=%v", err)
	}

	st := m.Stats()
	if st.Gateways != 1 {
		t.Fatalf("expected 1 gateway after replace, got %d", st.Gateways)
	}
	if st.Pollers[0].Alive || st.Pollers[0].Reads != 0 {
		t.Fatalf("replacement should be a fresh idle poller: %+v", st.Pollers[0])
	}

	if err := m.RemoveGateway("g1"); err != nil {
		t.Fatalf("RemoveGateway err=%v", err)
	}
	if err := m.RemoveGateway("missing"); err != nil {
		t.Fatalf("RemoveGateway absent err=%v", err)
	}
	if m.Stats().Gateways != 0 {
		t.Fatalf("gateway not removed")
	}
}

func TestAddGateway_BuildError(t *testing.T) {
	m := New(nil, WithBuilder(func(sensor.Gateway, poller.EmitFunc, *logrus.Entry) (*poller.Poller, error) {
		return nil, errors.New("bad gateway")
	}))
	if err := m.AddGateway(sensor.Gateway{ID: "x"}); err == nil {
		t.Fatalf("expected build error")
	}
	if m.Stats().Gateways != 0 {
		t.Fatalf("failed gateway must not be registered")
	}
}

func TestStopAll_LeavesNoLivePollers(t *testing.T) {
	m := New(nil)

	var sims []*gatewaysim.Server
	for i := 0; i < 5; i++ {
		gw, sim := simGateway(t, fmt.Sprintf("g%d", i), 3, 20*time.Millisecond)
		sims = append(sims, sim)
		if err := m.AddGateway(gw); err != nil {
			t.Fatalf("AddGateway err=%v", err)
		}
	}

	if n := m.StartAll(); n != 5 {
		t.Fatalf("expected 5 started, got %d", n)
	}
	if n := m.StartAll(); n != 0 {
		t.Fatalf("StartAll must be idempotent, started %d", n)
	}

	waitFor(t, 3*time.Second, func() bool {
		for _, p := range m.Stats().Pollers {
			if p.Successes < 1 {
				return false
			}
		}
		return true
	})

	if err := m.StopAll(); err != nil {
		t.Fatalf("StopAll err=%v", err)
	}
	if err := m.StopAll(); err != nil {
		t.Fatalf("second StopAll err=%v", err)
	}

	for _, p := range m.Stats().Pollers {
		if p.Alive {
			t.Fatalf("poller %s still alive", p.GatewayID)
		}
	}
	for _, sim := range sims {
		waitFor(t, time.Second, func() bool { return sim.OpenConns() == 0 })
	}
}

func TestEndToEnd_TwelveThenZero(t *testing.T) {
	m := New(nil)
	gw, _ := simGateway(t, "temp_module_01", 12, 30*time.Millisecond)

	var mu sync.Mutex
	var got []sensor.Reading
	m.AddConsumer(ConsumerFunc(func(r sensor.Reading) error {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
		return nil
	}))

	if err := m.AddGateway(gw); err != nil {
		t.Fatalf("AddGateway err=%v", err)
	}
	m.StartAll()
	waitFor(t, 3*time.Second, func() bool { return m.Stats().Pollers[0].Successes >= 3 })
	if err := m.StopAll(); err != nil {
		t.Fatalf("StopAll err=%v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 12 {
		t.Fatalf("expected exactly 12 readings over 3+ identical cycles, got %d", len(got))
	}
	for i, r := range got {
		want := fmt.Sprintf("tem_ch%02d", i+1)
		if r.SensorID != want {
			t.Fatalf("reading %d: got %s want %s", i, r.SensorID, want)
		}
	}
	if got[1].Value != 21 {
		t.Fatalf("expected 21.0 for raw 210, got %v", got[1].Value)
	}
	if n := len(m.Query(Filter{})); n != 12 {
		t.Fatalf("expected 12 buffered, got %d", n)
	}
}

func TestAddGateway_StopsOldBeforeBuild(t *testing.T) {
	gw, _ := simGateway(t, "g1", 2, 20*time.Millisecond)

	var (
		m     *Manager
		first *poller.Poller
		calls int
	)
	m = New(nil, WithBuilder(func(g sensor.Gateway, emit poller.EmitFunc, log *logrus.Entry) (*poller.Poller, error) {
		calls++
		if calls == 1 {
			p, err := poller.Build(g, emit, log)
			first = p
			return p, err
		}
		if first.Running() {
			t.Errorf("old poller still running while the replacement is built")
		}
		if n := m.Stats().Gateways; n != 0 {
			t.Errorf("old poller still registered during rebuild: %d", n)
		}
		return nil, errors.New("bad gateway")
	}))

	if err := m.AddGateway(gw); err != nil {
		t.Fatalf("AddGateway err=%v", err)
	}
	m.StartAll()
	waitFor(t, 2*time.Second, func() bool { return m.Stats().Pollers[0].Successes >= 1 })

	if err := m.AddGateway(gw); err == nil {
		t.Fatalf("expected build error on replace")
	}
	if m.Stats().Gateways != 0 {
		t.Fatalf("failed replacement must leave the id unregistered")
	}
}
