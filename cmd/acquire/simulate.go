// cmd/acquire/simulate.go
package main

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/gatewaysim"
	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

type simulators []*gatewaysim.Server

func (s simulators) Close() error {
	var errs []error
	for _, srv := range s {
		errs = append(errs, srv.Close())
	}
	return errors.Join(errs...)
}

// startSimulators binds one simulator per gateway on localhost and points
// the gateway at it. Register values drift every few seconds.
func startSimulators(ctx context.Context, gws []sensor.Gateway, log *logrus.Entry) (simulators, error) {
	var sims simulators

	for i := range gws {
		gw := &gws[i]
		regs := baseline(gw.Sensors)

		srv, err := gatewaysim.Listen("127.0.0.1:0", regs, log.WithField("gateway", gw.ID))
		if err != nil {
			_ = sims.Close()
			return nil, err
		}
		sims = append(sims, srv)

		gw.IP = "127.0.0.1"
		gw.Port = srv.Addr().Port
		gw.Transport = sensor.RTUOverTCP
		log.WithFields(logrus.Fields{
			"gateway":  gw.ID,
			"endpoint": gw.Endpoint(),
		}).Info("simulated gateway listening")

		go drift(ctx, srv, regs)
	}
	return sims, nil
}

// baseline picks raw values that convert to plausible readings.
func baseline(ds []sensor.Descriptor) []uint16 {
	var size int
	for _, d := range ds {
		if end := int(d.StartReg) + int(d.RegCount); end > size {
			size = end
		}
	}
	regs := make([]uint16, size)
	for _, d := range ds {
		regs[d.StartReg] = rawFor(d)
	}
	return regs
}

func rawFor(d sensor.Descriptor) uint16 {
	switch d.Type {
	case sensor.Temperature:
		if strings.HasPrefix(d.ID, "tem_") {
			return 215 // 21.5 °C
		}
		return 1394 // about 20 °C on a 4-20 mA loop
	case sensor.Pressure:
		return 1328 // about 10 kPa
	case sensor.WindSpeed:
		return 35
	case sensor.Humidity:
		return 456
	}
	return 0
}

func drift(ctx context.Context, srv *gatewaysim.Server, base []uint16) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	t := time.NewTicker(3 * time.Second)
	defer t.Stop()

	cur := make([]uint16, len(base))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for i, v := range base {
				if v == 0 {
					continue
				}
				cur[i] = uint16(int(v) + rng.Intn(11) - 5)
			}
			srv.SetRegisters(cur)
		}
	}
}
