// cmd/acquire/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/acquisition"
	"github.com/Pinkcliff/codeTest02/internal/config"
	"github.com/Pinkcliff/codeTest02/internal/metrics"
	"github.com/Pinkcliff/codeTest02/internal/report"
	"github.com/Pinkcliff/codeTest02/internal/sink"
)

func main() {
	cfgPath := flag.String("config", "", "path to config yaml; the built-in plant layout is used when empty")
	simulate := flag.Bool("simulate", false, "serve every gateway from an in-process simulator on localhost")
	metricsAddr := flag.String("metrics", "", "metrics listen address, overrides the config")
	flag.Parse()

	logger := logrus.New()
	log := logrus.NewEntry(logger).WithField("app", "acquire")

	// --------------------
	// Load + validate config
	// --------------------

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.WithError(err).Fatal("config load failed")
		}
		if err := config.Validate(cfg); err != nil {
			log.WithError(err).Fatal("config validation failed")
		}
		config.Normalize(cfg)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}
	setupLogger(logger, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateways := config.Gateways(cfg)
	if *simulate {
		sims, err := startSimulators(ctx, gateways, log.WithField("component", "gatewaysim"))
		if err != nil {
			log.WithError(err).Fatal("simulator start failed")
		}
		defer sims.Close()
	}

	// --------------------
	// Manager + consumers
	// --------------------

	mgr := acquisition.New(log.WithField("component", "acquisition"),
		acquisition.WithCapacity(cfg.Acquisition.HistoryCapacity))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	mgr.AddConsumer(collector)

	fanout, err := sink.Build(ctx, cfg.Sinks, log.WithField("component", "sink"))
	if err != nil {
		log.WithError(err).Fatal("sink setup failed")
	}
	if fanout != nil {
		mgr.AddConsumer(fanout)
	}

	for _, gw := range gateways {
		if err := mgr.AddGateway(gw); err != nil {
			log.WithError(err).WithField("gateway", gw.ID).Fatal("gateway setup failed")
		}
	}

	// --------------------
	// Run
	// --------------------

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg, log.WithField("component", "metrics")); err != nil {
				log.WithError(err).Error("metrics endpoint failed")
			}
		}()
	}

	source := func() (acquisition.Stats, sink.Counters) {
		st := mgr.Stats()
		collector.Observe(st)
		var c sink.Counters
		if fanout != nil {
			c = fanout.Counters()
		}
		return st, c
	}
	go observe(ctx, collector, mgr)
	go report.Run(ctx, time.Duration(cfg.Acquisition.ReportIntervalMs)*time.Millisecond, source,
		log.WithField("component", "report"))

	started := mgr.StartAll()
	log.WithFields(logrus.Fields{
		"gateways": len(gateways),
		"started":  started,
	}).Info("acquisition running")

	<-ctx.Done()
	log.Info("shutting down")

	if err := mgr.StopAll(); err != nil {
		log.WithError(err).Warn("pollers did not stop cleanly")
	}
	if fanout != nil {
		if err := fanout.Close(); err != nil {
			log.WithError(err).Warn("sink close failed")
		}
	}
	report.Build(source()).Log(log.WithField("component", "report"))
}

func setupLogger(l *logrus.Logger, c config.LogConfig) {
	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(c.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
}

// observe refreshes gateway metrics between reports.
func observe(ctx context.Context, c *metrics.Collector, mgr *acquisition.Manager) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Observe(mgr.Stats())
		}
	}
}
