// internal/sink/builder.go
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/config"
	"github.com/Pinkcliff/codeTest02/internal/sink/mqtt"
	"github.com/Pinkcliff/codeTest02/internal/sink/postgres"
	"github.com/Pinkcliff/codeTest02/internal/sink/redis"
)

// Build connects every enabled sink and wraps them in one Fanout.
// It returns nil when no sink is enabled. Connection failures are fatal;
// writers already opened are closed again.
func Build(ctx context.Context, cfg config.SinksConfig, log *logrus.Entry) (*Fanout, error) {
	var writers []Writer

	fail := func(err error) (*Fanout, error) {
		for _, w := range writers {
			if c, ok := w.(Closer); ok {
				_ = c.Close()
			}
		}
		return nil, err
	}

	if cfg.Redis.Enabled {
		w, err := redis.Dial(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fail(err)
		}
		writers = append(writers, w)
	}

	if cfg.Postgres.Enabled {
		w, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, w)
	}

	if cfg.MQTT.Enabled {
		w, err := mqtt.Dial(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, log)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, w)
	}

	if len(writers) == 0 {
		return nil, nil
	}

	workers := 0
	if cfg.Workers != nil {
		workers = *cfg.Workers
	}
	f, err := NewFanout(writers, workers, time.Duration(cfg.TimeoutMs)*time.Millisecond, log)
	if err != nil {
		return fail(fmt.Errorf("sink fanout: %w", err))
	}
	for _, w := range writers {
		log.WithField("sink", w.Name()).Info("sink enabled")
	}
	return f, nil
}
