// internal/sink/redis/writer.go
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

const (
	RealtimeTTL   = time.Hour
	HistoryLen    = 1000
	TimeseriesLen = 10000
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Writer keeps three keys per sensor:
//
//	sensor:<type>:<id>:realtime    hash of the latest sample, expires after an hour
//	sensor:<type>:<id>:history     list of JSON samples, newest first, capped
//	sensor:<type>:<id>:timeseries  sorted set scored by unix seconds, capped
type Writer struct {
	rdb *goredis.Client
}

// Dial connects and pings.
func Dial(ctx context.Context, o Options) (*Writer, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", o.Addr, err)
	}
	return &Writer{rdb: rdb}, nil
}

func (w *Writer) Name() string { return "redis" }

func (w *Writer) Write(ctx context.Context, r sensor.Reading) error {
	m := r.Map()
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	base := Key(r.Type, r.SensorID)
	rt, hist, ts := base+":realtime", base+":history", base+":timeseries"

	_, err = w.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, rt, m)
		p.Expire(ctx, rt, RealtimeTTL)

		p.LPush(ctx, hist, doc)
		p.LTrim(ctx, hist, 0, HistoryLen-1)

		p.ZAdd(ctx, ts, goredis.Z{
			Score:  float64(r.Timestamp.UnixNano()) / 1e9,
			Member: doc,
		})
		p.ZRemRangeByRank(ctx, ts, 0, -(TimeseriesLen + 1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func (w *Writer) Close() error { return w.rdb.Close() }

// Key is the key prefix shared by the three per-sensor keys.
func Key(t sensor.Type, id string) string {
	return fmt.Sprintf("sensor:%s:%s", t, id)
}
