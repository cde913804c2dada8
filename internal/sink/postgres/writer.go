// internal/sink/postgres/writer.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

// DB is the subset of *pgxpool.Pool the writer uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const schema = `
CREATE TABLE IF NOT EXISTS sensor_realtime (
	sensor_id   TEXT PRIMARY KEY,
	sensor_type TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	raw_value   INTEGER NOT NULL,
	unit        TEXT NOT NULL,
	quality     TEXT NOT NULL,
	ts          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sensor_history (
	id          UUID PRIMARY KEY,
	sensor_id   TEXT NOT NULL,
	sensor_type TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	raw_value   INTEGER NOT NULL,
	unit        TEXT NOT NULL,
	quality     TEXT NOT NULL,
	ts          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS sensor_history_sensor_ts ON sensor_history (sensor_id, ts DESC);

CREATE TABLE IF NOT EXISTS sensor_statistics (
	sensor_id   TEXT PRIMARY KEY,
	sensor_type TEXT NOT NULL,
	unit        TEXT NOT NULL,
	read_count  BIGINT NOT NULL,
	min_value   DOUBLE PRECISION NOT NULL,
	max_value   DOUBLE PRECISION NOT NULL,
	last_value  DOUBLE PRECISION NOT NULL,
	first_read  TIMESTAMPTZ NOT NULL,
	last_read   TIMESTAMPTZ NOT NULL
);
`

const upsertRealtime = `
INSERT INTO sensor_realtime (sensor_id, sensor_type, value, raw_value, unit, quality, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (sensor_id) DO UPDATE SET
	sensor_type = EXCLUDED.sensor_type,
	value       = EXCLUDED.value,
	raw_value   = EXCLUDED.raw_value,
	unit        = EXCLUDED.unit,
	quality     = EXCLUDED.quality,
	ts          = EXCLUDED.ts`

const insertHistory = `
INSERT INTO sensor_history (id, sensor_id, sensor_type, value, raw_value, unit, quality, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const upsertStatistics = `
INSERT INTO sensor_statistics (sensor_id, sensor_type, unit, read_count, min_value, max_value, last_value, first_read, last_read)
VALUES ($1, $2, $3, 1, $4, $4, $4, $5, $5)
ON CONFLICT (sensor_id) DO UPDATE SET
	read_count = sensor_statistics.read_count + 1,
	min_value  = LEAST(sensor_statistics.min_value, EXCLUDED.min_value),
	max_value  = GREATEST(sensor_statistics.max_value, EXCLUDED.max_value),
	last_value = EXCLUDED.last_value,
	unit       = EXCLUDED.unit,
	last_read  = EXCLUDED.last_read`

// Writer stores the latest value, the full history and running statistics.
type Writer struct {
	db    DB
	close func()
}

// Connect opens a pool, pings it and makes sure the tables exist.
func Connect(ctx context.Context, url string) (*Writer, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	w := &Writer{db: pool, close: pool.Close}
	if err := w.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return w, nil
}

// New wraps an existing connection. Close is a no-op.
func New(db DB) *Writer {
	return &Writer{db: db}
}

func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

func (w *Writer) Name() string { return "postgres" }

// Write sends the three statements as one batch.
func (w *Writer) Write(ctx context.Context, r sensor.Reading) error {
	unit := r.Unit
	if unit == "" {
		unit = r.Type.DefaultUnit()
	}
	typ := string(r.Type)
	raw := int32(r.Raw)
	ts := r.Timestamp.UTC()

	b := &pgx.Batch{}
	b.Queue(upsertRealtime, r.SensorID, typ, r.Value, raw, unit, string(r.Quality), ts)
	b.Queue(insertHistory, r.ID, r.SensorID, typ, r.Value, raw, unit, string(r.Quality), ts)
	b.Queue(upsertStatistics, r.SensorID, typ, unit, r.Value, ts)

	br := w.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres batch statement %d: %w", i, err)
		}
	}
	return br.Close()
}

func (w *Writer) Close() error {
	if w.close != nil {
		w.close()
	}
	return nil
}
