package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/data"
)

// Postgres stores points in a metric_points table with tags and fields as
// JSONB.
type Postgres struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPostgres opens the database, verifies the connection and creates the
// table when missing.
func NewPostgres(ctx context.Context, dsn string, log zerolog.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Postgres{db: db, log: log.With().Str("sink", "postgres").Logger()}
	if err := s.ensureSchema(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) Close() error { return s.db.Close() }

func (s *Postgres) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS metric_points (
    id BIGSERIAL PRIMARY KEY,
    measurement TEXT NOT NULL,
    time TIMESTAMPTZ NOT NULL,
    tags JSONB NOT NULL,
    fields JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS metric_points_measurement_time ON metric_points (measurement, time);
`)
	return err
}

type pointRow struct {
	measurement string
	time        time.Time
	tags        []byte
	fields      []byte
}

func toRow(p data.Point) (pointRow, error) {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return pointRow{}, err
	}
	fields, err := json.Marshal(p.Fields)
	if err != nil {
		return pointRow{}, err
	}
	return pointRow{measurement: p.Measurement, time: p.Time.UTC(), tags: tags, fields: fields}, nil
}

// Write inserts all points in one transaction.
func (s *Postgres) Write(ctx context.Context, points []data.Point) error {
	rows := make([]pointRow, 0, len(points))
	for _, p := range points {
		r, err := toRow(p)
		if err != nil {
			return fmt.Errorf("encode point %s: %w", p.Measurement, err)
		}
		rows = append(rows, r)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO metric_points (measurement,time,tags,fields) VALUES ($1,$2,$3,$4)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.measurement, r.time, string(r.tags), string(r.fields)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug().Int("points", len(points)).Msg("Wrote data to postgres")
	return nil
}
