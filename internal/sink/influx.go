package sink

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	influx "github.com/influxdata/influxdb1-client/v2"
	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/config"
	"github.com/tinoosan/seedstat/internal/data"
)

// writeAttempts bounds how often a failing batch is sent.
const writeAttempts = 3

// Influx writes points to an InfluxDB 1.x database, creating the database
// the first time a write reports it missing.
type Influx struct {
	c        influx.Client
	database string
	log      zerolog.Logger
	backoff  func() backoff.BackOff
}

// NewInflux connects to the server described by cfg.
func NewInflux(ctx context.Context, cfg config.InfluxDB, log zerolog.Logger) (*Influx, error) {
	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}
	addr := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)))
	c, err := influx.NewHTTPClient(influx.HTTPConfig{
		Addr:               addr,
		Username:           cfg.Username,
		Password:           cfg.Password,
		Timeout:            10 * time.Second,
		InsecureSkipVerify: cfg.SSL && !cfg.VerifySSL,
	})
	if err != nil {
		return nil, fmt.Errorf("influxdb client: %w", err)
	}
	log.Info().Str("database", cfg.Database).Msg("Connected to InfluxDB")
	return &Influx{
		c:        c,
		database: cfg.Database,
		log:      log.With().Str("sink", config.SinkInfluxDB).Logger(),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
	}, nil
}

// Write sends points as one batch. Transient failures are retried.
func (s *Influx) Write(ctx context.Context, points []data.Point) error {
	bp, err := s.batch(points)
	if err != nil {
		return err
	}

	created := false
	op := func() error {
		err := s.c.Write(bp)
		if err == nil {
			return nil
		}
		if isDatabaseNotFound(err) && !created {
			s.log.Error().Msgf("Database %s does not exist, attempting to create", s.database)
			created = true
			if cerr := s.createDatabase(); cerr != nil {
				return backoff.Permanent(cerr)
			}
			return s.c.Write(bp)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.backoff(), writeAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		s.log.Error().Err(err).Msg("Failed to write data to InfluxDB")
		return fmt.Errorf("influxdb write: %w", err)
	}
	s.log.Debug().Int("points", len(points)).Msg("Wrote data to InfluxDB")
	return nil
}

func (s *Influx) batch(points []data.Point) (influx.BatchPoints, error) {
	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{Database: s.database})
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		pt, err := influx.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time)
		if err != nil {
			return nil, fmt.Errorf("influxdb point %s: %w", p.Measurement, err)
		}
		bp.AddPoint(pt)
	}
	return bp, nil
}

func (s *Influx) createDatabase() error {
	resp, err := s.c.Query(influx.NewQuery(fmt.Sprintf("CREATE DATABASE %q", s.database), "", ""))
	if err != nil {
		return fmt.Errorf("create database %s: %w", s.database, err)
	}
	if resp.Error() != nil {
		return fmt.Errorf("create database %s: %w", s.database, resp.Error())
	}
	return nil
}

func isDatabaseNotFound(err error) bool {
	return strings.Contains(err.Error(), "database not found")
}

func (s *Influx) Close() error { return s.c.Close() }
