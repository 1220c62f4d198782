// Package sink writes metric points to a time-series backend.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/config"
	"github.com/tinoosan/seedstat/internal/data"
	"github.com/tinoosan/seedstat/internal/metrics"
)

// Sink accepts batches of points from the poller.
type Sink interface {
	Write(ctx context.Context, points []data.Point) error
	Close() error
}

// New opens the sink selected by cfg.Sink. With general.output set, every
// batch is also echoed to stdout.
func New(ctx context.Context, cfg *config.Root, log zerolog.Logger) (Sink, error) {
	log = log.With().Str("component", "sink").Logger()

	var (
		s   Sink
		err error
	)
	switch cfg.Sink {
	case config.SinkInfluxDB:
		s, err = NewInflux(ctx, cfg.InfluxDB, log)
	case config.SinkPostgres:
		s, err = NewPostgres(ctx, cfg.Postgres.DSN, log)
	case config.SinkConsole:
		s = NewConsole(os.Stdout)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSink, cfg.Sink)
	}
	if err != nil {
		return nil, err
	}

	s = Instrument(cfg.Sink, s)
	if cfg.General.Output && cfg.Sink != config.SinkConsole {
		s = Tee(s, NewConsole(os.Stdout))
	}
	return s, nil
}

// Instrument counts writes of s under the given sink label.
func Instrument(name string, s Sink) Sink { return &instrumented{name: name, Sink: s} }

type instrumented struct {
	name string
	Sink
}

func (i *instrumented) Write(ctx context.Context, points []data.Point) error {
	err := i.Sink.Write(ctx, points)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SinkWrites.WithLabelValues(i.name, result).Inc()
	return err
}

// Tee writes every batch to echo first and then to primary. Echo failures are
// reported alongside, never instead of, the primary result.
func Tee(primary, echo Sink) Sink { return &tee{primary: primary, echo: echo} }

type tee struct {
	primary Sink
	echo    Sink
}

func (t *tee) Write(ctx context.Context, points []data.Point) error {
	echoErr := t.echo.Write(ctx, points)
	return errors.Join(t.primary.Write(ctx, points), echoErr)
}

func (t *tee) Close() error {
	return errors.Join(t.primary.Close(), t.echo.Close())
}
