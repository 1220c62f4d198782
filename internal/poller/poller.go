// Package poller drives the fetch, aggregate and write cycle.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/aggregate"
	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/metrics"
	"github.com/tinoosan/seedstat/internal/reqid"
	"github.com/tinoosan/seedstat/internal/sink"
)

// Status describes the most recent cycles.
type Status struct {
	LastCycle   time.Time
	LastSuccess time.Time
	LastError   string
	Torrents    int
	Cycles      int64
}

// Poller polls one client and writes its metrics to one sink, sleeping delay
// between cycles.
type Poller struct {
	client client.Client
	sink   sink.Sink
	delay  time.Duration
	host   string
	log    zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	status Status

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Poller. host is used as the "host" tag on every point.
func New(log zerolog.Logger, c client.Client, s sink.Sink, delay time.Duration, host string) *Poller {
	return &Poller{
		client: c,
		sink:   s,
		delay:  delay,
		host:   host,
		log:    log.With().Str("component", "poller").Logger(),
		now:    time.Now,
	}
}

// Run starts the poll loop in a goroutine. The first cycle runs immediately.
func (p *Poller) Run(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		t := time.NewTimer(0)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, aggregate.ErrNoData) {
				p.log.Error().Err(err).Msg("poll cycle failed")
			}
			t.Reset(p.delay)
		}
	}()
}

// Stop cancels the loop and waits for the cycle in flight to finish.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// RunOnce performs a single cycle. aggregate.ErrNoData is returned when the
// client reported no torrents; nothing is written in that case. Torrent and
// tracker points are written independently so one failed write does not
// drop the other.
func (p *Poller) RunOnce(ctx context.Context) (err error) {
	ctx, id := reqid.New(ctx)
	lg := p.log.With().Str("cycle_id", id).Logger()
	start := p.now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
		p.record(start, err)
	}()

	lg.Debug().Msgf("Attempting to get all torrents from %s", p.client.Name())
	p.client.GetAllTorrents(ctx)
	ts := p.client.Torrents()
	metrics.Torrents.Set(float64(len(ts)))
	p.setTorrents(len(ts))

	p.refreshPlugins(ctx, lg)

	tags := aggregate.Tags{Host: p.host, Client: p.client.Name(), Time: start.UTC()}
	points, err := aggregate.BuildMetricPoints(ts, tags)
	if err != nil {
		if !errors.Is(err, aggregate.ErrNoData) {
			metrics.Polls.WithLabelValues("error").Inc()
			return err
		}
		if fr, ok := p.client.(client.FetchReporter); ok {
			if ferr := fr.LastFetchError(); ferr != nil {
				metrics.Polls.WithLabelValues("error").Inc()
				return fmt.Errorf("fetch torrents: %w", ferr)
			}
		}
		lg.Info().Msg("No torrent data, skipping write")
		metrics.Polls.WithLabelValues("empty").Inc()
		return err
	}

	var errs []error
	if err := p.sink.Write(ctx, points); err != nil {
		errs = append(errs, fmt.Errorf("write torrent points: %w", err))
	}
	trackers, err := aggregate.BuildTrackerPoints(ts, tags)
	if err == nil {
		err = p.sink.Write(ctx, trackers)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("write tracker points: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		metrics.Polls.WithLabelValues("error").Inc()
		return err
	}

	metrics.Polls.WithLabelValues("success").Inc()
	lg.Info().Int("torrents", len(ts)).Int("trackers", len(trackers)).Msg("poll cycle complete")
	return nil
}

func (p *Poller) refreshPlugins(ctx context.Context, lg zerolog.Logger) {
	pl, ok := p.client.(client.PluginLister)
	if !ok {
		return
	}
	pl.GetActivePlugins(ctx)
	plugins := pl.ActivePlugins()
	metrics.ActivePlugins.Set(float64(len(plugins)))
	lg.Debug().Strs("plugins", plugins).Msg("Active plugins")
}

func (p *Poller) setTorrents(n int) {
	p.mu.Lock()
	p.status.Torrents = n
	p.mu.Unlock()
}

func (p *Poller) record(at time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Cycles++
	p.status.LastCycle = at
	switch {
	case err == nil:
		p.status.LastSuccess = at
		p.status.LastError = ""
	case errors.Is(err, aggregate.ErrNoData):
		// an idle client is still a healthy one
		p.status.LastSuccess = at
		p.status.LastError = ""
	default:
		p.status.LastError = err.Error()
	}
}

// Status returns a snapshot of the poll history.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Ready reports whether a cycle succeeded within three delays plus thirty
// seconds.
func (p *Poller) Ready() bool {
	st := p.Status()
	if st.LastSuccess.IsZero() {
		return false
	}
	return p.now().Sub(st.LastSuccess) <= 3*p.delay+30*time.Second
}
