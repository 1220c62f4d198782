package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/logging"
	"github.com/tinoosan/seedstat/internal/metrics"
	"github.com/tinoosan/seedstat/internal/reqid"
)

// ErrAbort matches errors from requests made with Options.Abort set. The
// caller decides how to stop; this package never exits the process.
var ErrAbort = errors.New("request failure is fatal")

// Error is the single failure kind for anything that went wrong at the
// network or HTTP layer: refused connections, timeouts, non-2xx statuses and
// malformed responses.
type Error struct {
	Op     string
	URL    string
	Status int
	Err    error
	Abort  bool
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: http %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrAbort && e.Abort }

// Options describes one request for logging and metrics.
type Options struct {
	// Op labels the request in metrics, e.g. the RPC method.
	Op string
	// Attempt is logged at info before the request when set.
	Attempt string
	// Fail is logged when the request fails; a generic message is used otherwise.
	Fail string
	// Abort marks a failure as fatal for the process.
	Abort bool
}

// Requester performs HTTP requests on behalf of one client adapter.
type Requester struct {
	client string
	http   *http.Client
	log    zerolog.Logger
}

// New creates a Requester whose requests time out after timeout.
func New(client string, timeout time.Duration, log zerolog.Logger) *Requester {
	return &Requester{
		client: client,
		http:   &http.Client{Timeout: timeout},
		log:    log,
	}
}

// HTTP exposes the underlying client so adapters can install a cookie jar or
// a test transport.
func (r *Requester) HTTP() *http.Client { return r.http }

// Do sends req. On success the caller owns resp.Body. Every failure is
// returned as *Error with the body already closed.
func (r *Requester) Do(req *http.Request, o Options) (*http.Response, error) {
	op := o.Op
	if op == "" {
		op = req.Method
	}
	lg := r.log.With().Str("op", op).Logger()
	if id, ok := reqid.From(req.Context()); ok {
		lg = lg.With().Str("cycle_id", id).Logger()
	}
	if o.Attempt != "" {
		lg.Info().Msg(o.Attempt)
	}

	timer := prometheus.NewTimer(metrics.ClientRequestLatency.WithLabelValues(r.client, op))
	resp, err := r.http.Do(req)
	timer.ObserveDuration()

	if err == nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		err = &Error{Op: op, URL: logURL(req.URL), Status: resp.StatusCode, Abort: o.Abort}
	} else if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = logURL(req.URL)
		}
		err = &Error{Op: op, URL: logURL(req.URL), Err: err, Abort: o.Abort}
	}
	if err == nil {
		return resp, nil
	}

	metrics.ClientRequestErrors.WithLabelValues(r.client, op).Inc()
	msg := o.Fail
	if msg == "" {
		msg = "failed to make request"
	}
	if o.Abort {
		logging.Critical(lg).Err(err).Msg(msg)
		logging.Critical(lg).Msg("aborting")
	} else {
		lg.Error().Err(err).Msg(msg)
	}
	return nil, err
}

// logURL drops the query and credentials from u; query strings carry session
// tokens for some backends.
func logURL(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = ""
	c.ForceQuery = false
	return c.String()
}
