// Package rtorrent polls rTorrent over XML-RPC.
package rtorrent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/rpc"
	"sync"

	"github.com/kolo/xmlrpc"
	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/config"
	"github.com/tinoosan/seedstat/internal/data"
	"github.com/tinoosan/seedstat/internal/transport"
)

const Name = "rTorrent"

func init() {
	client.Register(config.ClientRTorrent, func(cfg config.TorrentClient, log zerolog.Logger) client.Client {
		return New(cfg, log)
	})
}

// Adapter talks to the XML-RPC endpoint of a single rTorrent instance.
type Adapter struct {
	url      string
	username string
	password string
	rq       *transport.Requester
	log      zerolog.Logger

	// callMu serializes XML-RPC calls so the round tripper can pick up the
	// context and options of the call in flight.
	callMu sync.Mutex
	ctx    context.Context
	opts   transport.Options

	mu       sync.Mutex
	xc       *xmlrpc.Client
	version  string
	torrents data.Torrents
	fetchErr error
}

var (
	_ client.Client        = (*Adapter)(nil)
	_ client.FetchReporter = (*Adapter)(nil)
)

// New returns an adapter for the XML-RPC endpoint at cfg.URL (for example
// http://host/RPC2). No connection is made until Authenticate.
func New(cfg config.TorrentClient, log zerolog.Logger) *Adapter {
	log = log.With().Str("component", "rtorrent").Logger()
	return &Adapter{
		url:      cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		rq:       transport.New(Name, cfg.TimeoutDuration(), log),
		log:      log,
		torrents: data.NewTorrents(),
	}
}

func (a *Adapter) Name() string { return Name }

// Authenticate builds the XML-RPC client and confirms the endpoint answers
// system.client_version.
func (a *Adapter) Authenticate(ctx context.Context) error {
	rc, err := xmlrpc.NewClient(a.url, roundTripper{a})
	if err != nil {
		return &client.FatalAuthError{Client: Name, Err: err}
	}
	a.mu.Lock()
	a.xc = rc
	a.mu.Unlock()

	var version string
	err = a.call(ctx, "system.client_version", nil, &version, transport.Options{
		Attempt: fmt.Sprintf("Attempting to connect to %s", Name),
		Fail:    fmt.Sprintf("Failed to connect to %s", Name),
		Abort:   true,
	})
	if err != nil {
		return &client.FatalAuthError{Client: Name, Err: err}
	}

	a.mu.Lock()
	a.version = version
	a.mu.Unlock()
	a.log.Info().Str("version", version).Msgf("Successfully connected to %s", Name)
	return nil
}

// Version is the rTorrent version reported at authentication.
func (a *Adapter) Version() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// GetAllTorrents replaces the mapping with every torrent in the main view.
// A failed multicall leaves it empty.
func (a *Adapter) GetAllTorrents(ctx context.Context) {
	ts, err := a.fetchTorrents(ctx)
	if err != nil {
		var te *transport.Error
		if !errors.As(err, &te) {
			a.log.Error().Err(err).Msgf("Problem getting torrent list from %s", Name)
		}
		ts = data.NewTorrents()
	}
	a.mu.Lock()
	a.torrents = ts
	a.fetchErr = err
	a.mu.Unlock()
}

// LastFetchError returns the failure of the last GetAllTorrents, if any.
func (a *Adapter) LastFetchError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetchErr
}

// Torrents returns a copy of the mapping built by the last poll.
func (a *Adapter) Torrents() data.Torrents {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.torrents.Clone()
}

var errNotConnected = errors.New("xmlrpc client not initialised")

// call performs one XML-RPC call. args is spread into the parameter list.
func (a *Adapter) call(ctx context.Context, method string, args []any, reply any, o transport.Options) error {
	a.mu.Lock()
	rc := a.xc
	a.mu.Unlock()
	if rc == nil {
		return errNotConnected
	}

	a.callMu.Lock()
	defer a.callMu.Unlock()
	o.Op = method
	a.ctx, a.opts = ctx, o
	defer func() { a.ctx, a.opts = nil, transport.Options{} }()

	var params any
	if args != nil {
		params = args
	}
	err := rc.Call(method, params, reply)
	var (
		fault     xmlrpc.FaultError
		serverErr rpc.ServerError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fault):
		return &client.BackendError{Method: method, Message: fault.String}
	case errors.As(err, &serverErr):
		return &client.BackendError{Method: method, Message: string(serverErr)}
	case errors.Is(err, rpc.ErrShutdown):
		a.reconnect()
	}
	return err
}

// reconnect replaces a client whose connection loop has shut down.
func (a *Adapter) reconnect() {
	rc, err := xmlrpc.NewClient(a.url, roundTripper{a})
	if err != nil {
		a.log.Error().Err(err).Msg("failed to rebuild xmlrpc client")
		return
	}
	a.mu.Lock()
	old := a.xc
	a.xc = rc
	a.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

// roundTripper sends XML-RPC HTTP requests through the shared request helper
// so they carry the call context, credentials and instrumentation.
type roundTripper struct{ a *Adapter }

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, o := rt.a.ctx, rt.a.opts
	if ctx == nil {
		ctx = req.Context()
	}
	r := req.Clone(ctx)
	if rt.a.username != "" {
		r.SetBasicAuth(rt.a.username, rt.a.password)
	}
	return rt.a.rq.Do(r, o)
}
