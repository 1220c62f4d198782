// Package deluge polls the Deluge Web UI JSON-RPC API.
package deluge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/config"
	"github.com/tinoosan/seedstat/internal/data"
	"github.com/tinoosan/seedstat/internal/transport"
)

const Name = "Deluge"

// torrentKeys are the status keys requested from core.get_torrents_status.
var torrentKeys = []string{
	"name",
	"total_size",
	"progress",
	"all_time_download",
	"total_uploaded",
	"ratio",
	"total_seeds",
	"state",
	"tracker_host",
	"num_files",
}

func init() {
	client.Register(config.ClientDeluge, func(cfg config.TorrentClient, log zerolog.Logger) client.Client {
		return New(cfg, log)
	})
}

// Adapter talks to a single Deluge daemon through its web UI.
type Adapter struct {
	url      string
	password string
	rq       *transport.Requester
	log      zerolog.Logger

	mu       sync.Mutex
	cookie   string
	seq      int
	torrents data.Torrents
	fetchErr error
	plugins  []string
}

var (
	_ client.Client         = (*Adapter)(nil)
	_ client.SessionChecker = (*Adapter)(nil)
	_ client.PluginLister   = (*Adapter)(nil)
	_ client.FetchReporter  = (*Adapter)(nil)
)

// New returns an unauthenticated adapter for the JSON endpoint at cfg.URL.
func New(cfg config.TorrentClient, log zerolog.Logger) *Adapter {
	log = log.With().Str("component", "deluge").Logger()
	return &Adapter{
		url:      cfg.URL,
		password: cfg.Password,
		rq:       transport.New(Name, cfg.TimeoutDuration(), log),
		log:      log,
		torrents: data.NewTorrents(),
	}
}

func (a *Adapter) Name() string { return Name }

// Authenticate logs in with auth.login and keeps the session cookie for
// subsequent calls. A transport failure here aborts the process.
func (a *Adapter) Authenticate(ctx context.Context) error {
	return a.authenticate(ctx, true)
}

func (a *Adapter) authenticate(ctx context.Context, abort bool) error {
	res, hdr, err := a.call(ctx, "auth.login", []any{a.password}, transport.Options{
		Attempt: fmt.Sprintf("Attempting to authenticate against %s API", Name),
		Fail:    "Failed to authenticate with torrent client",
		Abort:   abort,
	})
	if err != nil {
		return &client.FatalAuthError{Client: Name, Err: err}
	}

	cookie := hdr.Get("Set-Cookie")
	if cookie == "" {
		return &client.FatalAuthError{Client: Name, Err: errors.New("no session cookie in login response")}
	}
	if i := strings.IndexByte(cookie, ';'); i >= 0 {
		cookie = cookie[:i]
	}

	ok, err := decodeBool(res, "auth.login")
	if err != nil {
		return &client.FatalAuthError{Client: Name, Err: err}
	}
	if !ok {
		return &client.FatalAuthError{Client: Name, Err: errors.New("login rejected")}
	}

	a.mu.Lock()
	a.cookie = cookie
	a.mu.Unlock()
	a.log.Info().Msgf("Successfully authenticated with %s API", Name)
	return nil
}

// EnsureSession re-authenticates exactly once when the daemon reports the
// session is no longer valid. A failed check is logged and skipped.
func (a *Adapter) EnsureSession(ctx context.Context) error {
	a.log.Debug().Msg("Checking session state")
	res, _, err := a.call(ctx, "auth.check_session", []any{}, transport.Options{
		Fail: "Failed to check session state",
	})
	if err != nil {
		return nil
	}
	active, err := decodeBool(res, "auth.check_session")
	if err == nil && active {
		a.log.Debug().Msg("Session is still active")
		return nil
	}

	a.log.Error().Msg("No active session, attempting to re-authenticate")
	return a.authenticate(ctx, false)
}

// GetAllTorrents replaces the torrent mapping with the current status of
// every torrent. On any failure the mapping is left empty.
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

func (a *Adapter) fetchTorrents(ctx context.Context) (data.Torrents, error) {
	if err := a.EnsureSession(ctx); err != nil {
		return nil, err
	}
	res, _, err := a.call(ctx, "core.get_torrents_status", []any{map[string]any{}, torrentKeys}, transport.Options{
		Fail: "Failed to get list of torrents",
	})
	if err != nil {
		return nil, err
	}
	return a.buildTorrents(res)
}

// Torrents returns a copy of the mapping built by the last poll.
func (a *Adapter) Torrents() data.Torrents {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.torrents.Clone()
}

// GetActivePlugins refreshes the list of enabled plugins; failures leave it
// empty.
func (a *Adapter) GetActivePlugins(ctx context.Context) {
	plugins, err := a.fetchPlugins(ctx)
	if err != nil {
		var te *transport.Error
		if !errors.As(err, &te) {
			a.log.Error().Err(err).Msgf("Problem getting plugin list from %s", Name)
		}
		plugins = []string{}
	}
	a.mu.Lock()
	a.plugins = plugins
	a.mu.Unlock()
}

func (a *Adapter) fetchPlugins(ctx context.Context) ([]string, error) {
	if err := a.EnsureSession(ctx); err != nil {
		return nil, err
	}
	res, _, err := a.call(ctx, "core.get_enabled_plugins", []any{}, transport.Options{
		Fail: "Failed to get list of plugins",
	})
	if err != nil {
		return nil, err
	}
	return decodePlugins(res)
}

func (a *Adapter) ActivePlugins() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.plugins...)
}
