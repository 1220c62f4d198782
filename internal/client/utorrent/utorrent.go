// Package utorrent polls the uTorrent WebUI API.
package utorrent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/config"
	"github.com/tinoosan/seedstat/internal/data"
	"github.com/tinoosan/seedstat/internal/transport"
)

const Name = "uTorrent"

func init() {
	client.Register(config.ClientUTorrent, func(cfg config.TorrentClient, log zerolog.Logger) client.Client {
		return New(cfg, log)
	})
}

// Adapter talks to the WebUI of a single uTorrent instance.
type Adapter struct {
	url         string
	username    string
	password    string
	concurrency int
	limiter     *rate.Limiter
	rq          *transport.Requester
	log         zerolog.Logger

	mu       sync.Mutex
	token    string
	cookie   string
	torrents data.Torrents
	fetchErr error
}

var (
	_ client.Client        = (*Adapter)(nil)
	_ client.FetchReporter = (*Adapter)(nil)
)

// New returns an unauthenticated adapter for the WebUI rooted at cfg.URL
// (usually ending in /gui).
func New(cfg config.TorrentClient, log zerolog.Logger) *Adapter {
	log = log.With().Str("component", "utorrent").Logger()
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	return &Adapter{
		url:         cfg.URL,
		username:    cfg.Username,
		password:    cfg.Password,
		concurrency: max(cfg.Concurrency, 1),
		limiter:     rate.NewLimiter(limit, max(cfg.Concurrency, 1)),
		rq:          transport.New(Name, cfg.TimeoutDuration(), log),
		log:         log,
		torrents:    data.NewTorrents(),
	}
}

func (a *Adapter) Name() string { return Name }

// Authenticate scrapes the CSRF token from token.html and keeps the GUID
// cookie that comes with it.
func (a *Adapter) Authenticate(ctx context.Context) error {
	tokenURL := a.url + "/token.html"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return &client.FatalAuthError{Client: Name, Err: err}
	}
	req.SetBasicAuth(a.username, a.password)

	resp, err := a.rq.Do(req, transport.Options{
		Op:      "token",
		Attempt: fmt.Sprintf("Attempting to get token from %s", tokenURL),
		Fail:    "Failed to get token from torrent client",
		Abort:   true,
	})
	if err != nil {
		return &client.FatalAuthError{Client: Name, Err: err}
	}
	cookie := resp.Header.Get("Set-Cookie")
	if i := strings.IndexByte(cookie, ';'); i >= 0 {
		cookie = cookie[:i]
	}
	body, err := transport.ReadBody(resp)
	if err != nil {
		return &client.FatalAuthError{Client: Name, Err: err}
	}
	token, err := parseToken(strings.NewReader(string(body)))
	if err != nil {
		return &client.FatalAuthError{Client: Name, Err: err}
	}

	a.mu.Lock()
	a.token = token
	a.cookie = cookie
	a.mu.Unlock()
	a.log.Info().Msg("Got token")
	return nil
}

var errNoToken = errors.New(`no <div id="token"> in token.html`)

// parseToken returns the text of the element with id "token".
func parseToken(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", &client.DecodeError{What: "token page", Err: err}
	}
	var find func(*html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && n.Data == "div" {
			for _, at := range n.Attr {
				if at.Key == "id" && at.Val == "token" {
					return n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if m := find(c); m != nil {
				return m
			}
		}
		return nil
	}
	div := find(doc)
	if div == nil {
		return "", errNoToken
	}
	var sb strings.Builder
	for c := div.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	token := strings.TrimSpace(sb.String())
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}

// get issues GET <url>/?token=<t>&<query> and returns the body.
func (a *Adapter) get(ctx context.Context, op string, query url.Values, fail string) ([]byte, error) {
	a.mu.Lock()
	token, cookie := a.token, a.cookie
	a.mu.Unlock()

	u := a.url + "/?token=" + url.QueryEscape(token) + "&" + query.Encode()
	a.log.Debug().Str("op", op).Msg("Creating request")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(a.username, a.password)
	req.Header.Set("Cache-Control", "no-cache")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := a.rq.Do(req, transport.Options{Op: op, Fail: fail})
	if err != nil {
		return nil, err
	}
	return transport.ReadBody(resp)
}

// GetAllTorrents lists every torrent, enriches each with its tracker and
// file count, and publishes the result. Failure of the list call leaves
// the mapping empty.
func (a *Adapter) GetAllTorrents(ctx context.Context) {
	a.log.Debug().Msg("Attempting to get all torrents")
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
	body, err := a.get(ctx, "list", url.Values{"list": {"1"}}, "Failed to get list of all torrents")
	if err != nil {
		return nil, err
	}
	ts, err := a.decodeList(body)
	if err != nil {
		return nil, err
	}
	if err := a.enrich(ctx, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// Torrents returns a copy of the mapping built by the last poll.
func (a *Adapter) Torrents() data.Torrents {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.torrents.Clone()
}
