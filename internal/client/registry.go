package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/config"
)

// Factory builds an unauthenticated adapter.
type Factory func(cfg config.TorrentClient, log zerolog.Logger) Client

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// ErrUnknownClient is returned by New when no adapter is registered under
// the configured name.
var ErrUnknownClient = errors.New("unknown torrent client")

// Register makes an adapter available to New under name. Adapter packages
// call it from init.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	name = strings.ToLower(name)
	if _, dup := factories[name]; dup {
		panic("client: Register called twice for " + name)
	}
	factories[name] = f
}

// Registered lists the registered adapter names in order.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// New builds the adapter named by cfg.Client and authenticates it once.
// Authentication failures are returned as *FatalAuthError.
func New(ctx context.Context, cfg config.TorrentClient, log zerolog.Logger) (Client, error) {
	mu.RLock()
	f, ok := factories[strings.ToLower(cfg.Client)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClient, cfg.Client)
	}

	c := f(cfg, log)
	if err := c.Authenticate(ctx); err != nil {
		var fe *FatalAuthError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FatalAuthError{Client: c.Name(), Err: err}
	}
	return c, nil
}
