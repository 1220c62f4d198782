// Package client defines the capability set every torrent-client adapter
// satisfies and selects the adapter named in the configuration.
package client

import (
	"context"

	"github.com/tinoosan/seedstat/internal/data"
)

// Client is the minimal capability set shared by all backends.
type Client interface {
	// Name returns the display name of the backend, e.g. "Deluge".
	Name() string
	// Authenticate establishes a session. Failures are *FatalAuthError.
	Authenticate(ctx context.Context) error
	// GetAllTorrents refreshes the torrent mapping. Any failure leaves the
	// mapping empty; the cause is logged by the adapter.
	GetAllTorrents(ctx context.Context)
	// Torrents returns a snapshot of the mapping built by the last poll.
	Torrents() data.Torrents
}

// SessionChecker is implemented by backends whose sessions can expire
// between polls.
type SessionChecker interface {
	EnsureSession(ctx context.Context) error
}

// PluginLister is implemented by backends that report enabled plugins.
type PluginLister interface {
	GetActivePlugins(ctx context.Context)
	ActivePlugins() []string
}

// FetchReporter is implemented by backends that can tell a failed fetch apart
// from a client with no torrents. LastFetchError is nil after a successful
// GetAllTorrents.
type FetchReporter interface {
	LastFetchError() error
}
