package data

import (
	"errors"
	"math"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// Unavailable marks a count the backend could not report.
const Unavailable int64 = -1

// UnknownTracker is used as the tracker host when it could not be resolved.
const UnknownTracker = "unavailable"

var ErrBadHash = errors.New("invalid info-hash")

// Torrent is the client independent view of a single torrent. Adapters
// populate every field or omit the torrent entirely.
type Torrent struct {
	Hash        string
	Name        string
	Size        int64
	Progress    float64
	Downloaded  int64
	Uploaded    int64
	Ratio       float64
	Seeds       int64
	State       State
	ClientState string
	Tracker     string
	Files       int64
}

// Torrents maps a normalized info-hash to its record.
type Torrents map[string]*Torrent

// NewTorrents returns an empty, non-nil mapping.
func NewTorrents() Torrents { return make(Torrents) }

// Clone returns a shallow copy of the mapping with copied records so callers
// can hold on to a snapshot while the owner replaces its map.
func (ts Torrents) Clone() Torrents {
	out := make(Torrents, len(ts))
	for h, t := range ts {
		c := *t
		out[h] = &c
	}
	return out
}

// NormalizeHash validates a hex info-hash and returns its lowercase form.
func NormalizeHash(s string) (string, error) {
	var h metainfo.Hash
	if err := h.FromHexString(strings.TrimSpace(s)); err != nil {
		return "", ErrBadHash
	}
	return h.HexString(), nil
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ClampPercent keeps a progress value within [0, 100].
func ClampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// NonNegative clamps client sentinels such as Deluge's -1 ratio to zero.
func NonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
