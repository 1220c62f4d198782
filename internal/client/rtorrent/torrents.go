package rtorrent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/data"
	"github.com/tinoosan/seedstat/internal/transport"
)

// multicallFields are requested per torrent by d.multicall2, in column order.
var multicallFields = []string{
	"d.hash=",
	"d.name=",
	"d.size_bytes=",
	"d.bytes_done=",
	"d.up.total=",
	"d.ratio=",
	"d.peers_complete=",
	"d.size_files=",
	"d.state=",
	"d.is_active=",
	"d.complete=",
	"d.hashing=",
	"d.message=",
}

const (
	colHash = iota
	colName
	colSize
	colDone
	colUp
	colRatio
	colSeeds
	colFiles
	colState
	colActive
	colComplete
	colHashing
	colMessage
)

func (a *Adapter) fetchTorrents(ctx context.Context) (data.Torrents, error) {
	args := make([]any, 0, len(multicallFields)+2)
	args = append(args, "", "main")
	for _, f := range multicallFields {
		args = append(args, f)
	}

	var rows [][]any
	err := a.call(ctx, "d.multicall2", args, &rows, transport.Options{
		Fail: "Failed to get list of torrents",
	})
	if err != nil {
		return nil, err
	}

	a.log.Debug().Msg("Structuring list of torrents")
	ts := data.NewTorrents()
	for i, row := range rows {
		t, err := decodeRow(row)
		if err != nil {
			a.log.Warn().Err(err).Int("row", i).Msg("skipping malformed torrent row")
			continue
		}
		ts[t.Hash] = t
	}
	for h, t := range ts {
		t.Tracker = a.tracker(ctx, h)
	}
	return ts, nil
}

// tracker returns the host of the first tracker of hash.
func (a *Adapter) tracker(ctx context.Context, hash string) string {
	var rows [][]any
	err := a.call(ctx, "t.multicall", []any{strings.ToUpper(hash), "", "t.url="}, &rows, transport.Options{
		Fail: "Failed to get trackers for hash " + hash,
	})
	if err != nil {
		var te *transport.Error
		if !errors.As(err, &te) {
			a.log.Error().Err(err).Str("hash", hash).Msg("tracker lookup failed")
		}
		return data.UnknownTracker
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return data.UnknownTracker
	}
	u, ok := toString(rows[0][0])
	if !ok || u == "" {
		return data.UnknownTracker
	}
	return data.TrackerHost(u)
}

func decodeRow(row []any) (*data.Torrent, error) {
	if len(row) < len(multicallFields) {
		return nil, &client.DecodeError{What: fmt.Sprintf("multicall row: %d columns", len(row))}
	}
	rawHash, ok1 := toString(row[colHash])
	name, ok2 := toString(row[colName])
	msg, ok3 := toString(row[colMessage])
	if !ok1 || !ok2 || !ok3 {
		return nil, &client.DecodeError{What: "multicall row: string column"}
	}
	hash, err := data.NormalizeHash(rawHash)
	if err != nil {
		return nil, err
	}

	cols := []int{colSize, colDone, colUp, colRatio, colSeeds, colFiles, colState, colActive, colComplete, colHashing}
	n := make(map[int]int64, len(cols))
	for _, c := range cols {
		v, err := toInt64(row[c])
		if err != nil {
			return nil, &client.DecodeError{What: fmt.Sprintf("multicall column %s", multicallFields[c]), Err: err}
		}
		n[c] = v
	}

	size, done := max(n[colSize], 0), max(n[colDone], 0)
	var progress float64
	if size > 0 {
		progress = data.ClampPercent(float64(done) / float64(size) * 100)
	}
	state := clientState(n[colState], n[colActive], n[colComplete], n[colHashing], msg)

	seeds := n[colSeeds]
	if seeds < 0 {
		seeds = data.Unavailable
	}
	return &data.Torrent{
		Hash:        hash,
		Name:        name,
		Size:        size,
		Progress:    progress,
		Downloaded:  done,
		Uploaded:    max(n[colUp], 0),
		Ratio:       data.NonNegative(float64(n[colRatio]) / 1000),
		Seeds:       seeds,
		State:       data.NormalizeState(state),
		ClientState: state,
		Tracker:     data.UnknownTracker,
		Files:       max(n[colFiles], 0),
	}, nil
}

// clientState derives a state word from rTorrent's flags, in the same
// vocabulary other clients use. rTorrent closes torrents on fatal errors, so a
// message only marks an error when the torrent is stopped.
func clientState(state, active, complete, hashing int64, message string) string {
	switch {
	case hashing != 0:
		return "hashing"
	case state == 0 && message != "":
		return "error: " + message
	case state == 0:
		return "stopped"
	case active == 0:
		return "paused"
	case complete != 0:
		return "seeding"
	default:
		return "downloading"
	}
}

// toString accepts nil as the empty string; xmlrpc decodes an empty
// <string/> into a nil interface.
func toString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	}
	return "", false
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}
