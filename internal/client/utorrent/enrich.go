package utorrent

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/data"
)

type propsResp struct {
	Props []struct {
		Trackers string `json:"trackers"`
	} `json:"props"`
}

type filesResp struct {
	// files is ["<hash>", [[name, size, ...], ...]]
	Files []json.RawMessage `json:"files"`
}

type extra struct {
	hash    string
	tracker string
	files   int64
}

// enrich fetches tracker and file count for every torrent in parallel,
// bounded by the configured concurrency and rate, then merges the results
// into ts. Per-torrent failures fall back to the unavailable markers.
func (a *Adapter) enrich(ctx context.Context, ts data.Torrents) error {
	results := make([]extra, 0, len(ts))
	for h := range ts {
		results = append(results, extra{hash: h})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range results {
		r := &results[i]
		g.Go(func() error {
			if err := a.limiter.Wait(gctx); err != nil {
				return err
			}
			r.tracker = a.tracker(gctx, r.hash)
			if err := a.limiter.Wait(gctx); err != nil {
				return err
			}
			r.files = a.fileCount(gctx, r.hash)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		t := ts[r.hash]
		t.Tracker = r.tracker
		t.Files = r.files
	}
	return nil
}

// tracker returns the host of the first announce URL of hash.
func (a *Adapter) tracker(ctx context.Context, hash string) string {
	a.log.Debug().Str("hash", hash).Msg("Attempting to get tracker")
	body, err := a.get(ctx, "getprops", url.Values{"action": {"getprops"}, "hash": {strings.ToUpper(hash)}},
		"Failed to get trackers for hash "+hash)
	if err != nil {
		return data.UnknownTracker
	}
	var pr propsResp
	if err := json.Unmarshal(body, &pr); err != nil || len(pr.Props) == 0 {
		a.log.Error().Err(err).Str("hash", hash).Msg("unexpected getprops response")
		return data.UnknownTracker
	}
	fields := strings.Fields(pr.Props[0].Trackers)
	if len(fields) == 0 {
		return data.UnknownTracker
	}
	return data.TrackerHost(fields[0])
}

// fileCount returns the number of files in hash.
func (a *Adapter) fileCount(ctx context.Context, hash string) int64 {
	a.log.Debug().Str("hash", hash).Msg("Attempting to get file list")
	body, err := a.get(ctx, "getfiles", url.Values{"action": {"getfiles"}, "hash": {strings.ToUpper(hash)}},
		"Failed to get file list for hash "+hash)
	if err != nil {
		return data.Unavailable
	}
	n, err := decodeFileCount(body)
	if err != nil {
		a.log.Error().Err(err).Str("hash", hash).Msg("unexpected getfiles response")
		return data.Unavailable
	}
	return n
}

func decodeFileCount(body []byte) (int64, error) {
	var fr filesResp
	if err := json.Unmarshal(body, &fr); err != nil {
		return 0, &client.DecodeError{What: "file list", Err: err}
	}
	if len(fr.Files) < 2 {
		return 0, &client.DecodeError{What: "file list: missing files"}
	}
	var files []json.RawMessage
	if err := json.Unmarshal(fr.Files[1], &files); err != nil {
		return 0, &client.DecodeError{What: "file list", Err: err}
	}
	return int64(len(files)), nil
}
