package deluge

import (
	"encoding/json"
	"strings"

	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/data"
)

// status mirrors the keys requested in torrentKeys. Pointers distinguish a
// missing key from a zero value.
type status struct {
	Name            *string  `json:"name"`
	TotalSize       *int64   `json:"total_size"`
	Progress        *float64 `json:"progress"`
	AllTimeDownload *int64   `json:"all_time_download"`
	TotalUploaded   *int64   `json:"total_uploaded"`
	Ratio           *float64 `json:"ratio"`
	TotalSeeds      *int64   `json:"total_seeds"`
	State           *string  `json:"state"`
	TrackerHost     *string  `json:"tracker_host"`
	NumFiles        *int64   `json:"num_files"`
}

func (s *status) complete() bool {
	return s.Name != nil && s.TotalSize != nil && s.Progress != nil &&
		s.AllTimeDownload != nil && s.TotalUploaded != nil && s.Ratio != nil &&
		s.TotalSeeds != nil && s.State != nil && s.TrackerHost != nil && s.NumFiles != nil
}

// buildTorrents converts the hash keyed status object into records. Entries
// with an invalid hash or missing keys are skipped.
func (a *Adapter) buildTorrents(raw json.RawMessage) (data.Torrents, error) {
	a.log.Debug().Msg("Structuring list of torrents")

	var byHash map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byHash); err != nil {
		return nil, &client.DecodeError{What: "torrent list", Err: err}
	}

	ts := data.NewTorrents()
	for rawHash, body := range byHash {
		hash, err := data.NormalizeHash(rawHash)
		if err != nil {
			a.log.Warn().Str("hash", rawHash).Msg("skipping torrent with invalid hash")
			continue
		}
		var s status
		if err := json.Unmarshal(body, &s); err != nil || !s.complete() {
			a.log.Warn().Str("hash", hash).Msg("skipping torrent with incomplete status")
			continue
		}
		ts[hash] = toTorrent(hash, &s)
	}
	return ts, nil
}

func toTorrent(hash string, s *status) *data.Torrent {
	tracker := strings.TrimSpace(*s.TrackerHost)
	if tracker == "" {
		tracker = data.UnknownTracker
	}
	seeds := *s.TotalSeeds
	if seeds < 0 {
		seeds = data.Unavailable
	}
	files := *s.NumFiles
	if files < 0 {
		files = data.Unavailable
	}
	return &data.Torrent{
		Hash:        hash,
		Name:        *s.Name,
		Size:        max(*s.TotalSize, 0),
		Progress:    data.Round2(data.ClampPercent(*s.Progress)),
		Downloaded:  max(*s.AllTimeDownload, 0),
		Uploaded:    max(*s.TotalUploaded, 0),
		Ratio:       data.Round2(data.NonNegative(*s.Ratio)),
		Seeds:       seeds,
		State:       data.NormalizeState(*s.State),
		ClientState: *s.State,
		Tracker:     data.StripPort(tracker),
		Files:       files,
	}
}
