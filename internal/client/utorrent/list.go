package utorrent

import (
	"bytes"
	"encoding/json"

	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/data"
)

// Column positions in a list=1 torrent row.
const (
	colHash       = 0
	colName       = 2
	colSize       = 3
	colProgress   = 4
	colDownloaded = 5
	colUploaded   = 6
	colRatio      = 7
	colSeeds      = 15
	colState      = 22

	minRowLen = colState + 1
)

type listResp struct {
	Torrents *[][]any `json:"torrents"`
}

// decodeList builds base records from the torrents rows. Tracker and file
// count are filled in later. Malformed rows are skipped.
func (a *Adapter) decodeList(body []byte) (data.Torrents, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var lr listResp
	if err := dec.Decode(&lr); err != nil {
		return nil, &client.DecodeError{What: "torrent list", Err: err}
	}
	if lr.Torrents == nil {
		return nil, &client.DecodeError{What: "torrent list: missing torrents key"}
	}

	a.log.Debug().Msg("Structuring list of torrents")
	ts := data.NewTorrents()
	for i, row := range *lr.Torrents {
		t, ok := decodeRow(row)
		if !ok {
			a.log.Warn().Int("row", i).Msg("skipping malformed torrent row")
			continue
		}
		ts[t.Hash] = t
	}
	return ts, nil
}

func decodeRow(row []any) (*data.Torrent, bool) {
	if len(row) < minRowLen {
		return nil, false
	}
	rawHash, ok1 := row[colHash].(string)
	name, ok2 := row[colName].(string)
	state, ok3 := row[colState].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	hash, err := data.NormalizeHash(rawHash)
	if err != nil {
		return nil, false
	}

	var ints [4]int64
	for i, col := range []int{colSize, colDownloaded, colUploaded, colSeeds} {
		n, ok := row[col].(json.Number)
		if !ok {
			return nil, false
		}
		v, err := n.Int64()
		if err != nil {
			return nil, false
		}
		ints[i] = v
	}
	var permille [2]float64
	for i, col := range []int{colProgress, colRatio} {
		n, ok := row[col].(json.Number)
		if !ok {
			return nil, false
		}
		v, err := n.Float64()
		if err != nil {
			return nil, false
		}
		permille[i] = v
	}

	seeds := ints[3]
	if seeds < 0 {
		seeds = data.Unavailable
	}
	return &data.Torrent{
		Hash:        hash,
		Name:        name,
		Size:        max(ints[0], 0),
		Progress:    data.ClampPercent(permille[0] / 1000 * 100),
		Downloaded:  max(ints[1], 0),
		Uploaded:    max(ints[2], 0),
		Ratio:       data.NonNegative(permille[1] / 1000),
		Seeds:       seeds,
		State:       data.NormalizeState(state),
		ClientState: state,
		Tracker:     data.UnknownTracker,
		Files:       data.Unavailable,
	}, true
}
