// Package aggregate turns a torrent mapping into tracker summaries and
// metric points.
package aggregate

import (
	"errors"
	"sort"
	"time"

	"github.com/tinoosan/seedstat/internal/data"
)

// ErrNoData is returned when there is nothing to aggregate. Callers must not
// write anything to the sink in that case.
var ErrNoData = errors.New("no torrent data")

// Tags are attached to every point.
type Tags struct {
	Host   string
	Client string
	// Time stamps every point; zero means time.Now().
	Time time.Time
}

func (t Tags) now() time.Time {
	if t.Time.IsZero() {
		return time.Now().UTC()
	}
	return t.Time
}

// BuildTrackerSummary groups torrents by tracker host. The ratio of a group
// is its total uploaded over total downloaded, rounded to two decimals, and
// zero when nothing was downloaded. Output is ordered by tracker.
func BuildTrackerSummary(ts data.Torrents) ([]data.TrackerSummary, error) {
	if len(ts) == 0 {
		return nil, ErrNoData
	}

	byTracker := make(map[string]*data.TrackerSummary)
	for _, t := range ts {
		s, ok := byTracker[t.Tracker]
		if !ok {
			s = &data.TrackerSummary{Tracker: t.Tracker}
			byTracker[t.Tracker] = s
		}
		s.Torrents++
		s.Uploaded += t.Uploaded
		s.Downloaded += t.Downloaded
		s.Size += t.Size
	}

	out := make([]data.TrackerSummary, 0, len(byTracker))
	for _, s := range byTracker {
		if s.Downloaded > 0 {
			s.Ratio = data.Round2(float64(s.Uploaded) / float64(s.Downloaded))
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tracker < out[j].Tracker })
	return out, nil
}

// BuildMetricPoints emits one "torrents" point per torrent, ordered by
// hash. Seeds and file counts the client could not report are left out of
// the fields.
func BuildMetricPoints(ts data.Torrents, tags Tags) ([]data.Point, error) {
	if len(ts) == 0 {
		return nil, ErrNoData
	}
	now := tags.now()

	hashes := make([]string, 0, len(ts))
	for h := range ts {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	out := make([]data.Point, 0, len(ts))
	for _, h := range hashes {
		t := ts[h]
		fields := map[string]any{
			"hash":         h,
			"tracker":      t.Tracker,
			"name":         t.Name,
			"state":        string(t.State),
			"client_state": t.ClientState,
			"uploaded":     t.Uploaded,
			"downloaded":   t.Downloaded,
			"ratio":        data.Round2(t.Ratio),
			"progress":     data.Round2(t.Progress),
			"size":         t.Size,
		}
		if t.Seeds != data.Unavailable {
			fields["seeds"] = t.Seeds
		}
		if t.Files != data.Unavailable {
			fields["total_files"] = t.Files
		}
		out = append(out, data.Point{
			Measurement: data.MeasurementTorrents,
			Tags: map[string]string{
				"host":    tags.Host,
				"hash":    h,
				"tracker": t.Tracker,
				"client":  tags.Client,
			},
			Fields: fields,
			Time:   now,
		})
	}
	return out, nil
}

// BuildTrackerPoints emits one "trackers" point per tracker summary.
func BuildTrackerPoints(ts data.Torrents, tags Tags) ([]data.Point, error) {
	sums, err := BuildTrackerSummary(ts)
	if err != nil {
		return nil, err
	}
	now := tags.now()

	out := make([]data.Point, 0, len(sums))
	for _, s := range sums {
		out = append(out, data.Point{
			Measurement: data.MeasurementTrackers,
			Tags: map[string]string{
				"host":    tags.Host,
				"tracker": s.Tracker,
				"client":  tags.Client,
			},
			Fields: map[string]any{
				"total_torrents": s.Torrents,
				"total_upload":   s.Uploaded,
				"total_download": s.Downloaded,
				"total_ratio":    s.Ratio,
				"total_size":     s.Size,
			},
			Time: now,
		})
	}
	return out, nil
}
