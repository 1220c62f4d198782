package aggregate

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"testing"
	"time"

	"github.com/tinoosan/seedstat/internal/data"
)

func torrent(hash, tracker string, up, down, size int64) *data.Torrent {
	return &data.Torrent{
		Hash: hash, Name: "t-" + hash[:4], Tracker: tracker,
		Uploaded: up, Downloaded: down, Size: size,
		Progress: 33.3333, Ratio: 1.23456, Seeds: 2, Files: 1,
		State: data.StateSeeding, ClientState: "Seeding",
	}
}

func hashN(i int) string { return fmt.Sprintf("%040x", i) }

func TestBuildTrackerSummaryEmpty(t *testing.T) {
	if _, err := BuildTrackerSummary(data.NewTorrents()); !errors.Is(err, ErrNoData) {
		t.Fatalf("summary err = %v", err)
	}
	if _, err := BuildMetricPoints(nil, Tags{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("metric points err = %v", err)
	}
	if _, err := BuildTrackerPoints(data.NewTorrents(), Tags{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("tracker points err = %v", err)
	}
}

func TestBuildTrackerSummarySingleTracker(t *testing.T) {
	ts := data.NewTorrents()
	var up, down, size int64
	for i := 1; i <= 5; i++ {
		h := hashN(i)
		ts[h] = torrent(h, "tracker.example.com", int64(i*100), int64(i*10), int64(i*1000))
		up += int64(i * 100)
		down += int64(i * 10)
		size += int64(i * 1000)
	}

	sums, err := BuildTrackerSummary(ts)
	if err != nil {
		t.Fatalf("BuildTrackerSummary: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("summaries = %d, want 1", len(sums))
	}
	want := data.TrackerSummary{Tracker: "tracker.example.com", Torrents: 5, Uploaded: up, Downloaded: down, Size: size, Ratio: 10}
	if sums[0] != want {
		t.Fatalf("got %+v want %+v", sums[0], want)
	}
}

func TestBuildTrackerSummaryEndToEnd(t *testing.T) {
	ts := data.NewTorrents()
	ts[hashN(1)] = torrent(hashN(1), "tracker.example.org", 100, 50, 10)
	ts[hashN(2)] = torrent(hashN(2), "tracker.example.org", 200, 50, 10)

	sums, err := BuildTrackerSummary(ts)
	if err != nil {
		t.Fatalf("BuildTrackerSummary: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("summaries = %d, want 1", len(sums))
	}
	s := sums[0]
	if s.Torrents != 2 || s.Uploaded != 300 || s.Downloaded != 100 || s.Ratio != 3 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestBuildTrackerSummaryGroupsAndSorts(t *testing.T) {
	ts := data.NewTorrents()
	ts[hashN(1)] = torrent(hashN(1), "b.example", 1, 3, 1)
	ts[hashN(2)] = torrent(hashN(2), "a.example", 5, 0, 1)
	ts[hashN(3)] = torrent(hashN(3), "b.example", 1, 0, 1)

	sums, err := BuildTrackerSummary(ts)
	if err != nil {
		t.Fatalf("BuildTrackerSummary: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("summaries = %d, want 2", len(sums))
	}
	if sums[0].Tracker != "a.example" || sums[0].Ratio != 0 {
		t.Fatalf("first = %+v, want a.example with ratio 0", sums[0])
	}
	if sums[1].Tracker != "b.example" || sums[1].Ratio != 0.67 {
		t.Fatalf("second = %+v, want b.example with ratio 0.67", sums[1])
	}
}

func TestBuildMetricPoints(t *testing.T) {
	ts := data.NewTorrents()
	for i := 1; i <= 3; i++ {
		ts[hashN(i)] = torrent(hashN(i), "tracker.example.com", 1, 1, 1)
	}
	ts[hashN(2)].Seeds = data.Unavailable
	ts[hashN(3)].Files = data.Unavailable

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	points, err := BuildMetricPoints(ts, Tags{Host: "box", Client: "Deluge", Time: at})
	if err != nil {
		t.Fatalf("BuildMetricPoints: %v", err)
	}
	if len(points) != len(ts) {
		t.Fatalf("points = %d, want %d", len(points), len(ts))
	}

	for _, p := range points {
		if p.Measurement != data.MeasurementTorrents || !p.Time.Equal(at) {
			t.Fatalf("unexpected point header %+v", p)
		}
		if p.Tags["host"] != "box" || p.Tags["client"] != "Deluge" || p.Fields["hash"] != p.Tags["hash"] {
			t.Fatalf("unexpected tags %v", p.Tags)
		}
		for _, k := range []string{"ratio", "progress"} {
			v := p.Fields[k].(float64)
			if math.Round(v*100)/100 != v {
				t.Fatalf("%s = %v not rounded to two decimals", k, v)
			}
		}
	}
	if points[0].Fields["progress"] != 33.33 || points[0].Fields["ratio"] != 1.23 {
		t.Fatalf("unexpected rounding %v", points[0].Fields)
	}
	if _, ok := points[1].Fields["seeds"]; ok {
		t.Fatalf("unavailable seeds must be omitted")
	}
	if _, ok := points[1].Fields["total_files"]; !ok {
		t.Fatalf("total_files missing")
	}
	if _, ok := points[2].Fields["total_files"]; ok {
		t.Fatalf("unavailable file count must be omitted")
	}
	if points[0].Fields["state"] != "seeding" {
		t.Fatalf("state = %v", points[0].Fields["state"])
	}
}

func TestBuildTrackerPoints(t *testing.T) {
	ts := data.NewTorrents()
	ts[hashN(1)] = torrent(hashN(1), "tracker.example.org", 100, 50, 7)
	ts[hashN(2)] = torrent(hashN(2), "tracker.example.org", 200, 50, 8)

	points, err := BuildTrackerPoints(ts, Tags{Host: "box", Client: "uTorrent"})
	if err != nil {
		t.Fatalf("BuildTrackerPoints: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
	p := points[0]
	if p.Measurement != data.MeasurementTrackers || p.Time.IsZero() {
		t.Fatalf("unexpected point header %+v", p)
	}
	wantTags := map[string]string{"host": "box", "tracker": "tracker.example.org", "client": "uTorrent"}
	if !maps.Equal(p.Tags, wantTags) {
		t.Fatalf("tags = %v", p.Tags)
	}
	wantFields := map[string]any{
		"total_torrents": int64(2),
		"total_upload":   int64(300),
		"total_download": int64(100),
		"total_size":     int64(15),
		"total_ratio":    3.0,
	}
	for k, v := range wantFields {
		if p.Fields[k] != v {
			t.Fatalf("%s = %#v, want %#v", k, p.Fields[k], v)
		}
	}
}
