package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tinoosan/seedstat/internal/data"
	"github.com/tinoosan/seedstat/internal/metrics"
)

type recordSink struct {
	err     error
	batches [][]data.Point
	closed  bool
}

func (r *recordSink) Write(_ context.Context, p []data.Point) error {
	r.batches = append(r.batches, p)
	return r.err
}

func (r *recordSink) Close() error {
	r.closed = true
	return nil
}

func samplePoints() []data.Point {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	return []data.Point{
		{
			Measurement: data.MeasurementTorrents,
			Tags:        map[string]string{"host": "box", "hash": "abc", "tracker": "tracker.example.org", "client": "Deluge"},
			Fields:      map[string]any{"name": "ubuntu.iso", "uploaded": int64(100), "ratio": 2.5},
			Time:        at,
		},
		{
			Measurement: data.MeasurementTrackers,
			Tags:        map[string]string{"host": "box", "tracker": "tracker.example.org", "client": "Deluge"},
			Fields:      map[string]any{"total_torrents": int64(1), "total_upload": int64(100)},
			Time:        at,
		},
	}
}

func TestTee(t *testing.T) {
	primary := &recordSink{err: errors.New("down")}
	echo := &recordSink{}
	s := Tee(primary, echo)

	if err := s.Write(context.Background(), samplePoints()); err == nil {
		t.Fatalf("expected primary error")
	}
	if len(primary.batches) != 1 || len(echo.batches) != 1 {
		t.Fatalf("echo must be written even when the primary fails: %d/%d", len(primary.batches), len(echo.batches))
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !primary.closed || !echo.closed {
		t.Fatalf("both sinks must be closed")
	}
}

func TestInstrument(t *testing.T) {
	ok := Instrument("test-ok", &recordSink{})
	bad := Instrument("test-bad", &recordSink{err: errors.New("boom")})

	if err := ok.Write(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if err := bad.Write(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}

	if got := testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("test-ok", "ok")); got != 1 {
		t.Fatalf("ok writes = %v", got)
	}
	if got := testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("test-bad", "error")); got != 1 {
		t.Fatalf("error writes = %v", got)
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	if err := c.Write(context.Background(), samplePoints()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"torrents", "trackers", "ubuntu.iso", "tracker.example.org", "total_upload", "2024-05-06 07:08:09"} {
		if !strings.Contains(out, want) {
			t.Fatalf("%q missing from output:\n%s", want, out)
		}
	}
}

func TestTableMissingField(t *testing.T) {
	points := samplePoints()[:1]
	points = append(points, data.Point{
		Measurement: data.MeasurementTorrents,
		Tags:        map[string]string{"hash": "def"},
		Fields:      map[string]any{"name": "other", "seeds": int64(3)},
	})
	td := table(points)
	if len(td) != 3 {
		t.Fatalf("rows = %d, want 3", len(td))
	}
	header := td[0]
	if header[0] != "time" {
		t.Fatalf("header = %v", header)
	}

	seedsCol := slices.Index(header, "seeds")
	if seedsCol == -1 {
		t.Fatalf("no seeds column in %v", header)
	}
	if td[1][seedsCol] != "-" || td[2][seedsCol] != "3" {
		t.Fatalf("seeds cells = %q, %q", td[1][seedsCol], td[2][seedsCol])
	}
}

func TestToRow(t *testing.T) {
	p := samplePoints()[0]
	p.Time = p.Time.In(time.FixedZone("X", 3600))
	r, err := toRow(p)
	if err != nil {
		t.Fatalf("toRow: %v", err)
	}
	if r.measurement != data.MeasurementTorrents || r.time.Location() != time.UTC {
		t.Fatalf("unexpected row %+v", r)
	}

	var tags map[string]string
	if err := json.Unmarshal(r.tags, &tags); err != nil {
		t.Fatal(err)
	}
	if !maps.Equal(tags, p.Tags) {
		t.Fatalf("tags = %v", tags)
	}

	var fields map[string]any
	if err := json.Unmarshal(r.fields, &fields); err != nil {
		t.Fatal(err)
	}
	if fields["name"] != "ubuntu.iso" || fields["uploaded"] != 100.0 {
		t.Fatalf("fields = %v", fields)
	}
}
