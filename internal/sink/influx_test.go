package sink

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/config"
)

// fakeInflux mimics the /write and /query endpoints of InfluxDB 1.x.
type fakeInflux struct {
	mu        sync.Mutex
	exists    bool
	failWrite int
	writes    []string
	queries   []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/write":
		if f.failWrite > 0 {
			f.failWrite--
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"timeout"}`))
			return
		}
		if !f.exists {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"database not found: \"torrents\""}`))
			return
		}
		b, _ := io.ReadAll(r.Body)
		f.writes = append(f.writes, string(b))
		w.WriteHeader(http.StatusNoContent)
	case "/query":
		_ = r.ParseForm()
		f.queries = append(f.queries, r.Form.Get("q"))
		if strings.HasPrefix(r.Form.Get("q"), "CREATE DATABASE") {
			f.exists = true
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"statement_id":0}]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestInflux(t *testing.T, f *fakeInflux) (*Influx, func()) {
	t.Helper()
	srv := httptest.NewServer(f)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewInflux(context.Background(), config.InfluxDB{Address: host, Port: p, Database: "torrents"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewInflux: %v", err)
	}
	s.backoff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return s, func() {
		_ = s.Close()
		srv.Close()
	}
}

func TestInfluxCreatesMissingDatabase(t *testing.T) {
	f := &fakeInflux{}
	s, done := newTestInflux(t, f)
	defer done()

	if err := s.Write(context.Background(), samplePoints()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) != 1 || f.queries[0] != `CREATE DATABASE "torrents"` {
		t.Fatalf("queries = %q", f.queries)
	}
	if len(f.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(f.writes))
	}
	for _, want := range []string{"torrents,client=Deluge,hash=abc,host=box,tracker=tracker.example.org", "uploaded=100i", "trackers,client=Deluge"} {
		if !strings.Contains(f.writes[0], want) {
			t.Fatalf("%q missing from line protocol:\n%s", want, f.writes[0])
		}
	}
}

func TestInfluxRetriesTransientFailure(t *testing.T) {
	f := &fakeInflux{exists: true, failWrite: 2}
	s, done := newTestInflux(t, f)
	defer done()

	if err := s.Write(context.Background(), samplePoints()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) != 1 || len(f.queries) != 0 {
		t.Fatalf("writes = %d queries = %d", len(f.writes), len(f.queries))
	}
}

func TestInfluxGivesUp(t *testing.T) {
	f := &fakeInflux{exists: true, failWrite: writeAttempts}
	s, done := newTestInflux(t, f)
	defer done()

	if err := s.Write(context.Background(), samplePoints()); err == nil {
		t.Fatalf("expected error after %d attempts", writeAttempts)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) != 0 || f.failWrite != 0 {
		t.Fatalf("writes = %d remaining failures = %d", len(f.writes), f.failWrite)
	}
}
