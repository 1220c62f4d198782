package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/config"
)

func TestRedactorMasksURLAndIPs(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor(&buf, "http://seedbox.lan:8112/json")

	line := []byte("calling http://seedbox.lan:8112/json from 192.168.1.20 via 10.0.0.1\n")
	n, err := r.Write(line)
	if err != nil || n != len(line) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	out := buf.String()
	for _, s := range []string{"seedbox.lan", "192.168.1.20", "10.0.0.1"} {
		if strings.Contains(out, s) {
			t.Fatalf("%q not redacted: %s", s, out)
		}
	}
	if strings.Count(out, maskedIP) != 2 || !strings.Contains(out, maskedURL) {
		t.Fatalf("unexpected redaction: %s", out)
	}
}

func TestRedactorLeavesOtherText(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor(&buf, "")
	if _, err := r.Write([]byte("version 2.0.3 ok\n")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "version 2.0.3 ok\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestNewWritesRedactedFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "seedstat.log")
	l, closer := New(Options{
		Config:    config.Logging{Enable: true, Level: "info", LogFile: p, Censor: true},
		ClientURL: "http://seedbox.lan:8112/json",
	})
	l.Info().Str("url", "http://seedbox.lan:8112/json").Msg("authenticating")
	l.Debug().Msg("hidden at info")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	if !strings.Contains(out, "authenticating") {
		t.Fatalf("message missing: %s", out)
	}
	if strings.Contains(out, "seedbox.lan") || strings.Contains(out, "hidden at info") {
		t.Fatalf("unexpected content: %s", out)
	}
}

func TestNewDisabledIsNop(t *testing.T) {
	l, closer := New(Options{Config: config.Logging{Enable: false}})
	if l.GetLevel() != zerolog.Disabled {
		t.Fatalf("level = %v", l.GetLevel())
	}
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"critical": zerolog.FatalLevel,
		"warning":  zerolog.WarnLevel,
		"debug":    zerolog.DebugLevel,
		"":         zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
