package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	r, err := Parse([]byte(`
torrent_client:
  client: Deluge
  url: http://seedbox:8112/json/
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if r.General.Delay != 2 || r.General.Hostname == "" {
		t.Fatalf("general = %+v", r.General)
	}
	if r.InfluxDB.Port != 8086 || !r.InfluxDB.VerifySSL {
		t.Fatalf("influxdb = %+v", r.InfluxDB)
	}
	if !r.Logging.Censor || r.Sink != SinkInfluxDB {
		t.Fatalf("censor = %v sink = %q", r.Logging.Censor, r.Sink)
	}
	tc := r.TorrentClient
	if tc.Client != ClientDeluge || tc.URL != "http://seedbox:8112/json" || tc.Timeout != 10 {
		t.Fatalf("torrent_client = %+v", tc)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", r.Warnings)
	}
}

func TestParseOverrides(t *testing.T) {
	r, err := Parse([]byte(`
general:
  delay: 30
  output: true
  hostname: box1
influxdb:
  address: influx
  port: 8087
  verify_ssl: false
logging:
  enable: true
  level: DEBUG
  censor: false
torrent_client:
  client: utorrent
  url: http://seedbox:8080/gui
  concurrency: 8
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if r.General.Delay != 30 || !r.General.Output || r.General.Hostname != "box1" {
		t.Fatalf("general = %+v", r.General)
	}
	if r.InfluxDB.Address != "influx" || r.InfluxDB.Port != 8087 || r.InfluxDB.VerifySSL {
		t.Fatalf("influxdb = %+v", r.InfluxDB)
	}
	if r.Logging.Level != "debug" || r.Logging.Censor {
		t.Fatalf("logging = %+v", r.Logging)
	}
	if r.TorrentClient.Concurrency != 8 {
		t.Fatalf("concurrency = %d", r.TorrentClient.Concurrency)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("SEEDSTAT_CLIENT_PASSWORD", "s3cret")
	t.Setenv("SEEDSTAT_POSTGRES_DSN", "postgres://u:p@db/metrics")
	t.Setenv("SEEDSTAT_HTTP_TOKEN", "scrape")

	r, err := Parse([]byte(`
sink: postgres
torrent_client:
  client: rtorrent
  url: http://seedbox/RPC2
  password: fromfile
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.TorrentClient.Password != "s3cret" {
		t.Fatalf("password = %q", r.TorrentClient.Password)
	}
	if r.Postgres.DSN != "postgres://u:p@db/metrics" {
		t.Fatalf("dsn = %q", r.Postgres.DSN)
	}
	if r.HTTP.Token != "scrape" {
		t.Fatalf("token = %q", r.HTTP.Token)
	}
}

func TestParseInvalidLevelDisablesLogging(t *testing.T) {
	r, err := Parse([]byte(`
logging:
  enable: true
  level: verbose
torrent_client:
  client: deluge
  url: http://seedbox:8112/json
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Logging.Enable {
		t.Fatalf("logging should be disabled")
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "verbose") {
		t.Fatalf("warnings = %v", r.Warnings)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown client", "torrent_client: {client: transmission, url: http://x}", ErrUnknownClient},
		{"missing url", "torrent_client: {client: deluge}", ErrMissingURL},
		{"unknown sink", "sink: graphite\ntorrent_client: {client: deluge, url: http://x}", ErrUnknownSink},
		{"postgres without dsn", "sink: postgres\ntorrent_client: {client: deluge, url: http://x}", ErrMissingDSN},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("torrent_client: {client: deluge, url: http://x}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.TorrentClient.Client != ClientDeluge {
		t.Fatalf("client = %q", r.TorrentClient.Client)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
