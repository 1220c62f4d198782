package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownClient = errors.New("unknown torrent client")
	ErrUnknownSink   = errors.New("unknown metrics sink")
	ErrMissingURL    = errors.New("torrent_client.url is required")
	ErrMissingDSN    = errors.New("postgres.dsn is required for the postgres sink")
)

// Default returns a configuration populated with every default value. Load
// decodes the file on top of it so absent keys keep their defaults.
func Default() *Root {
	return &Root{
		General: General{Delay: 2},
		InfluxDB: InfluxDB{
			Address:   "localhost",
			Port:      8086,
			Database:  "torrents",
			VerifySSL: true,
		},
		Sink: SinkInfluxDB,
		Logging: Logging{
			Level:      "info",
			LogFile:    "seedstat.log",
			Censor:     true,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		TorrentClient: TorrentClient{
			Timeout:     10,
			Concurrency: 4,
			Rate:        20,
		},
		HTTP: HTTP{Listen: ":9090"},
	}
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load config file %s: %w", path, err)
	}
	return Parse(b)
}

// Parse is Load without the file read.
func Parse(b []byte) (*Root, error) {
	r := Default()
	if err := yaml.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	applyEnv(r)
	if err := r.normalize(); err != nil {
		return nil, err
	}
	return r, nil
}

func applyEnv(r *Root) {
	r.TorrentClient.URL = getenv("SEEDSTAT_CLIENT_URL", r.TorrentClient.URL)
	r.TorrentClient.Username = getenv("SEEDSTAT_CLIENT_USERNAME", r.TorrentClient.Username)
	r.TorrentClient.Password = getenv("SEEDSTAT_CLIENT_PASSWORD", r.TorrentClient.Password)
	r.InfluxDB.Password = getenv("SEEDSTAT_INFLUX_PASSWORD", r.InfluxDB.Password)
	r.Postgres.DSN = getenv("SEEDSTAT_POSTGRES_DSN", r.Postgres.DSN)
	r.HTTP.Token = getenv("SEEDSTAT_HTTP_TOKEN", r.HTTP.Token)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (r *Root) normalize() error {
	if r.General.Delay <= 0 {
		r.General.Delay = 2
	}
	if r.General.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			r.General.Hostname = h
		}
	}
	if r.InfluxDB.Port == 0 {
		r.InfluxDB.Port = 8086
	}
	if r.TorrentClient.Timeout <= 0 {
		r.TorrentClient.Timeout = 10
	}
	if r.TorrentClient.Concurrency <= 0 {
		r.TorrentClient.Concurrency = 1
	}

	r.Logging.Level = strings.ToLower(strings.TrimSpace(r.Logging.Level))
	if r.Logging.Enable && !slices.Contains(validLevels, r.Logging.Level) {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"invalid logging level %q, logging will be disabled; valid options are: %s",
			r.Logging.Level, strings.Join(validLevels, ", ")))
		r.Logging.Enable = false
	}

	r.TorrentClient.Client = strings.ToLower(strings.TrimSpace(r.TorrentClient.Client))
	switch r.TorrentClient.Client {
	case ClientDeluge, ClientUTorrent, ClientRTorrent:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownClient, r.TorrentClient.Client)
	}
	r.TorrentClient.URL = strings.TrimRight(strings.TrimSpace(r.TorrentClient.URL), "/")
	if r.TorrentClient.URL == "" {
		return ErrMissingURL
	}

	r.Sink = strings.ToLower(strings.TrimSpace(r.Sink))
	switch r.Sink {
	case SinkInfluxDB, SinkConsole:
	case SinkPostgres:
		if r.Postgres.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSink, r.Sink)
	}
	return nil
}
