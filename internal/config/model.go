package config

import "time"

// Root is the main yaml config object.
type Root struct {
	General       General       `yaml:"general"`
	InfluxDB      InfluxDB      `yaml:"influxdb"`
	Postgres      Postgres      `yaml:"postgres"`
	Sink          string        `yaml:"sink"`
	Logging       Logging       `yaml:"logging"`
	TorrentClient TorrentClient `yaml:"torrent_client"`
	HTTP          HTTP          `yaml:"http"`

	// Warnings collects non fatal problems found while loading.
	Warnings []string `yaml:"-"`
}

type General struct {
	// Delay between poll cycles, in seconds.
	Delay    int    `yaml:"delay"`
	Output   bool   `yaml:"output"`
	Hostname string `yaml:"hostname"`
}

type InfluxDB struct {
	Address   string `yaml:"address"`
	Port      int    `yaml:"port"`
	Database  string `yaml:"database"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	SSL       bool   `yaml:"ssl"`
	VerifySSL bool   `yaml:"verify_ssl"`
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Logging struct {
	Enable     bool   `yaml:"enable"`
	Level      string `yaml:"level"`
	LogFile    string `yaml:"logfile"`
	Censor     bool   `yaml:"censor"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

type TorrentClient struct {
	Client   string `yaml:"client"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	URL      string `yaml:"url"`
	// Timeout per request, in seconds.
	Timeout int `yaml:"timeout"`
	// Concurrency bounds parallel per-torrent requests (uTorrent).
	Concurrency int `yaml:"concurrency"`
	// Rate caps per-torrent requests per second (uTorrent); 0 disables.
	Rate float64 `yaml:"rate"`
}

type HTTP struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
	// Token, when set, is required as a bearer token on everything but the
	// health checks.
	Token string `yaml:"token"`
}

const (
	ClientDeluge   = "deluge"
	ClientUTorrent = "utorrent"
	ClientRTorrent = "rtorrent"

	SinkInfluxDB = "influxdb"
	SinkPostgres = "postgres"
	SinkConsole  = "console"
)

var validLevels = []string{"critical", "error", "warning", "info", "debug"}

func (g General) DelayDuration() time.Duration { return time.Duration(g.Delay) * time.Second }

func (t TorrentClient) TimeoutDuration() time.Duration { return time.Duration(t.Timeout) * time.Second }
