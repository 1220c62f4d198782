package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tinoosan/seedstat/internal/config"
)

// Options controls where log lines go.
type Options struct {
	Config config.Logging
	// ClientURL is masked from every line when Config.Censor is set.
	ClientURL string
	// Console mirrors log lines to stderr in human readable form.
	Console bool
}

// New builds the application logger. The returned closer flushes and closes
// the log file, if any.
func New(o Options) (zerolog.Logger, io.Closer) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	wrap := func(w io.Writer) io.Writer {
		if o.Config.Censor {
			return NewRedactor(w, o.ClientURL)
		}
		return w
	}

	if o.Config.Enable && o.Config.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   o.Config.LogFile,
			MaxSize:    o.Config.MaxSize,
			MaxBackups: o.Config.MaxBackups,
			MaxAge:     o.Config.MaxAge,
		}
		closer = lj
		writers = append(writers, wrap(lj))
	}
	if o.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: wrap(os.Stderr), TimeFormat: time.RFC3339})
	}
	if len(writers) == 0 {
		return zerolog.Nop(), closer
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return l.Level(ParseLevel(o.Config.Level)), closer
}

// ParseLevel maps the configured level names onto zerolog levels.
func ParseLevel(s string) zerolog.Level {
	switch s {
	case "critical":
		return zerolog.FatalLevel
	case "error":
		return zerolog.ErrorLevel
	case "warning":
		return zerolog.WarnLevel
	case "debug":
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Critical logs at fatal level without exiting; process termination is left to main.
func Critical(l zerolog.Logger) *zerolog.Event {
	return l.WithLevel(zerolog.FatalLevel)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
