package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/tinoosan/seedstat/internal/aggregate"
	"github.com/tinoosan/seedstat/internal/client"
	_ "github.com/tinoosan/seedstat/internal/client/deluge"
	_ "github.com/tinoosan/seedstat/internal/client/rtorrent"
	_ "github.com/tinoosan/seedstat/internal/client/utorrent"
	"github.com/tinoosan/seedstat/internal/config"
	"github.com/tinoosan/seedstat/internal/logging"
	"github.com/tinoosan/seedstat/internal/metrics"
	"github.com/tinoosan/seedstat/internal/poller"
	"github.com/tinoosan/seedstat/internal/router"
	"github.com/tinoosan/seedstat/internal/sink"
)

const (
	configFlag  = "config"
	onceFlag    = "once"
	verboseFlag = "verbose"
)

func main() {
	app := &cli.App{
		Name:  "seedstat",
		Usage: "Collect torrent client statistics into a time-series database.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Value:   "./config.yaml",
				EnvVars: []string{"SEEDSTAT_CONFIG"},
				Usage:   "YAML file containing seedstat configuration.",
			},
			&cli.BoolFlag{
				Name:  onceFlag,
				Usage: "Run a single poll cycle and exit.",
			},
			&cli.BoolFlag{
				Name:    verboseFlag,
				Aliases: []string{"v"},
				Usage:   "Mirror log output to the console.",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String(configFlag), c.Bool(onceFlag), c.Bool(verboseFlag))
		},
		HideHelpCommand: true,
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, once, verbose bool) error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	for _, w := range cfg.Warnings {
		pterm.Warning.Println(w)
	}

	log, closer := logging.New(logging.Options{
		Config:    cfg.Logging,
		ClientURL: cfg.TorrentClient.URL,
		Console:   verbose,
	})
	defer func() { _ = closer.Close() }()
	metrics.Register()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tc, err := client.New(ctx, cfg.TorrentClient, log)
	if err != nil {
		var fe *client.FatalAuthError
		if errors.As(err, &fe) {
			logging.Critical(log).Err(err).Msg("Aborting")
		}
		return err
	}

	s, err := sink.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("error opening %s sink: %w", cfg.Sink, err)
	}
	defer func() { _ = s.Close() }()

	p := poller.New(log, tc, s, cfg.General.DelayDuration(), cfg.General.Hostname)
	if once {
		if err := p.RunOnce(ctx); err != nil && !errors.Is(err, aggregate.ErrNoData) {
			return err
		}
		return nil
	}

	if cfg.HTTP.Enable {
		srv := serve(cfg.HTTP.Listen, router.New(log, p, cfg.HTTP.Token), log)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	log.Info().
		Str("client", tc.Name()).
		Str("sink", cfg.Sink).
		Dur("delay", cfg.General.DelayDuration()).
		Msg("starting seedstat")
	p.Run(ctx)
	<-ctx.Done()
	log.Info().Msg("received terminate, graceful shutdown")
	p.Stop()
	return nil
}

func serve(addr string, h http.Handler, log zerolog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("starting http listener")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http listener stopped")
		}
	}()
	return srv
}
