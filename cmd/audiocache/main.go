package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ashwake/audiocache/internal/artwork"
	"github.com/ashwake/audiocache/internal/audio"
	"github.com/ashwake/audiocache/internal/cache"
	"github.com/ashwake/audiocache/internal/config"
	"github.com/ashwake/audiocache/internal/dash"
	"github.com/ashwake/audiocache/internal/download"
	"github.com/ashwake/audiocache/internal/server"
	"github.com/ashwake/audiocache/internal/upstream"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "audiocache",
	})

	app := &cli.Command{
		Name:    "audiocache",
		Usage:   "Cache and serve lossless audio tracks over HTTP",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath(),
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address, overrides the configured one",
			},
			&cli.StringFlag{
				Name:  "storage",
				Usage: "Storage root directory, overrides the configured one",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Cache index path, overrides the configured one",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("verbose") {
				logger.SetLevel(log.DebugLevel)
			}
			return run(ctx, cmd, logger)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("application error", "err", err)
	}
}

func defaultConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "audiocache.json"
	}
	return configDir + "/audiocache/settings.json"
}

func run(ctx context.Context, cmd *cli.Command, logger *log.Logger) error {
	settings, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if addr := cmd.String("listen"); addr != "" {
		settings.ListenAddr = addr
	}
	if root := cmd.String("storage"); root != "" {
		settings.StorageRoot = root
	}
	if db := cmd.String("db"); db != "" {
		settings.CacheDBPath = db
	}

	fileCache, err := cache.Open(settings.CacheDBPath, logger)
	if err != nil {
		return err
	}
	defer fileCache.Close()

	client := upstream.NewClient(logger)
	assembler := dash.NewAssembler(client, logger)
	artworkSvc := artwork.NewService(client, settings.CoverArtMaxSize, logger)
	tagger := audio.NewTagger(settings.ModifyTags)

	coordinator := download.NewCoordinator(
		settings, fileCache, client, assembler, artworkSvc, tagger, logger)
	srv := server.New(settings, coordinator, fileCache, settings.Instances, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
