package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/LivePodcast/internal/adapters/http"
	"github.com/dkeye/LivePodcast/internal/app"
	"github.com/dkeye/LivePodcast/internal/app/orch"
	"github.com/dkeye/LivePodcast/internal/archive"
	"github.com/dkeye/LivePodcast/internal/config"
	"github.com/dkeye/LivePodcast/internal/recording"
	"github.com/dkeye/LivePodcast/internal/telemetry"
)

func setupLogger(cfg config.Log) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	setLogLevel(cfg.Level)
}

func setLogLevel(name string) {
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Console output until the config decides otherwise.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Log)

	if err := config.Watch(config.Path(), func(c *config.Config) { setLogLevel(c.Log.Level) }); err != nil {
		log.Debug().Err(err).Msg("config hot reload disabled")
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	otelShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return errors.Wrap(err, "init telemetry")
	}

	var uploader *archive.Uploader
	var recOpts []recording.Option
	if cfg.Archive.Enabled {
		store, err := archive.NewS3Store(ctx, cfg.Archive.S3)
		if err != nil {
			return errors.Wrap(err, "init archive")
		}
		uploader = archive.NewUploader(store, cfg.Archive.S3.Prefix, cfg.Archive.Queue, cfg.Archive.Timeout)
		recOpts = append(recOpts, recording.WithFinalizeHook(func(info recording.Info) {
			if info.EncodedBytes == 0 {
				return
			}
			if err := uploader.Enqueue(info.Path); err != nil {
				log.Warn().Str("module", "main").Err(err).Str("path", info.Path).Msg("recording not archived")
			}
		}))
	}

	recorder, err := recording.NewRecorder(cfg.Recording, recording.NewFFmpegFactory(cfg.Recording.FFmpegPath), recOpts...)
	if err != nil {
		return errors.Wrap(err, "init recorder")
	}

	policy, err := app.PolicyFromName(cfg.Relay.SlowListener)
	if err != nil {
		return err
	}

	o := &orch.Orchestrator{
		Registry:   app.NewRegistry(),
		Rooms:      app.NewRoomManager(),
		Policy:     policy,
		Broadcasts: app.NewBroadcasts(recorder),
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Bool("tls", cfg.TLS.Enabled()).Str("recordings", recorder.Dir()).Msg("LivePodcast server started")
		var err error
		if cfg.TLS.Enabled() {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = errors.Wrap(err, "server error")
		}
	}

	log.Info().Int("connections", o.Registry.Len()).Int("recordings", recorder.Len()).Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Hijacked websockets are not tracked by srv.Shutdown; cancel them explicitly.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.Registry.CancelAll()

	if err := recorder.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("recordings not finalized cleanly")
	}
	if uploader != nil {
		if err := uploader.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("archive uploads abandoned")
		}
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown failed")
	}
	return runErr
}
