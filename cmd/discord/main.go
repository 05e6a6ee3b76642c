// cmd/discord/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keshon/yomiage/internal/app"
	"github.com/keshon/yomiage/internal/config"
	"github.com/keshon/yomiage/internal/discord"
	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/metrics"
	"github.com/keshon/yomiage/pkg/jobmgr"
)

const (
	appName         = "yomiage"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info").Fatal("Invalid configuration", "err", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)
	if err := cfg.RequireDiscord(); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}
	logger.Info("Starting bot", "app", appName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", "driver", cfg.StorageDriver, "err", err)
	}
	defer store.Close()

	table, err := app.LoadPhonetic(cfg.PhoneticDictPath, logger)
	if err != nil {
		logger.Fatal("Failed to load phonetic table", "err", err)
	}

	dg, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		logger.Fatal("Failed to create Discord session", "err", err)
	}

	services := app.New(app.Options{
		Config:    cfg,
		Store:     store,
		Transport: discord.NewVoiceTransport(dg, logger),
		Synth:     app.SynthFactory(cfg),
		Phonetic:  table,
		Logger:    logger,
	})

	jm := jobmgr.NewManager(jobmgr.LogReporter(logging.For(logger, "jobs")))
	if err := jm.StartAsync(ctx, "event-pump", services.RunEventPump); err != nil {
		logger.Fatal("Failed to start event pump", "err", err)
	}
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, metrics.NewRegistry())
		if err := jm.StartAsync(ctx, "metrics", func(ctx context.Context) error {
			return serve(ctx, srv)
		}); err != nil {
			logger.Fatal("Failed to start metrics server", "err", err)
		}
	}

	bot := discord.New(discord.Config{
		Session:  dg,
		Config:   cfg,
		Commands: services.Reader,
		Events:   services.Reader,
		Settings: services.Settings,
		Tags:     services.Tags,
		Logger:   logger,
	})
	if err := bot.Open(ctx); err != nil {
		logger.Fatal("Failed to connect to Discord", "err", err)
	}
	logger.Info("Bot is running, press Ctrl+C to exit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("Received signal, shutting down", "signal", s.String())

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	services.Shutdown(shutdownCtx)
	if err := bot.Close(); err != nil {
		logger.Warn("Failed to close Discord session", "err", err)
	}
	cancel()
	jm.StopAll()
	jm.Wait()

	logger.Info("Bot exited cleanly")
}

// serve runs srv until ctx is done.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
