// Package main implements a service that watches Twitter accounts and
// fires backend hook events when new tweets are detected.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"twitter-watcher/hook"
	"twitter-watcher/poll"
	"twitter-watcher/registry"
	"twitter-watcher/server"
	"twitter-watcher/storage"
	"twitter-watcher/twitter"
)

// Config holds service configuration, read from the environment.
type Config struct {
	BearerToken   string `envconfig:"TWITTER_BEARER_TOKEN"`
	HookURL       string `envconfig:"HOOK_URL" default:"http://127.0.0.1:8080"`
	HookToken     string `envconfig:"HOOK_TOKEN"`
	StorageBucket string `envconfig:"STORAGE_BUCKET"`
	LocalStorage  string `envconfig:"LOCAL_STORAGE"`
	Port          string `envconfig:"PORT" default:"9108"`
	PollInterval  int    `envconfig:"POLL_INTERVAL" default:"120"`
}

func loadConfig() (*Config, error) {
	// Load .env if present; absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Default to local storage mode when no bucket is configured.
	localStorage := cfg.LocalStorage
	if cfg.StorageBucket == "" && localStorage == "" {
		localStorage = "./data"
		logger.Info("No STORAGE_BUCKET set, defaulting to local storage mode", "storage_path", localStorage)
	}

	var gcsClient *gcs.Client
	if localStorage != "" {
		if err := os.MkdirAll(localStorage, 0o755); err != nil {
			logger.Error("Failed to create local storage directory", "error", err)
			os.Exit(1)
		}
	} else {
		gcsClient, err = gcs.NewClient(ctx)
		if err != nil {
			logger.Error("Failed to initialize Storage client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := gcsClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
	}
	store := storage.New(gcsClient, cfg.StorageBucket, localStorage, logger)

	reg := registry.New()
	entries, err := store.Load(ctx)
	switch {
	case storage.IsNotFound(err):
		logger.Info("No saved watch list, starting empty")
	case err != nil:
		logger.Error("Failed to load watch list", "error", err)
		os.Exit(1)
	default:
		restored := reg.ReplaceAll(entries)
		logger.Info("Watch list loaded", "accounts", restored)
	}

	checkpoint := func(ctx context.Context) {
		if err := store.Save(ctx, reg.Snapshot()); err != nil {
			logger.Warn("Failed to save watch list", "error", err)
		}
	}

	// Without API credentials the poll loop stays off but the control
	// surface keeps working.
	var feed poll.Feed
	var resolver server.Resolver
	if cfg.BearerToken != "" {
		client := twitter.New(cfg.BearerToken, logger)
		feed = client
		resolver = client
	} else {
		logger.Warn("TWITTER_BEARER_TOKEN not set, polling disabled")
	}

	var provider hook.Provider
	if cfg.HookToken != "" {
		provider = hook.NewHTTPProvider(cfg.HookURL, cfg.HookToken, logger)
	} else {
		logger.Info("Mock hook mode enabled (no HOOK_TOKEN)")
		provider = hook.NewMockProvider(logger)
	}
	dispatcher := hook.New(provider, logger)

	poller := poll.New(&poll.Config{
		Feed:       feed,
		Watchlist:  reg,
		Dispatcher: dispatcher,
		Logger:     logger,
		Interval:   time.Duration(cfg.PollInterval) * time.Second,
		Checkpoint: checkpoint,
	})
	if poller.Enabled() {
		go poller.Run(ctx)
	}

	srv := server.New(&server.Config{
		Store:      reg,
		Resolver:   resolver,
		Poller:     poller,
		Logger:     logger,
		Checkpoint: checkpoint,
	})
	if err := srv.ListenAndServe(ctx, cfg.Port); err != nil {
		logger.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
