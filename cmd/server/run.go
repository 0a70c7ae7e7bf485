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

	"github.com/npezzotti/go-notepad/internal/api"
	"github.com/npezzotti/go-notepad/internal/broadcast"
	"github.com/npezzotti/go-notepad/internal/collab"
	"github.com/npezzotti/go-notepad/internal/config"
	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/logging"
	"github.com/npezzotti/go-notepad/internal/presence"
	"github.com/npezzotti/go-notepad/internal/ratelimit"
	"github.com/npezzotti/go-notepad/internal/server"
	"github.com/npezzotti/go-notepad/internal/stats"
	"github.com/npezzotti/go-notepad/internal/storage"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func migrate(dsn string) error {
	if err := database.Migrate(dsn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (database.NotepadRepository, error) {
	switch cfg.Store {
	case config.StorePostgres:
		if err := migrate(cfg.DatabaseDSN); err != nil {
			return nil, err
		}
		return database.NewPgNotepadRepository(cfg.DatabaseDSN)
	case config.StoreMongo:
		return database.NewMongoNotepadRepository(ctx, cfg.DatabaseDSN, cfg.MongoDatabase)
	default:
		return database.NewMemNotepadRepository()
	}
}

func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func() error, error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.LoginRate, cfg.LoginBurst), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	return ratelimit.NewRedis(client, cfg.LoginRate, cfg.LoginBurst, time.Second), client.Close, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("store close: %v", err)
		}
	}()
	logger.Infof("using %s document store", cfg.Store)

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var files storage.FileStore
	if cfg.MinIO != nil {
		minioStore, err := storage.NewMinIOStorage(ctx, *cfg.MinIO)
		if err != nil {
			return err
		}
		files = minioStore
	} else {
		logger.Warn("no MinIO endpoint configured, attachments are disabled")
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)

	registry := presence.NewRegistry()
	channel := broadcast.NewChannel(registry, logger.Named("broadcast"), statsUpdater)
	tracker := presence.NewTracker(registry, channel, logger.Named("presence"), statsUpdater)
	core := collab.NewCore(store, channel, logger.Named("collab"), statsUpdater)
	notepadServer := server.NewNotepadServer(logger.Named("ws"), store, tracker, channel, core, statsUpdater)

	app := api.NewNotepadApp(mux, logger.Named("http"), notepadServer, core, store, limiter, files, statsUpdater, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Infof("received signal: %s", sig)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutDownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Errorf("HTTP server shutdown: %v", err)
	}

	logger.Info("disconnecting websocket clients...")
	if err := notepadServer.Shutdown(shutDownCtx); err != nil {
		logger.Errorf("notepad server shutdown: %v", err)
	}

	logger.Info("shutdown complete")
	return nil
}
