package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"fichapro/internal/config"
	"fichapro/internal/db"
	"fichapro/internal/db/mock"
	applog "fichapro/internal/log"
	"fichapro/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applog.SetLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	srv, err := server.New(server.Config{
		Addr:     cfg.Server.Addr,
		Auth:     cfg.Auth,
		Database: database,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		applog.Info(ctx, "shutting down", "signal", sig.String())
	}

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openDatabase connects to postgres, or to the seeded in-memory
// database when the mock flag is set or no URL is configured.
func openDatabase(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	if cfg.Database.UseMock || cfg.Database.URL == "" {
		applog.Info(ctx, "using seeded in-memory database")
		return mock.New(ctx)
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(database); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return database, nil
}
