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

	"evidencevault/internal/api"
	"evidencevault/internal/auth"
	"evidencevault/internal/blob"
	"evidencevault/internal/config"
	"evidencevault/internal/db"
	"evidencevault/internal/logging"
	"evidencevault/internal/service"
	"evidencevault/internal/store"
	"evidencevault/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "evidencevault: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogFormat == "json"})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.ConfigFile != "" {
		logger.Info(ctx, "config file loaded", "path", cfg.ConfigFile)
	}

	conn, dialect, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()
	applied, err := db.Migrate(ctx, conn, dialect)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info(ctx, "database ready", "dialect", string(dialect), "migrations_applied", applied)

	blobs, err := blob.FromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	st := store.New(conn, dialect)
	svc := service.New(cfg, st, blobs, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL()), logger, service.Options{})
	if _, err := svc.BootstrapAdmin(ctx); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(cfg, svc, logger),
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", cfg.ListenAddr, "version", version.Current().String(), "blob_backend", cfg.BlobBackend)
		if err := hsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := hsrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
