package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bengkel-pos/api/internal/config"
	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/bengkel-pos/api/internal/router"
	"github.com/bengkel-pos/api/internal/ws"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connect(ctx, cfg.Database, zl)
	if err != nil {
		zl.Fatalw("Failed to connect to database", "error", err)
	}
	defer pool.Close()

	hub := ws.NewHub(zl.With("component", "ws"))
	go hub.Run(ctx)

	r, err := router.New(cfg, zl, database.New(pool), pool, hub)
	if err != nil {
		zl.Fatalw("Failed to build router", "error", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Infow("Starting server", "port", cfg.Server.Port, "requirement_policy", cfg.Billing.RequirementPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatalw("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	zl.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Errorw("Server forced to shutdown", "error", err)
	}
	zl.Info("Server exited")
}

// connect opens the pool and pings it, retrying with exponential backoff until
// ConnectTimeout elapses. The database often starts after the API in compose.
func connect(ctx context.Context, cfg config.DatabaseConfig, zl *logger.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.ConnectTimeout
	ping := func() error {
		if err := pool.Ping(ctx); err != nil {
			zl.Warnw("Database not ready", "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		pool.Close()
		return nil, err
	}
	zl.Info("Connected to database")
	return pool, nil
}
