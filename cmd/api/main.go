// Package main implements the course recommender API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LuisaMG01/course-vectorization/engine/ingest"
	"github.com/LuisaMG01/course-vectorization/pkg/bootstrap"
	"github.com/LuisaMG01/course-vectorization/pkg/config"
	"github.com/LuisaMG01/course-vectorization/pkg/mid"
	"github.com/LuisaMG01/course-vectorization/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if logger, err = bootstrap.NewLogger(cfg.Log, os.Stdout); err != nil {
		slog.Error("invalid log level", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Build the service; an unreachable index aborts startup ---
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Error("close failed", "err", err)
		}
	}()

	// --- Optional NATS ingest consumer ---
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.OTel.ServiceName))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		// Runs before app.Close: in-flight ingest must finish while the
		// index is still open.
		defer func() {
			if err := natsutil.DrainAndWait(nc, 10*time.Second); err != nil {
				logger.Warn("nats drain failed", "err", err)
			}
		}()

		consumer := ingest.NewConsumer(app.Service, nc, logger)
		if _, err := consumer.Start(nc); err != nil {
			return fmt.Errorf("ingest consumer: %w", err)
		}
		logger.Info("ingest consumer started", "subject", ingest.IngestSubject, "queue", ingest.QueueGroup)
	}

	// --- Build HTTP server ---
	mux := routes(app.Service, app.Metrics, logger)
	handler := mid.Chain(mux,
		mid.OTel(cfg.OTel.ServiceName),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.Server.CORSOrigin),
		mid.BodyLimit(cfg.Server.BodyLimit),
		mid.Metrics(app.Metrics),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
