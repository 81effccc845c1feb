// Command ingest runs the NATS course ingest consumer without the HTTP
// API. Courses published on courses.ingest are embedded and stored;
// failures go to courses.ingest.dlq.
package main

import (
	"context"
	"errors"
	"flag"
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
	"github.com/LuisaMG01/course-vectorization/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

func main() {
	metricsAddr := flag.String("metrics", ":9091", "address serving /metrics; empty disables it")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if cfg.NATS.URL == "" {
		logger.Error("NATS_URL is required")
		os.Exit(1)
	}
	if logger, err = bootstrap.NewLogger(cfg.Log, os.Stdout); err != nil {
		slog.Error("invalid log level", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, *metricsAddr, logger); err != nil {
		logger.Error("ingest exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, metricsAddr string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close(context.Background())

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(cfg.OTel.ServiceName+"-ingest"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	consumer := ingest.NewConsumer(app.Service, nc, logger)
	if _, err := consumer.Start(nc); err != nil {
		return fmt.Errorf("ingest consumer: %w", err)
	}
	logger.Info("ingest consumer started", "subject", ingest.IngestSubject, "queue", ingest.QueueGroup)

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", app.Metrics.Handler())
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := natsutil.DrainAndWait(nc, 10*time.Second); err != nil {
		logger.Warn("nats drain failed", "err", err)
	}
	if srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
	return nil
}
