package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/radar-rain-alert/internal/adapter/browser"
	httpadapter "github.com/couchcryptid/radar-rain-alert/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/radar-rain-alert/internal/adapter/kafka"
	"github.com/couchcryptid/radar-rain-alert/internal/adapter/wecom"
	"github.com/couchcryptid/radar-rain-alert/internal/config"
	"github.com/couchcryptid/radar-rain-alert/internal/observability"
	"github.com/couchcryptid/radar-rain-alert/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// app holds the wired components shared by both commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	writer   *kafkaadapter.Writer
}

func setup(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	metrics := observability.NewMetrics()

	launcher := browser.NewLauncher(browser.Options{
		Width:            cfg.ViewportWidth,
		Height:           cfg.ViewportHeight,
		Headless:         cfg.Headless,
		ExecPath:         cfg.ChromePath,
		PageLoadTimeout:  cfg.PageLoadTimeout,
		StepClickTimeout: cfg.StepClickTimeout,
	}, logger)

	a := &app{cfg: cfg, logger: logger}

	deps := pipeline.Deps{
		Launcher: pipeline.LauncherFunc(func(ctx context.Context) (pipeline.Page, error) {
			page, err := launcher.Launch(ctx)
			if err != nil {
				return nil, err
			}
			return page, nil
		}),
		Notifier: wecom.NewClient(cfg.WebhookURL, cfg.NotifyTimeout, logger),
		Logger:   logger,
		Metrics:  metrics,
	}

	if len(cfg.KafkaBrokers) > 0 {
		a.writer = kafkaadapter.NewWriter(cfg, logger)
		deps.Publisher = a.writer
		logger.Info("kafka detection events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.WebhookURL == "" {
		logger.Warn("WEBHOOK_URL is empty, detections will only be printed")
	}

	mapURL := browser.BuildMapURL(cfg.MapBaseURL, cfg.View, cfg.Zoom)
	a.pipeline = pipeline.New(cfg, mapURL, deps)
	return a, nil
}

func (a *app) close() {
	if a.writer == nil {
		return
	}
	if err := a.writer.Close(); err != nil {
		a.logger.Error("kafka writer close error", "error", err)
	}
}

// RunAction performs a single radar check. Metrics are pushed to the
// Pushgateway when one is configured.
func RunAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, runErr := a.pipeline.RunOnce(ctx)

	pusher := observability.NewPusher(a.cfg.PushgatewayURL, prometheus.DefaultGatherer)
	if err := pusher.Push(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("metrics push failed", "error", err)
	}
	return runErr
}

// WatchAction repeats radar checks until interrupted, serving /healthz,
// /readyz, /last and /metrics.
func WatchAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.pipeline, a.logger)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	runErr := a.pipeline.Run(ctx)
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return runErr
}
