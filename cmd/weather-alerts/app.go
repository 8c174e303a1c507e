package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mr1hm/go-weather-alerts/internal/config"
	"github.com/mr1hm/go-weather-alerts/internal/dispatch"
	"github.com/mr1hm/go-weather-alerts/internal/logging"
	"github.com/mr1hm/go-weather-alerts/internal/push"
	"github.com/mr1hm/go-weather-alerts/internal/repository"
)

// app holds the long-lived collaborators shared by every command.
type app struct {
	cfg        *config.Config
	store      repository.Store
	dispatcher *dispatch.Dispatcher
	logCloser  io.Closer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logCloser := logging.Setup(cfg.Logging.Level, cfg.Logging.File)

	store, err := repository.Open(ctx, cfg.DB)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	gateway, err := newGateway(ctx, cfg.Push)
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, fmt.Errorf("init push gateway: %w", err)
	}

	return &app{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatch.New(store, gateway, cfg.Push.Concurrency),
		logCloser:  logCloser,
	}, nil
}

func newGateway(ctx context.Context, cfg config.PushConfig) (push.SingleSender, error) {
	if cfg.CredentialsFile == "" {
		slog.Warn("PUSH_CREDENTIALS_FILE not set, notifications will only be logged")
		return push.LogSender{}, nil
	}
	return push.NewFCM(ctx, cfg.CredentialsFile)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	a.logCloser.Close()
}

// run builds the app under a signal-aware context and hands it to fn.
func run(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
