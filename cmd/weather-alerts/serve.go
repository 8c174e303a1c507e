package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-weather-alerts/internal/api"
	"github.com/mr1hm/go-weather-alerts/internal/broadcast"
	internalgrpc "github.com/mr1hm/go-weather-alerts/internal/grpc"
	"github.com/mr1hm/go-weather-alerts/internal/ingestion"
	"github.com/mr1hm/go-weather-alerts/internal/retention"
	"github.com/mr1hm/go-weather-alerts/internal/scheduler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "push_strategy", a.dispatcher.Strategy())

	broadcaster := broadcast.NewBroadcaster()
	ingestor := ingestion.NewIngestor(ingestion.NewNWSClient(cfg.Feed), a.store, a.dispatcher, broadcaster)
	sweeper := retention.NewSweeper(a.store, cfg.Schedule.RetentionDays)

	sched := scheduler.New(
		func(err error) bool { return errors.Is(err, ingestion.ErrTickInProgress) },
		scheduler.Job{
			Name:     "ingest",
			Interval: cfg.Schedule.IngestInterval,
			Run: func(ctx context.Context) error {
				_, err := ingestor.IngestOnce(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "sweep",
			Interval: cfg.Schedule.SweepInterval,
			Run:      sweeper.Tick,
		},
	)
	sched.Start(ctx)

	grpcServer := internalgrpc.NewServer()
	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Start(fmt.Sprintf(":%d", cfg.GRPC.Port))
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", api.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	handler := api.NewHandler(a.store, a.store, a.dispatcher, broadcaster, sched)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	httpErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		runErr = fmt.Errorf("http server: %w", err)
	case err := <-grpcErr:
		runErr = fmt.Errorf("grpc server: %w", err)
	}

	slog.Info("shutting down...")

	grpcServer.Stop()
	sched.Stop()
	broadcaster.Close() // Close all streams gracefully

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return runErr
}
