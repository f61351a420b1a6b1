package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/raptaro/meditrakk-sub001/internal/common/middlewares"
	"github.com/raptaro/meditrakk-sub001/internal/queue/services"
	"github.com/raptaro/meditrakk-sub001/internal/routes"
	"github.com/raptaro/meditrakk-sub001/ws"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the queue API and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := ws.NewHub(
		ws.WithSendBuffer(cfg.WSSendBuffer),
		ws.WithAllowedOrigins(cfg.CORSOrigins),
		ws.WithLogger(logger.With().Str("component", "hub").Logger()),
	)
	svc := services.NewQueueService(store,
		services.WithPublisher(hub),
		services.WithLogger(logger.With().Str("component", "queue").Logger()),
		services.WithResyncInterval(cfg.ResyncInterval),
	)
	// first paint for screens that connect before any mutation
	svc.PublishSnapshots(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewares.Recovery(logger))
	e.Use(middlewares.RequestID())
	e.Use(middlewares.Logger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	routes.Init(e, cfg, svc, hub, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.QueueStore).Msg("Server berjalan")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
