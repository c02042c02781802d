// Package main provides the companion HTTP server for NeuraReport.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/config"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/generate"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/history"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/server"
)

func main() {
	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("starting neurareport-server", "port", cfg.ServerPort, "backend", cfg.BackendURL)

	// Run history is optional; an empty URL disables persistence.
	var recorder generate.Recorder
	var store *history.Client
	if cfg.HistoryURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var err error
		store, err = history.NewClient(ctx, history.Config{
			URL:       cfg.HistoryURL,
			Namespace: cfg.HistoryNamespace,
			Database:  cfg.HistoryDatabase,
			Username:  cfg.HistoryUser,
			Password:  cfg.HistoryPass,
			AuthLevel: cfg.HistoryAuthLevel,
		}, logger)
		if err == nil {
			err = store.InitSchema(ctx)
		}
		cancel()
		if err != nil {
			logger.Error("history store unavailable, persistence disabled", "error", err)
			store = nil
		} else {
			recorder = store
			defer func() {
				if err := store.Close(context.Background()); err != nil {
					logger.Error("failed to close history store", "error", err)
				}
			}()
		}
	}

	srv := server.New(server.Options{
		Backend:      backend.New(cfg.BackendURL),
		Recorder:     recorder,
		Logger:       logger,
		Port:         cfg.ServerPort,
		ConnectionID: cfg.ConnectionID,
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
