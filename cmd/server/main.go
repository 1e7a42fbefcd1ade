package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cityweather/internal/app"
	"cityweather/internal/config"
	"cityweather/internal/server"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

	logger := setupLogger()
	slog.SetDefault(logger)

	cfg := loadConfig(*configPath, logger)
	if !cfg.HasAPIKey() {
		logger.Warn("No OpenWeatherMap API key configured; lookups will fail with an invalid key error")
	}

	backend, err := app.OpenHistoryBackend(cfg, logger)
	if err != nil {
		logger.Error("Failed to open history backend", "backend", cfg.History.Backend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	logger.Info("History backend ready", "backend", cfg.History.Backend)

	store := app.NewHistoryStore(cfg, backend, logger)
	defer store.Close()

	publisher := app.NewPublisher(cfg, logger)
	defer publisher.Close()

	controller := app.NewController(app.NewFetcher(cfg, logger), store, publisher, app.Options{
		Units:  cfg.Weather.Units,
		Logger: logger,
	})

	srv := server.NewServer(controller, server.Options{
		IconBaseURL: cfg.Weather.IconBaseURL,
		Logger:      logger,
		Checks:      map[string]server.Pinger{"history": backend},
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting server", "addr", cfg.Server.Addr)
		if err := srv.Start(cfg.Server.Addr); err != nil {
			logger.Error("Server error", "error", err)
			stop <- syscall.SIGTERM
		}
	}()

	<-stop
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	} else {
		logger.Info("Server stopped")
	}
}

func loadConfig(path string, logger *slog.Logger) *config.Config {
	cfg, err := config.Load(path)
	if err == nil {
		logger.Info("Configuration loaded", "path", path)
		return cfg
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info("No config file, using defaults and environment", "path", path)
		return config.Default()
	}

	logger.Error("Failed to load config", "path", path, "error", err)
	os.Exit(1)
	return nil
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if os.Getenv("ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
