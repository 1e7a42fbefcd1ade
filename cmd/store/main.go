package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"cityweather/internal/app"
	"cityweather/internal/config"
	"cityweather/internal/events"
)

// main mirrors the search events published by the server into the configured
// history backend, so a second backend can follow the first.
func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	if len(cfg.Events.Brokers) == 0 {
		logger.Error("No Kafka brokers configured; set events.brokers or KAFKA_BROKERS")
		os.Exit(1)
	}

	backend, err := app.OpenHistoryBackend(cfg, logger)
	if err != nil {
		logger.Error("Failed to open history backend", "backend", cfg.History.Backend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	store := app.NewHistoryStore(cfg, backend, logger)
	defer store.Close()

	consumer, err := events.NewConsumerGroup(cfg.Events.Brokers, cfg.Events.Group)
	if err != nil {
		logger.Error("Failed to join consumer group", "group", cfg.Events.Group, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		events.LogErrors(consumer.Errors(), logger)
	}()

	go func() {
		defer wg.Done()
		events.Consume(ctx, consumer, cfg.Events.Topic, events.NewHistoryHandler(store, logger), logger)
	}()

	logger.Info("Store started, reading search events. Press Ctrl+C to stop...",
		"topic", cfg.Events.Topic,
		"backend", cfg.History.Backend)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down store service...")
	cancel()

	// closing the group also closes its error channel
	if err := consumer.Close(); err != nil {
		logger.Error("Error closing consumer", "error", err)
	}
	wg.Wait()
	logger.Info("Store service stopped")
}
