package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cityweather/internal/api"
	"cityweather/internal/cache"
	"cityweather/internal/config"
	"cityweather/internal/database"
	"cityweather/internal/events"
	"cityweather/internal/history"
)

// Backend is the storage the history store persists into
type Backend interface {
	history.KVStore
	Ping(ctx context.Context) error
	Close() error
}

type memoryBackend struct {
	*history.MemoryKV
}

func (memoryBackend) Ping(context.Context) error { return nil }
func (memoryBackend) Close() error               { return nil }

// OpenHistoryBackend connects the backend named by cfg.History.Backend
func OpenHistoryBackend(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.History.Backend {
	case config.BackendMemory:
		return memoryBackend{history.NewMemoryKV()}, nil
	case config.BackendRedis:
		kv, err := cache.New(config.GetRedisConfig(), logger)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case config.BackendMySQL, config.BackendPostgres, config.BackendSQLite:
		dbCfg := config.GetDatabaseConfig(cfg.History.Backend)
		if cfg.History.Backend == config.BackendSQLite && os.Getenv("DATABASE_DSN") == "" {
			dbCfg.DSN = cfg.History.SQLitePath
		}
		db, err := database.NewDB(dbCfg.Driver, dbCfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported history backend %q", cfg.History.Backend)
	}
}

// NewHistoryStore builds a history store over kv with the configured limits
func NewHistoryStore(cfg *config.Config, kv history.KVStore, logger *slog.Logger) *history.Store {
	return history.New(kv,
		history.WithMaxEntries(cfg.History.MaxEntries),
		history.WithUndoWindow(cfg.History.UndoWindow),
		history.WithStorageKey(cfg.History.StorageKey),
		history.WithLogger(logger))
}

// NewFetcher builds the weather client from cfg
func NewFetcher(cfg *config.Config, logger *slog.Logger) *api.OpenWeatherClient {
	return api.NewOpenWeatherClient(api.Options{
		BaseURL: cfg.Weather.BaseURL,
		APIKey:  cfg.Weather.APIKey,
		Units:   cfg.Weather.Units,
		Timeout: cfg.Weather.Timeout,
		Logger:  logger,
	})
}

// NewPublisher returns a Kafka publisher when brokers are configured.
// Search events are optional, so a broker that cannot be reached falls back
// to discarding them.
func NewPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Events.Brokers) == 0 {
		return events.Nop{}
	}

	publisher, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger)
	if err != nil {
		logger.Warn("Search events disabled", "brokers", cfg.Events.Brokers, "error", err)
		return events.Nop{}
	}

	logger.Info("Publishing search events", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	return publisher
}
