package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"cityweather/internal/history"
	"cityweather/internal/metrics"
)

const (
	kvTable      = "kv_store"
	queryTimeout = 5 * time.Second
)

// dialect holds the statements that differ between drivers
type dialect struct {
	schema string
	get    string
	upsert string
}

var dialects = map[string]dialect{
	"mysql": {
		schema: `CREATE TABLE IF NOT EXISTS kv_store (
			kv_key VARCHAR(255) NOT NULL PRIMARY KEY,
			kv_value MEDIUMTEXT NOT NULL,
			updated_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		get: `SELECT kv_value FROM kv_store WHERE kv_key = ?`,
		upsert: `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE kv_value = VALUES(kv_value), updated_at = VALUES(updated_at)`,
	},
	"pgx": {
		schema: `CREATE TABLE IF NOT EXISTS kv_store (
			kv_key VARCHAR(255) PRIMARY KEY,
			kv_value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		get: `SELECT kv_value FROM kv_store WHERE kv_key = $1`,
		upsert: `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, updated_at = EXCLUDED.updated_at`,
	},
	"sqlite": {
		schema: `CREATE TABLE IF NOT EXISTS kv_store (
			kv_key TEXT PRIMARY KEY,
			kv_value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		get: `SELECT kv_value FROM kv_store WHERE kv_key = ?`,
		upsert: `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = excluded.updated_at`,
	},
}

// DB is a SQL-backed history.KVStore
type DB struct {
	conn    *sql.DB
	driver  string
	dialect dialect
	logger  *slog.Logger
}

var _ history.KVStore = (*DB)(nil)

// NewDB opens a connection and creates the kv_store table if needed.
// driver is "mysql", "pgx" or "sqlite".
// mysql dsn example: "user:pass@tcp(localhost:3306)/cityweather?parseTime=true"
func NewDB(driver, dsn string, logger *slog.Logger) (*DB, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == "sqlite" {
		// one writer at a time
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			logger.Warn("Could not set WAL mode", "error", err)
		}
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	db := &DB{conn: conn, driver: driver, dialect: d, logger: logger}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	if _, err := db.conn.Exec(db.dialect.schema); err != nil {
		return fmt.Errorf("failed to execute schema statement: %w", err)
	}
	return nil
}

// Get returns the value stored under key, or history.ErrNotFound
func (db *DB) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	defer db.updateStats()

	queryStart := time.Now()
	var value string
	err := db.conn.QueryRowContext(ctx, db.dialect.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("SELECT", kvTable, time.Since(queryStart), nil)
		return "", history.ErrNotFound
	}
	metrics.RecordDBQuery("SELECT", kvTable, time.Since(queryStart), err)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	return value, nil
}

// Set stores value under key, replacing any previous value
func (db *DB) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	defer db.updateStats()

	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, db.dialect.upsert, key, value, time.Now().UTC())
	metrics.RecordDBQuery("UPSERT", kvTable, time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	db.logger.Debug("Stored value", "key", key, "bytes", len(value), "driver", db.driver)
	return nil
}

// Ping checks the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) updateStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}
