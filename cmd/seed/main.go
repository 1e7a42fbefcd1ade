package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cityweather/internal/app"
	"cityweather/internal/config"
	"cityweather/internal/validator"
)

type row struct {
	City    string
	Country string
}

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	csvPath := flag.String("file", "history_seed.csv", "CSV with a header row and city,country columns")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		logger.Error("Failed to open CSV file", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer file.Close()

	rows, skipped, err := readRows(file, logger)
	if err != nil {
		logger.Error("Failed to read CSV", "path", *csvPath, "error", err)
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

	// the last row ends up most recent
	for _, r := range rows {
		store.Add(r.City, r.Country)
	}

	logger.Info("Import complete",
		"imported", len(rows),
		"skipped", skipped,
		"history_size", len(store.Entries()))
}

// readRows reads the header and every valid city,country row. Rows with too
// few columns or an invalid city name are skipped and counted.
func readRows(r io.Reader, logger *slog.Logger) ([]row, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	logger.Debug("CSV header", "columns", header)

	var rows []row
	skipped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("failed to read CSV record: %w", err)
		}

		if len(record) < 2 {
			logger.Warn("Skipping invalid record", "record", record)
			skipped++
			continue
		}

		city := strings.TrimSpace(record[0])
		if res := validator.ValidateCityName(city); !res.Valid {
			logger.Warn("Skipping record with invalid city", "city", city, "reason", res.Reason)
			skipped++
			continue
		}

		rows = append(rows, row{City: city, Country: strings.ToUpper(strings.TrimSpace(record[1]))})
	}

	return rows, skipped, nil
}
