package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"cityweather/internal/api"
	"cityweather/internal/app"
	"cityweather/internal/config"
	"cityweather/internal/models"
)

type result struct {
	City   string
	Record *models.WeatherRecord
	Err    error
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run does the lookups and returns the process exit code: 0 when every city
// was found, 1 when any lookup failed, 2 on bad usage. Returning instead of
// exiting lets the deferred closes flush history and events.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("lookup", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "./config.yaml", "path to the YAML config file")
	fahrenheit := flags.Bool("f", false, "show temperatures in Fahrenheit")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if flags.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: lookup [-config path] [-f] city [city...]")
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		return 1
	}

	backend, err := app.OpenHistoryBackend(cfg, logger)
	if err != nil {
		logger.Error("Failed to open history backend", "backend", cfg.History.Backend, "error", err)
		return 1
	}
	defer backend.Close()

	store := app.NewHistoryStore(cfg, backend, logger)
	defer store.Close()

	publisher := app.NewPublisher(cfg, logger)
	defer publisher.Close()

	controller := app.NewController(app.NewFetcher(cfg, logger), store, publisher, app.Options{
		Units:  cfg.Weather.Units,
		Logger: logger,
	})

	unit := controller.Unit()
	if *fahrenheit != (unit == api.Fahrenheit) {
		unit = controller.ToggleUnit()
	}

	results := lookupAll(context.Background(), controller, flags.Args())

	if failed := printResults(stdout, results, unit, cfg.Weather.IconBaseURL); failed > 0 {
		return 1
	}
	return 0
}

// lookupAll searches every city concurrently. Results keep the order of cities.
func lookupAll(ctx context.Context, controller *app.Controller, cities []string) []result {
	results := make([]result, len(cities))

	var wg sync.WaitGroup
	for i, city := range cities {
		wg.Add(1)
		go func(i int, city string) {
			defer wg.Done()
			record, err := controller.Search(ctx, city)
			results[i] = result{City: city, Record: record, Err: err}
		}(i, city)
	}

	wg.Wait()
	return results
}

// printResults writes one line per lookup and returns how many failed
func printResults(w io.Writer, results []result, unit api.Unit, iconBaseURL string) int {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s: %s\n", r.City, api.Classify(r.Err))
			continue
		}
		fmt.Fprintln(w, formatRecord(r.Record, unit, iconBaseURL))
	}
	return failed
}

func formatRecord(rec *models.WeatherRecord, unit api.Unit, iconBaseURL string) string {
	temp := app.DisplayTemperature(rec, rec.Temperature, unit)
	low := app.DisplayTemperature(rec, rec.MinTemp, unit)
	high := app.DisplayTemperature(rec, rec.MaxTemp, unit)

	return fmt.Sprintf("%s, %s: %s %s (low %s, high %s) humidity %d%% wind %s icon %s",
		rec.CityName, rec.Country,
		api.FormatTemperature(temp, unit), rec.Description,
		api.FormatTemperature(low, unit), api.FormatTemperature(high, unit),
		rec.Humidity, api.FormatWindSpeed(rec.WindSpeed, rec.Units),
		api.IconURL(iconBaseURL, rec.Icon))
}
