package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cityweather/internal/api"
	"cityweather/internal/events"
	"cityweather/internal/models"
	"cityweather/internal/validator"
)

// ErrHistoryEntryNotFound is returned when selecting an id that is not in history
var ErrHistoryEntryNotFound = errors.New("history entry not found")

// WeatherFetcher looks up current conditions for a city
type WeatherFetcher interface {
	GetCurrentWeather(ctx context.Context, cityName string) (*models.WeatherRecord, error)
}

// History is the subset of the history store the controller drives
type History interface {
	Add(cityName, country string) models.HistoryEntry
	Remove(id string) bool
	Undo() bool
	Clear()
	Lookup(id string) (models.HistoryEntry, bool)
	Entries() []models.HistoryEntry
	CanUndo() bool
}

// State is a snapshot of what the user sees
type State struct {
	Current *models.WeatherRecord `json:"current"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	Unit    api.Unit              `json:"unit"`
	History []models.HistoryEntry `json:"history"`
	CanUndo bool                  `json:"canUndo"`
}

type Options struct {
	// Units is the unit system the fetcher requests; it picks the initial display unit
	Units  string
	Logger *slog.Logger
	Now    func() time.Time
}

// Controller owns the user-visible state and turns commands into fetches and
// history mutations. Concurrent fetches are fenced: only the most recently
// issued one may change Current, Error or Loading.
type Controller struct {
	fetcher   WeatherFetcher
	history   History
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	current *models.WeatherRecord
	loading bool
	errMsg  string
	unit    api.Unit
	seq     uint64
}

func NewController(fetcher WeatherFetcher, history History, publisher events.Publisher, opts Options) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		fetcher:   fetcher,
		history:   history,
		publisher: publisher,
		logger:    opts.Logger,
		now:       opts.Now,
		unit:      api.UnitForSystem(opts.Units),
	}
}

// Search validates cityName and fetches its weather. On success the result
// becomes current (unless a newer search was issued meanwhile) and the city
// is recorded in history. Returned errors carry a user-facing message.
func (c *Controller) Search(ctx context.Context, cityName string) (*models.WeatherRecord, error) {
	if err := validator.ValidateCityName(cityName).Err(); err != nil {
		c.mu.Lock()
		c.errMsg = err.Error()
		c.mu.Unlock()
		return nil, &api.LookupError{Kind: api.KindValidation, Message: err.Error()}
	}

	c.mu.Lock()
	c.seq++
	token := c.seq
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()

	record, err := c.fetcher.GetCurrentWeather(ctx, cityName)
	if err == nil {
		c.history.Add(record.CityName, record.Country)
		c.publish(ctx, record)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.seq {
		c.logger.Debug("Discarding stale weather result", "city", cityName, "token", token, "latest", c.seq)
		return record, err
	}

	c.loading = false
	if err != nil {
		c.current = nil
		c.errMsg = api.Classify(err)
		return nil, err
	}

	c.current = record
	c.errMsg = ""
	return record, nil
}

// SelectFromHistory searches again for the city stored under id
func (c *Controller) SelectFromHistory(ctx context.Context, id string) (*models.WeatherRecord, error) {
	entry, ok := c.history.Lookup(id)
	if !ok {
		return nil, ErrHistoryEntryNotFound
	}
	return c.Search(ctx, entry.CityName)
}

// Refresh re-fetches the current city. It does nothing when nothing is shown.
func (c *Controller) Refresh(ctx context.Context) (*models.WeatherRecord, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	return c.Search(ctx, current.CityName)
}

// ToggleUnit flips the display unit and returns the new one
func (c *Controller) ToggleUnit() api.Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unit = c.unit.Toggle()
	return c.unit
}

func (c *Controller) Unit() api.Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unit
}

func (c *Controller) RemoveHistoryItem(id string) bool {
	return c.history.Remove(id)
}

func (c *Controller) UndoRemove() bool {
	return c.history.Undo()
}

func (c *Controller) ClearHistory() {
	c.history.Clear()
}

func (c *Controller) ClearError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
}

func (c *Controller) History() []models.HistoryEntry {
	return c.history.Entries()
}

func (c *Controller) HistoryEntry(id string) (models.HistoryEntry, bool) {
	return c.history.Lookup(id)
}

func (c *Controller) State() State {
	c.mu.Lock()
	state := State{
		Current: c.current,
		Loading: c.loading,
		Error:   c.errMsg,
		Unit:    c.unit,
	}
	c.mu.Unlock()

	state.History = c.history.Entries()
	state.CanUndo = c.history.CanUndo()
	return state
}

// DisplayTemperature converts a temperature reported by record into unit
func DisplayTemperature(record *models.WeatherRecord, temp int, unit api.Unit) int {
	return api.ConvertTemperature(temp, api.UnitForSystem(record.Units), unit)
}

func (c *Controller) publish(ctx context.Context, record *models.WeatherRecord) {
	event := events.SearchEvent{
		CityName:    record.CityName,
		Country:     record.Country,
		Temperature: record.Temperature,
		Units:       record.Units,
		Description: record.Description,
		SearchedAt:  c.now().UTC(),
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("Failed to publish search event", "city", record.CityName, "error", err)
	}
}
