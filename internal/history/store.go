package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cityweather/internal/metrics"
	"cityweather/internal/models"
)

const (
	StorageKey        = "weather-app-search-history"
	DefaultMaxEntries = 10
	DefaultUndoWindow = 5 * time.Second
)

// Store is the search history: most recent first, bounded, one entry per
// city/country, with a single-slot undo buffer for the last removal.
// Every method is atomic with respect to the others.
type Store struct {
	mu         sync.Mutex
	kv         KVStore
	key        string
	maxEntries int
	undoWindow time.Duration
	logger     *slog.Logger
	now        func() time.Time

	entries []models.HistoryEntry
	removed *models.HistoryEntry
	timer   *time.Timer
	gen     uint64 // bumped whenever the undo buffer changes
}

type Option func(*Store)

func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

func WithUndoWindow(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.undoWindow = d
		}
	}
}

func WithStorageKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store and loads any history previously saved in kv.
// Missing or unreadable data starts an empty history.
func New(kv KVStore, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		key:        StorageKey,
		maxEntries: DefaultMaxEntries,
		undoWindow: DefaultUndoWindow,
		logger:     slog.Default(),
		now:        time.Now,
		entries:    []models.HistoryEntry{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.load()
	metrics.HistoryEntries.Set(float64(len(s.entries)))
	return s
}

func (s *Store) load() {
	raw, err := s.kv.Get(s.key)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("Failed to load search history", "key", s.key, "error", err)
		return
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("Discarding unreadable search history", "key", s.key, "error", err)
		return
	}
	if entries == nil {
		return
	}
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}
	s.entries = entries
}

// persist writes the whole list. Callers hold s.mu.
func (s *Store) persist() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		metrics.HistoryPersistErrorsTotal.Inc()
		s.logger.Warn("Failed to encode search history", "error", err)
		return
	}
	if err := s.kv.Set(s.key, string(data)); err != nil {
		metrics.HistoryPersistErrorsTotal.Inc()
		s.logger.Warn("Failed to save search history", "key", s.key, "error", err)
	}
}

// Add records a search. A repeat of the same city (case-insensitive) and
// country moves the existing entry to the front with a new timestamp.
func (s *Store) Add(cityName, country string) models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()

	if i := s.indexOf(cityName, country); i >= 0 {
		entry := s.entries[i]
		entry.SearchedAt = now
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		s.prepend(entry)
		s.persist()
		metrics.RecordHistoryOperation("update", len(s.entries))
		return entry
	}

	entry := models.HistoryEntry{
		ID:         newEntryID(cityName, country, now),
		CityName:   cityName,
		Country:    country,
		SearchedAt: now,
	}
	s.prepend(entry)
	s.persist()
	metrics.RecordHistoryOperation("add", len(s.entries))
	return entry
}

// Remove deletes the entry with id and keeps it restorable until the undo
// window passes. It reports whether an entry was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByID(id)
	if i < 0 {
		return false
	}

	entry := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.removed = &entry
	s.scheduleExpiry()
	s.persist()
	metrics.RecordHistoryOperation("remove", len(s.entries))
	return true
}

// Undo puts the last removed entry back at the front. It is a no-op once the
// undo window has passed or after Clear.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed == nil {
		return false
	}

	entry := *s.removed
	s.resetUndo()

	// the same city may have been searched again since it was removed
	if i := s.indexOf(entry.CityName, entry.Country); i >= 0 {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
	s.prepend(entry)
	s.persist()
	metrics.RecordHistoryOperation("undo", len(s.entries))
	return true
}

// Clear empties the history and drops anything waiting in the undo buffer
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []models.HistoryEntry{}
	s.resetUndo()
	s.persist()
	metrics.RecordHistoryOperation("clear", 0)
}

// Lookup returns the entry with id
func (s *Store) Lookup(id string) (models.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexByID(id); i >= 0 {
		return s.entries[i], true
	}
	return models.HistoryEntry{}, false
}

// Entries returns a copy of the history, most recent first
func (s *Store) Entries() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// CanUndo reports whether a removal is waiting to be undone
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed != nil
}

// RecentlyRemoved returns the entry in the undo buffer, if any
func (s *Store) RecentlyRemoved() (models.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed == nil {
		return models.HistoryEntry{}, false
	}
	return *s.removed, true
}

// Close stops the pending undo expiry, if any
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Store) scheduleExpiry() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.undoWindow, func() { s.expireUndo(gen) })
}

func (s *Store) expireUndo(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// a later remove, undo or clear owns the buffer now
	if gen != s.gen {
		return
	}
	s.removed = nil
	s.timer = nil
}

func (s *Store) resetUndo() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.removed = nil
}

func (s *Store) prepend(entry models.HistoryEntry) {
	s.entries = append([]models.HistoryEntry{entry}, s.entries...)
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[:s.maxEntries]
	}
}

func (s *Store) indexOf(cityName, country string) int {
	name := strings.ToLower(cityName)
	for i, e := range s.entries {
		if strings.ToLower(e.CityName) == name && e.Country == country {
			return i
		}
	}
	return -1
}

func (s *Store) indexByID(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// newEntryID keeps the readable city-country-millis form and adds a random
// suffix so two searches in the same millisecond still get distinct IDs
func newEntryID(cityName, country string, millis int64) string {
	return fmt.Sprintf("%s-%s-%d-%s", cityName, country, millis, uuid.NewString()[:8])
}
