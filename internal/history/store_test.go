package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"cityweather/internal/models"
)

// stepClock advances one millisecond per call
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.UnixMilli(1700000000000)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type failingKV struct {
	getErr error
	setErr error
	sets   int
}

func (f *failingKV) Get(string) (string, error) { return "", f.getErr }

func (f *failingKV) Set(string, string) error {
	f.sets++
	return f.setErr
}

func newTestStore(t *testing.T, kv KVStore, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(newStepClock().Now)}, opts...)
	s := New(kv, opts...)
	t.Cleanup(s.Close)
	return s
}

func cityNames(entries []models.HistoryEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.CityName
	}
	return names
}

func TestNew_EmptyStore(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	if got := s.Entries(); len(got) != 0 {
		t.Errorf("Entries() = %v, want empty", got)
	}
	if s.CanUndo() {
		t.Error("CanUndo() = true on a new store")
	}
}

func TestNew_UnreadableData(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "{not json"},
		{"object instead of array", `{"id":"x"}`},
		{"null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := NewMemoryKV()
			kv.Set(StorageKey, tt.value)

			s := newTestStore(t, kv)
			if got := s.Entries(); len(got) != 0 {
				t.Errorf("Entries() = %v, want empty", got)
			}
		})
	}
}

func TestNew_BackendError(t *testing.T) {
	s := newTestStore(t, &failingKV{getErr: errors.New("connection refused")})

	if got := s.Entries(); len(got) != 0 {
		t.Errorf("Entries() = %v, want empty", got)
	}
}

func TestAdd_PrependsNewEntries(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	s.Add("London", "GB")
	s.Add("Paris", "FR")
	s.Add("Tokyo", "JP")

	want := []string{"Tokyo", "Paris", "London"}
	if got := cityNames(s.Entries()); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestAdd_DeduplicatesCaseInsensitively(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	first := s.Add("London", "GB")
	s.Add("Paris", "FR")
	second := s.Add("london", "GB")

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(entries))
	}
	if entries[0].ID != first.ID {
		t.Errorf("front entry ID = %q, want the original %q", entries[0].ID, first.ID)
	}
	if entries[0].CityName != "London" {
		t.Errorf("front entry CityName = %q, want original spelling London", entries[0].CityName)
	}
	if second.SearchedAt <= first.SearchedAt {
		t.Errorf("SearchedAt = %d, want later than %d", second.SearchedAt, first.SearchedAt)
	}
	if entries[0].SearchedAt != second.SearchedAt {
		t.Errorf("stored SearchedAt = %d, want %d", entries[0].SearchedAt, second.SearchedAt)
	}
}

func TestAdd_CountryMustMatchExactly(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	s.Add("London", "GB")
	s.Add("London", "CA")
	s.Add("London", "gb")

	if got := len(s.Entries()); got != 3 {
		t.Errorf("len(Entries()) = %d, want 3", got)
	}
}

func TestAdd_KeepsTenMostRecent(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	for i := 1; i <= 11; i++ {
		s.Add(fmt.Sprintf("City%02d", i), "XX")
	}

	entries := s.Entries()
	if len(entries) != DefaultMaxEntries {
		t.Fatalf("len(Entries()) = %d, want %d", len(entries), DefaultMaxEntries)
	}
	if entries[0].CityName != "City11" {
		t.Errorf("front = %q, want City11", entries[0].CityName)
	}
	for _, e := range entries {
		if e.CityName == "City01" {
			t.Error("oldest entry City01 should have been dropped")
		}
	}
}

func TestAdd_UniqueIDsWithinSameMillisecond(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	s := newTestStore(t, NewMemoryKV(), WithClock(func() time.Time { return fixed }))

	a := s.Add("London", "GB")
	s.Clear()
	b := s.Add("London", "GB")

	if a.ID == b.ID {
		t.Errorf("two entries created in the same millisecond share ID %q", a.ID)
	}
	if !strings.HasPrefix(a.ID, "London-GB-1700000000000-") {
		t.Errorf("ID = %q, want London-GB-<millis>- prefix", a.ID)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	london := s.Add("London", "GB")
	s.Add("Paris", "FR")

	if !s.Remove(london.ID) {
		t.Fatal("Remove() = false for existing id")
	}
	if _, ok := s.Lookup(london.ID); ok {
		t.Error("Lookup() found a removed entry")
	}
	if !s.CanUndo() {
		t.Error("CanUndo() = false right after Remove()")
	}
	removed, ok := s.RecentlyRemoved()
	if !ok || removed.ID != london.ID {
		t.Errorf("RecentlyRemoved() = %v, %v, want %v", removed, ok, london)
	}

	if s.Remove("missing") {
		t.Error("Remove() = true for unknown id")
	}
	if !s.CanUndo() {
		t.Error("removing an unknown id should not touch the undo buffer")
	}
}

func TestUndo_RestoresToFront(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	s.Add("London", "GB")
	paris := s.Add("Paris", "FR")
	s.Add("Tokyo", "JP")

	s.Remove(paris.ID)
	if !s.Undo() {
		t.Fatal("Undo() = false within the undo window")
	}

	want := []string{"Paris", "Tokyo", "London"}
	if got := cityNames(s.Entries()); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
	if s.CanUndo() {
		t.Error("CanUndo() = true after Undo()")
	}
	if s.Undo() {
		t.Error("second Undo() = true, want no-op")
	}
}

func TestUndo_DoesNotDuplicateResearchedCity(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	london := s.Add("London", "GB")
	s.Remove(london.ID)
	s.Add("London", "GB")
	s.Undo()

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("len(Entries()) = %d, want 1", len(entries))
	}
	if entries[0].ID != london.ID {
		t.Errorf("front ID = %q, want restored %q", entries[0].ID, london.ID)
	}
}

func TestUndo_AfterExpiry(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(), WithUndoWindow(20*time.Millisecond))

	london := s.Add("London", "GB")
	s.Remove(london.ID)

	deadline := time.Now().Add(2 * time.Second)
	for s.CanUndo() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if s.CanUndo() {
		t.Fatal("undo buffer was not cleared after the undo window")
	}
	if s.Undo() {
		t.Error("Undo() = true after expiry")
	}
	if got := len(s.Entries()); got != 0 {
		t.Errorf("len(Entries()) = %d, want 0", got)
	}
}

func TestUndo_AfterClear(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	london := s.Add("London", "GB")
	s.Add("Paris", "FR")
	s.Remove(london.ID)
	s.Clear()

	if s.CanUndo() {
		t.Error("CanUndo() = true after Clear()")
	}
	if s.Undo() {
		t.Error("Undo() = true after Clear()")
	}
	if got := len(s.Entries()); got != 0 {
		t.Errorf("len(Entries()) = %d, want 0", got)
	}
}

func TestExpireUndo_StaleTimerIgnored(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(), WithUndoWindow(time.Hour))

	london := s.Add("London", "GB")
	paris := s.Add("Paris", "FR")

	s.Remove(london.ID)
	staleGen := s.gen
	s.Remove(paris.ID)

	// the first removal's timer firing late must not drop the second removal
	s.expireUndo(staleGen)

	removed, ok := s.RecentlyRemoved()
	if !ok || removed.ID != paris.ID {
		t.Errorf("RecentlyRemoved() = %v, %v, want Paris", removed, ok)
	}

	s.expireUndo(s.gen)
	if s.CanUndo() {
		t.Error("current timer firing should clear the buffer")
	}
}

func TestLookup(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())
	london := s.Add("London", "GB")

	got, ok := s.Lookup(london.ID)
	if !ok || got != london {
		t.Errorf("Lookup() = %v, %v, want %v, true", got, ok, london)
	}

	if _, ok := s.Lookup("nope"); ok {
		t.Error("Lookup() found an unknown id")
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	s := newTestStore(t, kv)

	s.Add("London", "GB")
	s.Add("São Paulo", "BR")
	s.Add("Paris", "FR")
	before := s.Entries()

	reloaded := newTestStore(t, kv)
	if got := reloaded.Entries(); !reflect.DeepEqual(got, before) {
		t.Errorf("reloaded Entries() = %v, want %v", got, before)
	}
}

func TestPersistence_WireFormat(t *testing.T) {
	kv := NewMemoryKV()
	s := newTestStore(t, kv)
	entry := s.Add("London", "GB")

	raw, err := kv.Get(StorageKey)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("stored value is not a JSON array: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("stored %d entries, want 1", len(decoded))
	}
	for _, field := range []string{"id", "cityName", "country", "searchedAt"} {
		if _, ok := decoded[0][field]; !ok {
			t.Errorf("stored entry is missing %q", field)
		}
	}
	if decoded[0]["searchedAt"].(float64) != float64(entry.SearchedAt) {
		t.Errorf("searchedAt = %v, want %d", decoded[0]["searchedAt"], entry.SearchedAt)
	}

	s.Clear()
	raw, _ = kv.Get(StorageKey)
	if raw != "[]" {
		t.Errorf("cleared history stored as %q, want []", raw)
	}
}

func TestPersistence_WriteFailureIsNotFatal(t *testing.T) {
	kv := &failingKV{getErr: ErrNotFound, setErr: errors.New("quota exceeded")}
	s := newTestStore(t, kv)

	s.Add("London", "GB")

	if got := len(s.Entries()); got != 1 {
		t.Errorf("len(Entries()) = %d, want 1 despite failed write", got)
	}
	if kv.sets != 1 {
		t.Errorf("Set() called %d times, want 1", kv.sets)
	}
}

func TestLookup_DoesNotPersist(t *testing.T) {
	kv := &failingKV{getErr: ErrNotFound}
	s := newTestStore(t, kv)

	s.Lookup("x")
	s.Entries()
	s.Remove("x")
	s.Undo()

	if kv.sets != 0 {
		t.Errorf("Set() called %d times for read-only operations, want 0", kv.sets)
	}
}

func TestWithMaxEntries(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(), WithMaxEntries(3))

	for _, c := range []string{"A1", "B1", "C1", "D1"} {
		s.Add(c, "XX")
	}

	want := []string{"D1", "C1", "B1"}
	if got := cityNames(s.Entries()); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestConcurrentAdds(t *testing.T) {
	s := newTestStore(t, NewMemoryKV())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(fmt.Sprintf("City%d", i%5), "XX")
		}(i)
	}
	wg.Wait()

	if got := len(s.Entries()); got != 5 {
		t.Errorf("len(Entries()) = %d, want 5 distinct cities", got)
	}
}
