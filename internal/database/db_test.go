package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cityweather/internal/history"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_history.db")
	db, err := NewDB("sqlite", dbPath, nil)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	if _, err := NewDB("oracle", "whatever", nil); err == nil {
		t.Error("NewDB() expected error for unsupported driver, got nil")
	}
}

func TestGet_Missing(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Get("absent")
	if !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Get() error = %v, want history.ErrNotFound", err)
	}
}

func TestSetAndGet(t *testing.T) {
	db := newTestDB(t)

	if err := db.Set("k", `[{"id":"a"}]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := db.Get("k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != `[{"id":"a"}]` {
		t.Errorf("Get() = %q", got)
	}
}

func TestSet_Upserts(t *testing.T) {
	db := newTestDB(t)

	if err := db.Set("k", "first"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := db.Set("k", "second"); err != nil {
		t.Fatalf("second Set() error = %v", err)
	}

	got, err := db.Get("k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "second" {
		t.Errorf("Get() = %q, want second", got)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestHistoryStoreOnSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	db, err := NewDB("sqlite", dbPath, nil)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}

	store := history.New(db)
	store.Add("London", "GB")
	store.Add("Paris", "FR")
	want := store.Entries()
	store.Close()
	db.Close()

	reopened, err := NewDB("sqlite", dbPath, nil)
	if err != nil {
		t.Fatalf("reopening NewDB failed: %v", err)
	}
	defer reopened.Close()

	got := history.New(reopened).Entries()
	if len(got) != len(want) {
		t.Fatalf("reloaded %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
