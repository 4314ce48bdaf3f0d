package bolt

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"idlewatch/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "idlewatch.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func sampleRecord(date string) *storage.DayRecord {
	rec := storage.NewDayRecord(date)
	start := time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
	rec.Sessions = append(rec.Sessions, storage.Session{
		State:           storage.StateIdle,
		StartTime:       start,
		EndTime:         start.Add(15 * time.Minute),
		DurationSeconds: 900,
	})
	rec.HourlyActivity[9].IdleSeconds = 900
	rec.Summary.TotalIdleSeconds = 900
	return rec
}

func TestDayStoreSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	rec := sampleRecord("2025-05-20")

	if err := store.Days().Save(ctx, "2025-05-20", rec); err != nil {
		t.Fatalf("save record: %v", err)
	}

	got, err := store.Days().Get(ctx, "2025-05-20")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !got.Sessions[0].StartTime.Equal(rec.Sessions[0].StartTime) {
		t.Errorf("expected start time %v, got %v", rec.Sessions[0].StartTime, got.Sessions[0].StartTime)
	}
	got.Sessions[0].StartTime = rec.Sessions[0].StartTime
	got.Sessions[0].EndTime = rec.Sessions[0].EndTime
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("expected round-tripped record to match, got %+v", got)
	}
}

func TestDayStoreGetMissing(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	_, err := store.Days().Get(context.Background(), "2025-01-01")
	if err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDayStoreGetMany(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for _, date := range []string{"2025-05-19", "2025-05-20"} {
		if err := store.Days().Save(ctx, date, sampleRecord(date)); err != nil {
			t.Fatalf("save %s: %v", date, err)
		}
	}

	got, err := store.Days().GetMany(ctx, []string{"2025-05-18", "2025-05-19", "2025-05-20"})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if _, ok := got["2025-05-18"]; ok {
		t.Errorf("expected missing date to be absent")
	}
}

func TestDayStoreAll(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	dates := []string{"2025-05-18", "2025-05-19", "2025-05-20"}
	for _, date := range dates {
		if err := store.Days().Save(ctx, date, sampleRecord(date)); err != nil {
			t.Fatalf("save %s: %v", date, err)
		}
	}

	got, err := store.Days().All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != len(dates) {
		t.Fatalf("expected %d records, got %d", len(dates), len(got))
	}
	for _, date := range dates {
		if got[date] == nil {
			t.Errorf("expected record for %s", date)
		}
	}
}

func TestDayStoreSaveOverwrites(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Days().Save(ctx, "2025-05-20", sampleRecord("2025-05-20")); err != nil {
		t.Fatalf("save record: %v", err)
	}

	updated := sampleRecord("2025-05-20")
	updated.Summary.TotalIdleSeconds = 1800
	if err := store.Days().Save(ctx, "2025-05-20", updated); err != nil {
		t.Fatalf("save updated record: %v", err)
	}

	got, err := store.Days().Get(ctx, "2025-05-20")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Summary.TotalIdleSeconds != 1800 {
		t.Errorf("expected total 1800, got %d", got.Summary.TotalIdleSeconds)
	}
}

func TestStoreReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idlewatch.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Days().Save(context.Background(), "2025-05-20", sampleRecord("2025-05-20")); err != nil {
		t.Fatalf("save record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Days().Get(context.Background(), "2025-05-20")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Summary.TotalIdleSeconds != 900 {
		t.Errorf("expected persisted total 900, got %d", got.Summary.TotalIdleSeconds)
	}
}
