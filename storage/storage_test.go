package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"twitter-watcher/pkg/watcher"
)

func localStore(t *testing.T) *Store {
	t.Helper()
	return New(nil, "", t.TempDir(), slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestLocalSaveLoadRoundTrip(t *testing.T) {
	s := localStore(t)
	ctx := context.Background()

	accounts := []watcher.Account{
		{Handle: "Alice", UserID: "100", SinceID: "50", AddedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		{Handle: "Bob", UserID: "200", AddedAt: time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)},
	}

	if err := s.Save(ctx, accounts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != len(accounts) {
		t.Fatalf("Load() returned %d accounts, want %d", len(loaded), len(accounts))
	}
	for i := range accounts {
		if loaded[i] != accounts[i] {
			t.Errorf("account %d = %+v, want %+v", i, loaded[i], accounts[i])
		}
	}
}

func TestLoadMissingSnapshotIsNotFound(t *testing.T) {
	s := localStore(t)

	_, err := s.Load(context.Background())
	if !IsNotFound(err) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestLoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := New(nil, "", dir, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))

	if err := os.WriteFile(filepath.Join(dir, "watchlist.json"), []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := s.Load(context.Background())
	if err == nil {
		t.Fatal("Load() error = nil, want unmarshal error")
	}
	if IsNotFound(err) {
		t.Error("corrupt snapshot reported as not found")
	}
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	s := localStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, []watcher.Account{{Handle: "old", UserID: "1"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, []watcher.Account{{Handle: "new", UserID: "2"}}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].Handle != "new" {
		t.Errorf("Load() = %+v, want only the newer snapshot", loaded)
	}
}
