package library

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/database"
	"media-catalog/internal/importer"
)

type fakeRefresher struct {
	mu      sync.Mutex
	imports int
	prunes  int
	err     error
}

func (f *fakeRefresher) ImportAll(ctx context.Context) (importer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imports++
	return importer.Result{Imported: f.imports}, f.err
}

func (f *fakeRefresher) Prune(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunes++
	return 0, nil
}

func (f *fakeRefresher) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imports, f.prunes
}

func TestLibraryRefreshesOnStartup(t *testing.T) {
	root := t.TempDir()
	refresher := &fakeRefresher{}

	lib, err := NewLibrary(root, []string{".wav"}, 10*time.Millisecond, refresher, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() {
		if err := lib.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})

	imports, prunes := refresher.counts()
	if imports != 1 || prunes != 1 {
		t.Fatalf("expected one initial import and prune, got %d/%d", imports, prunes)
	}
	status := lib.Status()
	if status.Refreshes != 1 || status.LastError != nil || status.LastRefresh.IsZero() {
		t.Fatalf("unexpected status %+v", status)
	}
	if lib.Root() != root {
		t.Fatalf("expected root %s, got %s", root, lib.Root())
	}
}

func TestLibraryFailsWhenInitialRefreshFails(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("database unavailable")}
	_, err := NewLibrary(t.TempDir(), []string{".wav"}, 10*time.Millisecond, refresher, log.New(io.Discard, "", 0))
	if err == nil {
		t.Fatalf("expected NewLibrary to fail")
	}
}

func TestLibraryIgnoresNonAudioFiles(t *testing.T) {
	root := t.TempDir()
	refresher := &fakeRefresher{}

	lib, err := NewLibrary(root, []string{".wav"}, 10*time.Millisecond, refresher, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	if err := os.WriteFile(filepath.Join(root, "readme.md"), []byte("doc"), 0o644); err != nil {
		t.Fatalf("write md: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if imports, _ := refresher.counts(); imports != 1 {
		t.Fatalf("expected no refresh for a non-audio file, got %d imports", imports)
	}

	if err := os.WriteFile(filepath.Join(root, "song.wav"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	waitFor(t, func() bool {
		imports, _ := refresher.counts()
		return imports >= 2
	}, "refresh after audio file")
}

func TestLibraryDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	refresher := &fakeRefresher{}

	lib, err := NewLibrary(root, []string{".wav"}, 200*time.Millisecond, refresher, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "burst"+string(rune('a'+i))+".wav")
		if err := os.WriteFile(name, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	waitFor(t, func() bool {
		imports, _ := refresher.counts()
		return imports >= 2
	}, "debounced refresh")
	time.Sleep(400 * time.Millisecond)

	if imports, _ := refresher.counts(); imports != 2 {
		t.Fatalf("expected a single debounced refresh, got %d imports", imports-1)
	}
}

func TestLibraryKeepsCatalogInSync(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	logger := log.New(io.Discard, "", 0)

	db, err := database.Open(database.Config{
		Driver:       database.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "catalog.db"),
		MaxOpenConns: 1,
	}, logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	store := catalog.New(db, logger)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	initial := filepath.Join(root, "initial.wav")
	if err := os.WriteFile(initial, []byte("one"), 0o644); err != nil {
		t.Fatalf("write initial file: %v", err)
	}

	allowed := []string{".wav"}
	im := importer.New(root, allowed, store, logger)
	lib, err := NewLibrary(root, allowed, 10*time.Millisecond, im, logger)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() {
		if err := lib.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})

	songCount := func() int {
		songs, err := store.Songs(ctx)
		if err != nil {
			return -1
		}
		return len(songs)
	}

	waitFor(t, func() bool { return songCount() == 1 }, "initial scan")

	second := filepath.Join(root, "second.wav")
	if err := os.WriteFile(second, []byte("two"), 0o644); err != nil {
		t.Fatalf("write second file: %v", err)
	}
	waitFor(t, func() bool { return songCount() == 2 }, "detect second file")

	subdir := filepath.Join(root, "nested")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	nested := filepath.Join(subdir, "third.wav")
	if err := os.WriteFile(nested, []byte("three"), 0o644); err != nil {
		t.Fatalf("write nested file: %v", err)
	}
	waitFor(t, func() bool { return songCount() == 3 }, "detect nested file")

	renamed := filepath.Join(root, "initial-renamed.wav")
	if err := os.Rename(initial, renamed); err != nil {
		t.Fatalf("rename file: %v", err)
	}
	waitFor(t, func() bool {
		_, err := store.SongByFile(ctx, "initial-renamed.wav")
		_, gone := store.SongByFile(ctx, "initial.wav")
		return err == nil && errors.Is(gone, catalog.ErrNotFound)
	}, "detect rename")

	if err := os.Remove(second); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	waitFor(t, func() bool { return songCount() == 2 }, "reflect removal")
}

func waitFor(t *testing.T, predicate func() bool, label string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", label)
}
