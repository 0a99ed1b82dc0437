package importer

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-catalog/internal/catalog"
	"media-catalog/internal/database"
	"media-catalog/internal/models"
)

func newTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()

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
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func TestImportAllBuildsMusicSchema(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one.wav"), "one")
	writeFile(t, filepath.Join(root, "nested", "two.flac"), "two")
	writeSilentMP3(t, filepath.Join(root, "nested", "three.mp3"), 10)
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")

	store := newTestCatalog(t)
	im := New(root, []string{".wav", ".flac", ".mp3"}, store, log.New(io.Discard, "", 0))

	result, err := im.ImportAll(ctx)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if result.Imported != 3 || result.Skipped != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	artists, err := store.Artists(ctx)
	if err != nil {
		t.Fatalf("Artists: %v", err)
	}
	if len(artists) != 1 || artists[0].Name != UnknownArtist {
		t.Fatalf("expected a single fallback artist, got %+v", artists)
	}
	albums, err := store.AlbumsByArtist(ctx, artists[0].ID)
	if err != nil {
		t.Fatalf("AlbumsByArtist: %v", err)
	}
	if len(albums) != 1 || albums[0].Name != UnknownAlbum {
		t.Fatalf("expected a single fallback album, got %+v", albums)
	}

	songs, err := store.SongsByAlbum(ctx, albums[0].ID)
	if err != nil {
		t.Fatalf("SongsByAlbum: %v", err)
	}
	files := make(map[string]models.Song, len(songs))
	for _, song := range songs {
		files[song.OriginalFile] = song
	}
	for _, want := range []string{"one.wav", "nested/two.flac", "nested/three.mp3"} {
		if _, ok := files[want]; !ok {
			t.Fatalf("expected song for %s, got %+v", want, songs)
		}
	}
	if files["nested/three.mp3"].Length <= 0 {
		t.Fatalf("expected mp3 length to be recorded")
	}
	if files["one.wav"].Name != "one" {
		t.Fatalf("expected title from file stem, got %q", files["one.wav"].Name)
	}
}

func TestImportAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one.wav"), "one")
	writeFile(t, filepath.Join(root, "two.wav"), "two")

	store := newTestCatalog(t)
	im := New(root, []string{".wav"}, store, log.New(io.Discard, "", 0))

	for i := 0; i < 2; i++ {
		if _, err := im.ImportAll(ctx); err != nil {
			t.Fatalf("ImportAll pass %d: %v", i, err)
		}
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Artists != 1 || counts.Albums != 1 || counts.Songs != 2 {
		t.Fatalf("expected no duplicates after re-import, got %+v", counts)
	}
}

func TestImportAllSkipsUnrecordableFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.wav"), "ok")

	// original_file holds at most 100 characters.
	deep := filepath.Join(root, strings.Repeat("d", 60), strings.Repeat("f", 50)+".wav")
	writeFile(t, deep, "too long")

	store := newTestCatalog(t)
	im := New(root, []string{".wav"}, store, log.New(io.Discard, "", 0))

	result, err := im.ImportAll(ctx)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if result.Imported != 1 || result.Skipped != 1 {
		t.Fatalf("expected 1 imported and 1 skipped, got %+v", result)
	}
}

func TestImportAllStopsOnCanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one.wav"), "one")

	store := newTestCatalog(t)
	im := New(root, []string{".wav"}, store, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := im.ImportAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPruneRemovesSongsWithMissingFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	keep := filepath.Join(root, "keep.wav")
	drop := filepath.Join(root, "drop.wav")
	writeFile(t, keep, "keep")
	writeFile(t, drop, "drop")

	store := newTestCatalog(t)
	im := New(root, []string{".wav"}, store, log.New(io.Discard, "", 0))
	if _, err := im.ImportAll(ctx); err != nil {
		t.Fatalf("ImportAll: %v", err)
	}

	if err := os.Remove(drop); err != nil {
		t.Fatalf("remove: %v", err)
	}

	removed, err := im.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned song, got %d", removed)
	}

	songs, err := store.Songs(ctx)
	if err != nil {
		t.Fatalf("Songs: %v", err)
	}
	if len(songs) != 1 || songs[0].OriginalFile != "keep.wav" {
		t.Fatalf("expected only keep.wav to remain, got %+v", songs)
	}
}

func TestIsAllowedIgnoresCase(t *testing.T) {
	im := New(t.TempDir(), []string{".MP3", ".flac"}, nil, nil)
	if !im.IsAllowed("/music/a.mp3") || !im.IsAllowed("/music/b.FLAC") {
		t.Fatalf("expected extensions to match case-insensitively")
	}
	if im.IsAllowed("/music/c.txt") || im.IsAllowed("/music/noext") {
		t.Fatalf("expected other files to be rejected")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
