package catalog

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"media-catalog/internal/database"
	"media-catalog/internal/models"
)

func newTestStore(t *testing.T) *Store {
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

	store := New(db, logger)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	for _, model := range models.All() {
		if !store.db.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	empty, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if empty != (Counts{}) {
		t.Fatalf("expected empty counts, got %+v", empty)
	}

	artist := mustCreateArtist(t, store, "Nina Simone")
	album := mustCreateAlbum(t, store, artist.ID, "Pastel Blues", 1965)
	mustCreateSong(t, store, album.ID, "Sinnerman", "songs/sinnerman.mp3", 622.5)
	mustCreateSong(t, store, album.ID, "Trouble in Mind", "songs/trouble.mp3", 168)
	publisher := mustCreatePublisher(t, store, "Radiotopia", "https://radiotopia.fm")
	mustCreateEpisode(t, store, publisher.ID, "Pilot")

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := Counts{Artists: 1, Albums: 1, Songs: 2, Publishers: 1, Episodes: 1}
	if counts != want {
		t.Fatalf("expected %+v, got %+v", want, counts)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx *Store) error {
		if err := tx.CreateArtist(ctx, &models.Artist{Name: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	artists, err := store.Artists(ctx)
	if err != nil {
		t.Fatalf("Artists: %v", err)
	}
	if len(artists) != 0 {
		t.Fatalf("expected rollback, found %d artists", len(artists))
	}
}

func TestTransactionCommits(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Transaction(ctx, func(tx *Store) error {
		artist := &models.Artist{Name: "Alice Coltrane"}
		if err := tx.CreateArtist(ctx, artist); err != nil {
			return err
		}
		return tx.CreateAlbum(ctx, &models.Album{ArtistID: artist.ID, Name: "Journey in Satchidananda", YearReleased: 1971})
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Artists != 1 || counts.Albums != 1 {
		t.Fatalf("expected committed rows, got %+v", counts)
	}
}

func TestForeignKeysDeclaredInSchema(t *testing.T) {
	store := newTestStore(t)

	err := store.db.Exec("INSERT INTO albums (artist_id, name, image, year_released) VALUES (?, ?, ?, ?)", 999, "Orphan", "", 0).Error
	if err == nil {
		t.Fatalf("expected the database to reject an album without artist")
	}
}

func TestResetSequencesIsNoopOnSQLite(t *testing.T) {
	store := newTestStore(t)
	if err := store.ResetSequences(context.Background()); err != nil {
		t.Fatalf("ResetSequences: %v", err)
	}
}

func TestRecordName(t *testing.T) {
	if got := recordName(&models.Publisher{}); got != "publisher" {
		t.Fatalf("expected publisher, got %q", got)
	}
	if got := recordName(&[]models.Song{}); got != "song" {
		t.Fatalf("expected song, got %q", got)
	}
	if got := tableName(&models.Episode{}); got != "episodes" {
		t.Fatalf("expected episodes, got %q", got)
	}
}

func mustCreateArtist(t *testing.T, store *Store, name string) models.Artist {
	t.Helper()
	artist := models.Artist{Name: name}
	if err := store.CreateArtist(context.Background(), &artist); err != nil {
		t.Fatalf("CreateArtist(%s): %v", name, err)
	}
	return artist
}

func mustCreateAlbum(t *testing.T, store *Store, artistID uint, name string, year uint16) models.Album {
	t.Helper()
	album := models.Album{ArtistID: artistID, Name: name, YearReleased: year}
	if err := store.CreateAlbum(context.Background(), &album); err != nil {
		t.Fatalf("CreateAlbum(%s): %v", name, err)
	}
	return album
}

func mustCreateSong(t *testing.T, store *Store, albumID uint, name, file string, length float64) models.Song {
	t.Helper()
	song := models.Song{AlbumID: albumID, Name: name, OriginalFile: file, Length: length}
	if err := store.CreateSong(context.Background(), &song); err != nil {
		t.Fatalf("CreateSong(%s): %v", name, err)
	}
	return song
}

func mustCreatePublisher(t *testing.T, store *Store, name, url string) models.Publisher {
	t.Helper()
	publisher := models.Publisher{Name: name, URL: url}
	if err := store.CreatePublisher(context.Background(), &publisher); err != nil {
		t.Fatalf("CreatePublisher(%s): %v", name, err)
	}
	return publisher
}

func mustCreateEpisode(t *testing.T, store *Store, publisherID uint, name string) models.Episode {
	t.Helper()
	episode := models.Episode{PublisherID: publisherID, Name: name}
	if err := store.CreateEpisode(context.Background(), &episode); err != nil {
		t.Fatalf("CreateEpisode(%s): %v", name, err)
	}
	return episode
}
