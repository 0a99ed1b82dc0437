// Package importer fills the music schema from a directory of audio files.
// Songs reference their file by its path relative to the media root.
package importer

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"media-catalog/internal/models"
)

// Catalog is the subset of the catalog store the importer writes through.
type Catalog interface {
	EnsureArtist(ctx context.Context, name string) (models.Artist, error)
	EnsureAlbum(ctx context.Context, artistID uint, name string, year uint16) (models.Album, error)
	UpsertSongByFile(ctx context.Context, song *models.Song) error
	Songs(ctx context.Context) ([]models.Song, error)
	DeleteSong(ctx context.Context, id uint) error
}

// Result summarises one ImportAll pass.
type Result struct {
	Imported int
	Skipped  int
}

// Importer records the audio files below a media root in the catalog.
type Importer struct {
	root    string
	allowed map[string]struct{}
	catalog Catalog
	logger  *log.Logger
}

// New creates an Importer for the files below root whose extension is in allowed.
func New(root string, allowed []string, catalog Catalog, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Default()
	}

	im := &Importer{
		root:    root,
		allowed: make(map[string]struct{}, len(allowed)),
		catalog: catalog,
		logger:  logger,
	}
	for _, ext := range allowed {
		im.allowed[strings.ToLower(ext)] = struct{}{}
	}
	return im
}

// Root returns the media directory the importer scans.
func (im *Importer) Root() string {
	return im.root
}

// IsAllowed reports whether path has one of the importable extensions.
func (im *Importer) IsAllowed(path string) bool {
	_, ok := im.allowed[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ImportFile records one audio file, creating its artist and album when needed.
func (im *Importer) ImportFile(ctx context.Context, path string) (models.Song, error) {
	track, err := ScanTrack(path, im.root)
	if err != nil {
		return models.Song{}, err
	}

	artist, err := im.catalog.EnsureArtist(ctx, track.Artist)
	if err != nil {
		return models.Song{}, err
	}
	album, err := im.catalog.EnsureAlbum(ctx, artist.ID, track.Album, track.Year)
	if err != nil {
		return models.Song{}, err
	}

	song := models.Song{
		AlbumID:      album.ID,
		Name:         track.Title,
		OriginalFile: track.RelativePath,
		Length:       track.Length,
	}
	if err := im.catalog.UpsertSongByFile(ctx, &song); err != nil {
		return models.Song{}, err
	}
	return song, nil
}

// ImportAll walks the media root and records every importable file. Files
// that cannot be read or recorded are logged and counted as skipped.
func (im *Importer) ImportAll(ctx context.Context) (Result, error) {
	var result Result

	err := filepath.WalkDir(im.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			im.logger.Printf("walk error for %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !im.IsAllowed(path) {
			return nil
		}

		if _, err := im.ImportFile(ctx, path); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			im.logger.Printf("import error for %s: %v", path, err)
			result.Skipped++
			return nil
		}
		result.Imported++
		return nil
	})
	if err != nil {
		return result, err
	}

	im.logger.Printf("imported %d songs from %s (%d skipped)", result.Imported, im.root, result.Skipped)
	return result, nil
}

// Prune deletes the songs whose original file no longer exists below the
// media root and returns how many were removed.
func (im *Importer) Prune(ctx context.Context) (int, error) {
	songs, err := im.catalog.Songs(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, song := range songs {
		full := filepath.Join(im.root, filepath.FromSlash(song.OriginalFile))
		if _, err := os.Stat(full); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			im.logger.Printf("stat error for %s: %v", full, err)
			continue
		}

		if err := im.catalog.DeleteSong(ctx, song.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		im.logger.Printf("pruned %d songs with missing files", removed)
	}
	return removed, nil
}
