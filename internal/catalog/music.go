package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"media-catalog/internal/models"
)

// CreateArtist inserts a new artist and fills in its ID and timestamps.
func (s *Store) CreateArtist(ctx context.Context, artist *models.Artist) error {
	return create(ctx, s, artist, nil, 0)
}

// Artist loads the artist with the given ID.
func (s *Store) Artist(ctx context.Context, id uint) (models.Artist, error) {
	return getByID[models.Artist](ctx, s.db, id)
}

// Artists lists every artist ordered by ID.
func (s *Store) Artists(ctx context.Context) ([]models.Artist, error) {
	return list[models.Artist](ctx, s.db, "")
}

// UpdateArtist overwrites the stored artist with the same ID.
func (s *Store) UpdateArtist(ctx context.Context, artist *models.Artist) error {
	return update(ctx, s, artist, artist.ID, nil, 0)
}

// DeleteArtist removes the artist together with its albums and their songs.
func (s *Store) DeleteArtist(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireExists(tx, &models.Artist{}, id); err != nil {
			return err
		}
		albums := tx.Model(&models.Album{}).Select("id").Where("artist_id = ?", id)
		if err := tx.Where("album_id IN (?)", albums).Delete(&models.Song{}).Error; err != nil {
			return fmt.Errorf("delete songs of artist %d: %w", id, err)
		}
		if err := tx.Where("artist_id = ?", id).Delete(&models.Album{}).Error; err != nil {
			return fmt.Errorf("delete albums of artist %d: %w", id, err)
		}
		return deleteByID(tx, &models.Artist{}, id)
	})
}

// EnsureArtist returns the oldest artist called name, creating one when none exists.
func (s *Store) EnsureArtist(ctx context.Context, name string) (models.Artist, error) {
	var artist models.Artist
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&artist).Error
	if err == nil {
		return artist, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Artist{}, fmt.Errorf("look up artist %q: %w", name, err)
	}

	artist = models.Artist{Name: name}
	if err := s.CreateArtist(ctx, &artist); err != nil {
		return models.Artist{}, err
	}
	return artist, nil
}

// CreateAlbum inserts a new album. The artist must exist.
func (s *Store) CreateAlbum(ctx context.Context, album *models.Album) error {
	return create(ctx, s, album, &models.Artist{}, album.ArtistID)
}

// Album loads the album with the given ID.
func (s *Store) Album(ctx context.Context, id uint) (models.Album, error) {
	return getByID[models.Album](ctx, s.db, id)
}

// Albums lists every album ordered by ID.
func (s *Store) Albums(ctx context.Context) ([]models.Album, error) {
	return list[models.Album](ctx, s.db, "")
}

// AlbumsByArtist lists the albums owned by one artist.
func (s *Store) AlbumsByArtist(ctx context.Context, artistID uint) ([]models.Album, error) {
	return list[models.Album](ctx, s.db, "artist_id = ?", artistID)
}

// UpdateAlbum overwrites the stored album with the same ID. The artist must exist.
func (s *Store) UpdateAlbum(ctx context.Context, album *models.Album) error {
	return update(ctx, s, album, album.ID, &models.Artist{}, album.ArtistID)
}

// DeleteAlbum removes the album and its songs.
func (s *Store) DeleteAlbum(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireExists(tx, &models.Album{}, id); err != nil {
			return err
		}
		if err := tx.Where("album_id = ?", id).Delete(&models.Song{}).Error; err != nil {
			return fmt.Errorf("delete songs of album %d: %w", id, err)
		}
		return deleteByID(tx, &models.Album{}, id)
	})
}

// EnsureAlbum returns the artist's oldest album called name, creating it
// when absent. A stored year of 0 is filled in from year.
func (s *Store) EnsureAlbum(ctx context.Context, artistID uint, name string, year uint16) (models.Album, error) {
	var album models.Album
	err := s.db.WithContext(ctx).Where("artist_id = ? AND name = ?", artistID, name).First(&album).Error
	switch {
	case err == nil:
		if album.YearReleased == 0 && year > 0 {
			album.YearReleased = year
			if err := s.UpdateAlbum(ctx, &album); err != nil {
				return models.Album{}, err
			}
		}
		return album, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.Album{}, fmt.Errorf("look up album %q: %w", name, err)
	}

	album = models.Album{ArtistID: artistID, Name: name, YearReleased: year}
	if err := s.CreateAlbum(ctx, &album); err != nil {
		return models.Album{}, err
	}
	return album, nil
}

// CreateSong inserts a new song. The album must exist.
func (s *Store) CreateSong(ctx context.Context, song *models.Song) error {
	return create(ctx, s, song, &models.Album{}, song.AlbumID, uniqueFile(song))
}

// Song loads the song with the given ID.
func (s *Store) Song(ctx context.Context, id uint) (models.Song, error) {
	return getByID[models.Song](ctx, s.db, id)
}

// SongByFile loads the song whose original_file equals path.
func (s *Store) SongByFile(ctx context.Context, path string) (models.Song, error) {
	var song models.Song
	err := s.db.WithContext(ctx).Where("original_file = ?", path).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Song{}, fmt.Errorf("song with file %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return models.Song{}, fmt.Errorf("look up song file %q: %w", path, err)
	}
	return song, nil
}

// Songs lists every song ordered by ID.
func (s *Store) Songs(ctx context.Context) ([]models.Song, error) {
	return list[models.Song](ctx, s.db, "")
}

// SongsByAlbum lists the songs on one album.
func (s *Store) SongsByAlbum(ctx context.Context, albumID uint) ([]models.Song, error) {
	return list[models.Song](ctx, s.db, "album_id = ?", albumID)
}

// UpdateSong overwrites the stored song with the same ID. The album must exist.
func (s *Store) UpdateSong(ctx context.Context, song *models.Song) error {
	return update(ctx, s, song, song.ID, &models.Album{}, song.AlbumID, uniqueFile(song))
}

// uniqueFile rejects song when another row already records its file.
func uniqueFile(song *models.Song) guard {
	return func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&models.Song{}).
			Where("original_file = ? AND id <> ?", song.OriginalFile, song.ID).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("look up song file %q: %w", song.OriginalFile, err)
		}
		if n > 0 {
			return fmt.Errorf("song file %q: %w", song.OriginalFile, ErrDuplicateFile)
		}
		return nil
	}
}

// UpsertSongByFile updates the song stored for song.OriginalFile, or
// inserts it when the file is new. song.ID is set either way.
func (s *Store) UpsertSongByFile(ctx context.Context, song *models.Song) error {
	existing, err := s.SongByFile(ctx, song.OriginalFile)
	switch {
	case err == nil:
		song.ID = existing.ID
		return s.UpdateSong(ctx, song)
	case errors.Is(err, ErrNotFound):
		song.ID = 0
		return s.CreateSong(ctx, song)
	default:
		return err
	}
}

// DeleteSong removes one song.
func (s *Store) DeleteSong(ctx context.Context, id uint) error {
	return deleteByID(s.db.WithContext(ctx), &models.Song{}, id)
}
