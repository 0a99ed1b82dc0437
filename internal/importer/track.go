package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"

	"media-catalog/internal/models"
)

// Names used when an audio file carries no usable tags.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Track is what one audio file contributes to the music schema.
type Track struct {
	// RelativePath is the slash-separated path below the media root, stored
	// as the song's original_file.
	RelativePath string
	Title        string
	Artist       string
	Album        string
	Year         uint16
	// Length in seconds; 0 when the duration cannot be determined.
	Length float64
}

// ScanTrack reads the tags and duration of the audio file at path.
func ScanTrack(path string, root string) (Track, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Track{}, err
	}
	if info.IsDir() {
		return Track{}, fmt.Errorf("%s is a directory", path)
	}

	relative, err := filepath.Rel(root, path)
	if err != nil {
		relative = filepath.Base(path)
	}
	relative = filepath.ToSlash(relative)

	title, artist, album, year := readTags(path)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if artist == "" {
		artist = UnknownArtist
	}
	if album == "" {
		album = UnknownAlbum
	}

	var length float64
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if dur, err := computeMP3Duration(path); err == nil && dur > 0 {
			length = dur
		}
	}

	return Track{
		RelativePath: relative,
		Title:        truncate(title, models.MaxNameLength),
		Artist:       truncate(artist, models.MaxNameLength),
		Album:        truncate(album, models.MaxNameLength),
		Year:         clampYear(year),
		Length:       length,
	}, nil
}

// readTags prefers the album artist over the track artist, since albums
// belong to a single artist.
func readTags(path string) (title, artist, album string, year int) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", "", 0
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return "", "", "", 0
	}

	artist = strings.TrimSpace(meta.AlbumArtist())
	if artist == "" {
		artist = strings.TrimSpace(meta.Artist())
	}
	return strings.TrimSpace(meta.Title()), artist, strings.TrimSpace(meta.Album()), meta.Year()
}

func computeMP3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}

	return total, nil
}

func clampYear(year int) uint16 {
	if year <= 0 || year > models.MaxSmallInt {
		return 0
	}
	return uint16(year)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit]))
}
