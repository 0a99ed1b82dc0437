// Package fixtures reads and writes whole-catalog snapshots as YAML or JSON
// documents. Records keep their ids so references between them survive a
// dump and reload.
package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"media-catalog/internal/catalog"
	"media-catalog/internal/models"
)

// Format selects the document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Document is the on-disk layout of a fixture file. Parents come before
// their children.
type Document struct {
	Artists    []models.Artist    `json:"artists" yaml:"artists"`
	Albums     []models.Album     `json:"albums" yaml:"albums"`
	Songs      []models.Song      `json:"songs" yaml:"songs"`
	Publishers []models.Publisher `json:"publishers" yaml:"publishers"`
	Episodes   []models.Episode   `json:"episodes" yaml:"episodes"`
}

// Counts reports how many records the document holds.
func (d Document) Counts() catalog.Counts {
	return catalog.Counts{
		Artists:    int64(len(d.Artists)),
		Albums:     int64(len(d.Albums)),
		Songs:      int64(len(d.Songs)),
		Publishers: int64(len(d.Publishers)),
		Episodes:   int64(len(d.Episodes)),
	}
}

// Merge concatenates documents per record type. Installing the result
// creates the parents of every document before any child, so references
// may point across documents.
func Merge(docs ...Document) Document {
	var merged Document
	for _, doc := range docs {
		merged.Artists = append(merged.Artists, doc.Artists...)
		merged.Albums = append(merged.Albums, doc.Albums...)
		merged.Songs = append(merged.Songs, doc.Songs...)
		merged.Publishers = append(merged.Publishers, doc.Publishers...)
		merged.Episodes = append(merged.Episodes, doc.Episodes...)
	}
	return merged
}

// ParseFormat accepts "yaml", "yml" or "json" in any case.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown fixture format %q", value)
	}
}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot tell fixture format of %s", path)
	}
	return ParseFormat(ext)
}

// Snapshot reads every catalog record into a Document.
func Snapshot(ctx context.Context, store *catalog.Store) (Document, error) {
	var (
		doc Document
		err error
	)
	if doc.Artists, err = store.Artists(ctx); err != nil {
		return Document{}, err
	}
	if doc.Albums, err = store.Albums(ctx); err != nil {
		return Document{}, err
	}
	if doc.Songs, err = store.Songs(ctx); err != nil {
		return Document{}, err
	}
	if doc.Publishers, err = store.Publishers(ctx); err != nil {
		return Document{}, err
	}
	if doc.Episodes, err = store.Episodes(ctx); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Dump writes the whole catalog to w.
func Dump(ctx context.Context, store *catalog.Store, w io.Writer, format Format) error {
	doc, err := Snapshot(ctx, store)
	if err != nil {
		return err
	}
	return Encode(w, doc, format)
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode fixture: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode fixture: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown fixture format %q", format)
	}
}

// Decode reads a Document from r. An empty input is an empty document.
func Decode(r io.Reader, format Format) (Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(&doc)
	default:
		return Document{}, fmt.Errorf("unknown fixture format %q", format)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("decode fixture: %w", err)
	}
	return doc, nil
}

// Load reads a document from r and inserts every record in one
// transaction. Nothing is written when any record is rejected.
func Load(ctx context.Context, store *catalog.Store, r io.Reader, format Format) (catalog.Counts, error) {
	doc, err := Decode(r, format)
	if err != nil {
		return catalog.Counts{}, err
	}
	if err := Install(ctx, store, doc); err != nil {
		return catalog.Counts{}, err
	}
	return doc.Counts(), nil
}

// Install inserts the records of doc, keeping their ids.
func Install(ctx context.Context, store *catalog.Store, doc Document) error {
	return store.Transaction(ctx, func(tx *catalog.Store) error {
		for i := range doc.Artists {
			if err := tx.CreateArtist(ctx, &doc.Artists[i]); err != nil {
				return fmt.Errorf("artists[%d]: %w", i, err)
			}
		}
		for i := range doc.Albums {
			if err := tx.CreateAlbum(ctx, &doc.Albums[i]); err != nil {
				return fmt.Errorf("albums[%d]: %w", i, err)
			}
		}
		for i := range doc.Songs {
			if err := tx.CreateSong(ctx, &doc.Songs[i]); err != nil {
				return fmt.Errorf("songs[%d]: %w", i, err)
			}
		}
		for i := range doc.Publishers {
			if err := tx.CreatePublisher(ctx, &doc.Publishers[i]); err != nil {
				return fmt.Errorf("publishers[%d]: %w", i, err)
			}
		}
		for i := range doc.Episodes {
			if err := tx.CreateEpisode(ctx, &doc.Episodes[i]); err != nil {
				return fmt.Errorf("episodes[%d]: %w", i, err)
			}
		}
		return tx.ResetSequences(ctx)
	})
}
