package catalog

import (
	"context"
	"fmt"
	"unicode/utf8"

	"media-catalog/internal/models"
)

// Violation describes one stored row that breaks a catalog invariant.
type Violation struct {
	Entity string `json:"entity"`
	ID     uint   `json:"id"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %d: %s %s", v.Entity, v.ID, v.Field, v.Reason)
}

// Report is the outcome of Verify.
type Report struct {
	Checked    Counts      `json:"checked"`
	Violations []Violation `json:"violations"`
}

// OK reports whether no violation was found.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

type rowCheck struct {
	entity string
	field  string
	reason string
	query  string
}

// Rows can reach the tables without passing through the store, so each
// check reads raw columns instead of decoding models.
var rowChecks = []rowCheck{
	{
		entity: "artist", field: "name", reason: "is empty",
		query: "SELECT id FROM artists WHERE name IS NULL OR name = '' ORDER BY id",
	},
	{
		entity: "album", field: "artist", reason: "references a missing artist",
		query: "SELECT albums.id FROM albums LEFT JOIN artists ON artists.id = albums.artist_id WHERE artists.id IS NULL ORDER BY albums.id",
	},
	{
		entity: "album", field: "year_released", reason: "is negative",
		query: "SELECT id FROM albums WHERE year_released < 0 ORDER BY id",
	},
	{
		entity: "song", field: "album", reason: "references a missing album",
		query: "SELECT songs.id FROM songs LEFT JOIN albums ON albums.id = songs.album_id WHERE albums.id IS NULL ORDER BY songs.id",
	},
	{
		entity: "song", field: "length", reason: "is negative",
		query: "SELECT id FROM songs WHERE length < 0 ORDER BY id",
	},
	{
		entity: "episode", field: "publisher", reason: "references a missing publisher",
		query: "SELECT episodes.id FROM episodes LEFT JOIN publishers ON publishers.id = episodes.publisher_id WHERE publishers.id IS NULL ORDER BY episodes.id",
	},
}

// Verify re-checks the stored rows: references resolve, year_released and
// length are non-negative and every publisher URL is well formed.
func (s *Store) Verify(ctx context.Context) (Report, error) {
	counts, err := s.Counts(ctx)
	if err != nil {
		return Report{}, err
	}
	report := Report{Checked: counts}

	db := s.db.WithContext(ctx)
	for _, check := range rowChecks {
		var ids []uint
		if err := db.Raw(check.query).Scan(&ids).Error; err != nil {
			return Report{}, fmt.Errorf("verify %s %s: %w", check.entity, check.field, err)
		}
		for _, id := range ids {
			report.Violations = append(report.Violations, Violation{
				Entity: check.entity,
				ID:     id,
				Field:  check.field,
				Reason: check.reason,
			})
		}
	}

	var publishers []struct {
		ID  uint
		URL string
	}
	if err := db.Table(tableName(&models.Publisher{})).Select("id", "url").Order("id").Scan(&publishers).Error; err != nil {
		return Report{}, fmt.Errorf("verify publisher url: %w", err)
	}
	for _, p := range publishers {
		if utf8.RuneCountInString(p.URL) > 200 || !models.IsWebURL(p.URL) {
			report.Violations = append(report.Violations, Violation{
				Entity: "publisher",
				ID:     p.ID,
				Field:  "url",
				Reason: "is not a valid URL",
			})
		}
	}

	if !report.OK() {
		s.logger.Printf("catalog verification found %d violations", len(report.Violations))
	}
	return report, nil
}
