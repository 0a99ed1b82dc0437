// Package models declares the persisted record types of the catalog: the
// music schema (Artist, Album, Song) and the podcast schema (Publisher,
// Episode).
package models

// All returns a fresh pointer to every record type, parents before children.
func All() []any {
	return []any{
		&Artist{},
		&Album{},
		&Song{},
		&Publisher{},
		&Episode{},
	}
}
