// Package catalog persists the music and podcast records through GORM.
//
// Every write validates the record, resolves its parent reference inside
// the same transaction and never touches associations. Deleting a parent
// removes its children.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"media-catalog/internal/models"
)

var (
	// ErrNotFound is returned when no record has the requested ID.
	ErrNotFound = errors.New("record not found")
	// ErrMissingParent is returned when a reference field does not resolve
	// to an existing record.
	ErrMissingParent = errors.New("referenced record does not exist")
	// ErrDuplicateFile is returned when another song already uses the same
	// original_file.
	ErrDuplicateFile = errors.New("file already belongs to another song")
)

// Store provides CRUD access to the catalog tables.
type Store struct {
	db     *gorm.DB
	logger *log.Logger
}

// Counts holds the number of rows per record type.
type Counts struct {
	Artists    int64 `json:"artists"`
	Albums     int64 `json:"albums"`
	Songs      int64 `json:"songs"`
	Publishers int64 `json:"publishers"`
	Episodes   int64 `json:"episodes"`
}

// New returns a Store backed by db.
func New(db *gorm.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates the catalog tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

// Transaction runs fn against a Store bound to a single transaction. The
// transaction commits when fn returns nil.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, logger: s.logger})
	})
}

// Counts returns the number of rows in every catalog table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	targets := []struct {
		model any
		dest  *int64
	}{
		{&models.Artist{}, &c.Artists},
		{&models.Album{}, &c.Albums},
		{&models.Song{}, &c.Songs},
		{&models.Publisher{}, &c.Publishers},
		{&models.Episode{}, &c.Episodes},
	}
	for _, target := range targets {
		if err := db.Model(target.model).Count(target.dest).Error; err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", recordName(target.model), err)
		}
	}
	return c, nil
}

// ResetSequences moves PostgreSQL id sequences past the largest stored id.
// Rows inserted with explicit ids (fixtures) otherwise collide with later
// inserts. Other dialects track this themselves.
func (s *Store) ResetSequences(ctx context.Context) error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	db := s.db.WithContext(ctx)
	for _, model := range models.All() {
		table := tableName(model)
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE(MAX(id), 1), MAX(id) IS NOT NULL) FROM %[1]s",
			table,
		)
		if err := db.Exec(query).Error; err != nil {
			return fmt.Errorf("reset %s sequence: %w", table, err)
		}
	}
	return nil
}

// record is implemented by every catalog model.
type record interface {
	Validate() error
}

func getByID[T any](ctx context.Context, db *gorm.DB, id uint) (T, error) {
	var rec T
	err := db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("%s %d: %w", recordName(&rec), id, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("load %s %d: %w", recordName(&rec), id, err)
	}
	return rec, nil
}

func list[T any](ctx context.Context, db *gorm.DB, query string, args ...any) ([]T, error) {
	var recs []T
	tx := db.WithContext(ctx).Order("id")
	if query != "" {
		tx = tx.Where(query, args...)
	}
	if err := tx.Find(&recs).Error; err != nil {
		var zero T
		return nil, fmt.Errorf("list %s: %w", recordName(&zero), err)
	}
	return recs, nil
}

// guard is an extra check run inside the write transaction.
type guard func(tx *gorm.DB) error

// create validates rec, checks the optional parent and inserts rec.
func create(ctx context.Context, s *Store, rec record, parent any, parentID uint, guards ...guard) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parent != nil {
			if err := requireParent(tx, parent, parentID); err != nil {
				return err
			}
		}
		if err := runGuards(tx, guards); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(rec).Error; err != nil {
			return fmt.Errorf("create %s: %w", recordName(rec), err)
		}
		return nil
	})
}

// update overwrites every column of an existing record except created_at
// and reloads rec from the database.
func update(ctx context.Context, s *Store, rec record, id uint, parent any, parentID uint, guards ...guard) error {
	if id == 0 {
		return fmt.Errorf("update %s without id: %w", recordName(rec), ErrNotFound)
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireExists(tx, rec, id); err != nil {
			return err
		}
		if parent != nil {
			if err := requireParent(tx, parent, parentID); err != nil {
				return err
			}
		}
		if err := runGuards(tx, guards); err != nil {
			return err
		}
		err := tx.Model(rec).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(rec).Error
		if err != nil {
			return fmt.Errorf("update %s %d: %w", recordName(rec), id, err)
		}
		if err := tx.First(rec, id).Error; err != nil {
			return fmt.Errorf("reload %s %d: %w", recordName(rec), id, err)
		}
		return nil
	})
}

func runGuards(tx *gorm.DB, guards []guard) error {
	for _, g := range guards {
		if err := g(tx); err != nil {
			return err
		}
	}
	return nil
}

func requireExists(tx *gorm.DB, model any, id uint) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("look up %s %d: %w", recordName(model), id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", recordName(model), id, ErrNotFound)
	}
	return nil
}

func requireParent(tx *gorm.DB, parent any, id uint) error {
	err := requireExists(tx, parent, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s %d: %w", recordName(parent), id, ErrMissingParent)
	}
	return err
}

func deleteByID(tx *gorm.DB, model any, id uint) error {
	res := tx.Delete(model, id)
	if res.Error != nil {
		return fmt.Errorf("delete %s %d: %w", recordName(model), id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", recordName(model), id, ErrNotFound)
	}
	return nil
}

func recordName(model any) string {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}

func tableName(model any) string {
	if tabler, ok := model.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}
	return recordName(model) + "s"
}
