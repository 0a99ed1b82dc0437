package models

import (
	"time"

	"gorm.io/gorm"
)

// Artist is a performer that owns a set of albums.
type Artist struct {
	ID        uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	Name      string    `gorm:"size:100;not null;index" json:"name" yaml:"name" validate:"required,max=100"`
	Image     string    `gorm:"size:100;not null" json:"image" yaml:"image,omitempty" validate:"max=100"`
	Bio       string    `gorm:"type:text;not null" json:"bio" yaml:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	Albums []Album `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-" yaml:"-" validate:"-"`
}

// TableName returns the table that stores artists.
func (Artist) TableName() string { return "artists" }

// String returns the artist name.
func (a Artist) String() string { return a.Name }

// Validate checks the artist's field constraints.
func (a *Artist) Validate() error { return validateRecord("artist", a) }

// BeforeSave rejects an invalid artist before GORM writes it.
func (a *Artist) BeforeSave(*gorm.DB) error { return a.Validate() }

// Album belongs to one artist and owns its songs.
type Album struct {
	ID           uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	ArtistID     uint      `gorm:"not null;index" json:"artist" yaml:"artist" validate:"required"`
	Name         string    `gorm:"size:100;not null" json:"name" yaml:"name" validate:"required,max=100"`
	Image        string    `gorm:"size:100;not null" json:"image" yaml:"image,omitempty" validate:"max=100"`
	YearReleased uint16    `gorm:"not null" json:"year_released" yaml:"year_released" validate:"lte=32767"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`

	Songs []Song `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-" yaml:"-" validate:"-"`
}

// TableName returns the table that stores albums.
func (Album) TableName() string { return "albums" }

// String returns the album name.
func (a Album) String() string { return a.Name }

// Validate checks the album's field constraints. The artist reference is
// only checked for presence here; the store resolves it.
func (a *Album) Validate() error { return validateRecord("album", a) }

// BeforeSave rejects an invalid album before GORM writes it.
func (a *Album) BeforeSave(*gorm.DB) error { return a.Validate() }

// Song is a single audio file on an album. Length is in seconds.
type Song struct {
	ID           uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	AlbumID      uint      `gorm:"not null;index" json:"album" yaml:"album" validate:"required"`
	Name         string    `gorm:"size:100;not null" json:"name" yaml:"name" validate:"required,max=100"`
	OriginalFile string    `gorm:"size:100;not null;uniqueIndex" json:"original_file" yaml:"original_file" validate:"required,max=100"`
	Length       float64   `gorm:"not null" json:"length" yaml:"length" validate:"gte=0,finite"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// TableName returns the table that stores songs.
func (Song) TableName() string { return "songs" }

// String returns the song name.
func (s Song) String() string { return s.Name }

// Validate checks the song's field constraints.
func (s *Song) Validate() error { return validateRecord("song", s) }

// BeforeSave rejects an invalid song before GORM writes it.
func (s *Song) BeforeSave(*gorm.DB) error { return s.Validate() }
