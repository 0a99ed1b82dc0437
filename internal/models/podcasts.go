package models

import (
	"time"

	"gorm.io/gorm"
)

// Publisher is a podcast producer that owns a set of episodes.
type Publisher struct {
	ID        uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	Name      string    `gorm:"size:100;not null;index" json:"name" yaml:"name" validate:"required,max=100"`
	URL       string    `gorm:"size:200;not null" json:"url" yaml:"url" validate:"required,max=200,weburl"`
	Image     string    `gorm:"size:100;not null" json:"image" yaml:"image,omitempty" validate:"max=100"`
	Bio       string    `gorm:"type:text;not null" json:"bio" yaml:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	Episodes []Episode `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-" yaml:"-" validate:"-"`
}

// TableName returns the table that stores publishers.
func (Publisher) TableName() string { return "publishers" }

// String returns the publisher name.
func (p Publisher) String() string { return p.Name }

// Validate checks the publisher's field constraints.
func (p *Publisher) Validate() error { return validateRecord("publisher", p) }

// BeforeSave rejects an invalid publisher before GORM writes it.
func (p *Publisher) BeforeSave(*gorm.DB) error { return p.Validate() }

// Episode belongs to one publisher.
type Episode struct {
	ID          uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	PublisherID uint      `gorm:"not null;index" json:"publisher" yaml:"publisher" validate:"required"`
	Name        string    `gorm:"size:100;not null" json:"name" yaml:"name" validate:"required,max=100"`
	Description string    `gorm:"type:text;not null" json:"description" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// TableName returns the table that stores episodes.
func (Episode) TableName() string { return "episodes" }

// String returns the episode name.
func (e Episode) String() string { return e.Name }

// Validate checks the episode's field constraints.
func (e *Episode) Validate() error { return validateRecord("episode", e) }

// BeforeSave rejects an invalid episode before GORM writes it.
func (e *Episode) BeforeSave(*gorm.DB) error { return e.Validate() }
