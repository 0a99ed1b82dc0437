package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"media-catalog/internal/models"
)

// CreatePublisher inserts a new publisher.
func (s *Store) CreatePublisher(ctx context.Context, publisher *models.Publisher) error {
	return create(ctx, s, publisher, nil, 0)
}

// Publisher loads the publisher with the given ID.
func (s *Store) Publisher(ctx context.Context, id uint) (models.Publisher, error) {
	return getByID[models.Publisher](ctx, s.db, id)
}

// Publishers lists every publisher ordered by ID.
func (s *Store) Publishers(ctx context.Context) ([]models.Publisher, error) {
	return list[models.Publisher](ctx, s.db, "")
}

// UpdatePublisher overwrites the stored publisher with the same ID.
func (s *Store) UpdatePublisher(ctx context.Context, publisher *models.Publisher) error {
	return update(ctx, s, publisher, publisher.ID, nil, 0)
}

// DeletePublisher removes the publisher and its episodes.
func (s *Store) DeletePublisher(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireExists(tx, &models.Publisher{}, id); err != nil {
			return err
		}
		if err := tx.Where("publisher_id = ?", id).Delete(&models.Episode{}).Error; err != nil {
			return fmt.Errorf("delete episodes of publisher %d: %w", id, err)
		}
		return deleteByID(tx, &models.Publisher{}, id)
	})
}

// CreateEpisode inserts a new episode. The publisher must exist.
func (s *Store) CreateEpisode(ctx context.Context, episode *models.Episode) error {
	return create(ctx, s, episode, &models.Publisher{}, episode.PublisherID)
}

// Episode loads the episode with the given ID.
func (s *Store) Episode(ctx context.Context, id uint) (models.Episode, error) {
	return getByID[models.Episode](ctx, s.db, id)
}

// Episodes lists every episode ordered by ID.
func (s *Store) Episodes(ctx context.Context) ([]models.Episode, error) {
	return list[models.Episode](ctx, s.db, "")
}

// EpisodesByPublisher lists the episodes of one publisher.
func (s *Store) EpisodesByPublisher(ctx context.Context, publisherID uint) ([]models.Episode, error) {
	return list[models.Episode](ctx, s.db, "publisher_id = ?", publisherID)
}

// UpdateEpisode overwrites the stored episode with the same ID. The publisher must exist.
func (s *Store) UpdateEpisode(ctx context.Context, episode *models.Episode) error {
	return update(ctx, s, episode, episode.ID, &models.Publisher{}, episode.PublisherID)
}

// DeleteEpisode removes one episode.
func (s *Store) DeleteEpisode(ctx context.Context, id uint) error {
	return deleteByID(s.db.WithContext(ctx), &models.Episode{}, id)
}
