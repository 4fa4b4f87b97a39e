package store

import (
	"context"
	"errors"

	"github.com/oshikatsu-collection/oshidata/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const gormBatchSize = 500

// GormStore talks to sqlite or to the Supabase Postgres directly.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ListCelebrities(ctx context.Context) ([]model.Celebrity, error) {
	var out []model.Celebrity
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (s *GormStore) GetCelebrityBySlug(ctx context.Context, slug string) (*model.Celebrity, error) {
	var c model.Celebrity
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) UpsertCelebrities(ctx context.Context, rows []model.Celebrity) error {
	return upsert(s.db.WithContext(ctx), rows)
}

func (s *GormStore) ListEpisodes(ctx context.Context, f EpisodeFilter) ([]model.Episode, error) {
	q := s.db.WithContext(ctx).Order("id")
	if f.CelebrityID != "" {
		q = q.Where("celebrity_id = ?", f.CelebrityID)
	}
	var out []model.Episode
	err := q.Find(&out).Error
	return out, err
}

func (s *GormStore) UpsertEpisodes(ctx context.Context, rows []model.Episode) error {
	return upsert(s.db.WithContext(ctx), rows)
}

func (s *GormStore) DeleteEpisodes(ctx context.Context, ids []string) error {
	return deleteIDs(s.db.WithContext(ctx), &model.Episode{}, ids)
}

func (s *GormStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	var out []model.Location
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (s *GormStore) UpsertLocations(ctx context.Context, rows []model.Location) error {
	return upsert(s.db.WithContext(ctx), rows)
}

func (s *GormStore) DeleteLocations(ctx context.Context, ids []string) error {
	return deleteIDs(s.db.WithContext(ctx), &model.Location{}, ids)
}

func (s *GormStore) ListEpisodeLocations(ctx context.Context) ([]model.EpisodeLocation, error) {
	var out []model.EpisodeLocation
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (s *GormStore) UpsertEpisodeLocations(ctx context.Context, rows []model.EpisodeLocation) error {
	return upsert(s.db.WithContext(ctx), rows)
}

func (s *GormStore) DeleteEpisodeLocations(ctx context.Context, ids []string) error {
	return deleteIDs(s.db.WithContext(ctx), &model.EpisodeLocation{}, ids)
}

func (s *GormStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	tx := s.db.WithContext(ctx)
	for _, t := range []struct {
		model interface{}
		dst   *int64
	}{
		{&model.Celebrity{}, &c.Celebrities},
		{&model.Episode{}, &c.Episodes},
		{&model.Location{}, &c.Locations},
		{&model.EpisodeLocation{}, &c.EpisodeLocations},
	} {
		if err := tx.Model(t.model).Count(t.dst).Error; err != nil {
			return c, err
		}
	}
	return c, nil
}

func upsert[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&rows, gormBatchSize).Error
}

func deleteIDs(tx *gorm.DB, m interface{}, ids []string) error {
	for _, part := range chunk(ids, deleteChunkSize) {
		if err := tx.Where("id IN ?", part).Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}
