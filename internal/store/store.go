package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/db"
	"github.com/oshikatsu-collection/oshidata/internal/model"
)

var ErrNotFound = errors.New("not found")

// EpisodeFilter narrows ListEpisodes. Zero value lists everything.
type EpisodeFilter struct {
	CelebrityID string
}

type Counts struct {
	Celebrities      int64 `json:"celebrities"`
	Episodes         int64 `json:"episodes"`
	Locations        int64 `json:"locations"`
	EpisodeLocations int64 `json:"episode_locations"`
}

// Store is the persistence surface shared by the seeders, auditors and the API.
// Lists are ordered by id. Upserts and deletes with no input are no-ops.
type Store interface {
	ListCelebrities(ctx context.Context) ([]model.Celebrity, error)
	GetCelebrityBySlug(ctx context.Context, slug string) (*model.Celebrity, error)
	UpsertCelebrities(ctx context.Context, rows []model.Celebrity) error

	ListEpisodes(ctx context.Context, f EpisodeFilter) ([]model.Episode, error)
	UpsertEpisodes(ctx context.Context, rows []model.Episode) error
	DeleteEpisodes(ctx context.Context, ids []string) error

	ListLocations(ctx context.Context) ([]model.Location, error)
	UpsertLocations(ctx context.Context, rows []model.Location) error
	DeleteLocations(ctx context.Context, ids []string) error

	ListEpisodeLocations(ctx context.Context) ([]model.EpisodeLocation, error)
	UpsertEpisodeLocations(ctx context.Context, rows []model.EpisodeLocation) error
	DeleteEpisodeLocations(ctx context.Context, ids []string) error

	Counts(ctx context.Context) (Counts, error)
}

// Open picks the backend from database.driver.
func Open(cfg *config.Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Database.Driver {
	case "supabase":
		return NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey)
	case "postgres":
		gdb, err := db.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		return NewGormStore(gdb), nil
	case "sqlite":
		gdb, err := db.Open("sqlite", cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return NewGormStore(gdb), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
