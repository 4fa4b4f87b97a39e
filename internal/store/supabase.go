package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	pageSize        = 1000 // PostgREST max-rows default
	upsertChunkSize = 500
	deleteChunkSize = 100 // keeps id=in.(...) under URL length limits
)

// SupabaseStore goes through the PostgREST API with the service role key,
// the same path the web app's admin scripts use.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(url, serviceRoleKey string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, serviceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

func (s *SupabaseStore) ListCelebrities(ctx context.Context) ([]model.Celebrity, error) {
	return listAll[model.Celebrity](ctx, s.client, "celebrities", nil)
}

func (s *SupabaseStore) GetCelebrityBySlug(ctx context.Context, slug string) (*model.Celebrity, error) {
	var rows []model.Celebrity
	_, err := s.client.From("celebrities").
		Select("*", "", false).
		Eq("slug", slug).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get celebrity %s: %w", slug, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *SupabaseStore) UpsertCelebrities(ctx context.Context, rows []model.Celebrity) error {
	return upsertAll(ctx, s.client, "celebrities", rows)
}

func (s *SupabaseStore) ListEpisodes(ctx context.Context, f EpisodeFilter) ([]model.Episode, error) {
	var filter func(*postgrest.FilterBuilder) *postgrest.FilterBuilder
	if f.CelebrityID != "" {
		filter = func(q *postgrest.FilterBuilder) *postgrest.FilterBuilder {
			return q.Eq("celebrity_id", f.CelebrityID)
		}
	}
	return listAll[model.Episode](ctx, s.client, "episodes", filter)
}

func (s *SupabaseStore) UpsertEpisodes(ctx context.Context, rows []model.Episode) error {
	return upsertAll(ctx, s.client, "episodes", rows)
}

func (s *SupabaseStore) DeleteEpisodes(ctx context.Context, ids []string) error {
	return deleteAll(ctx, s.client, "episodes", ids)
}

func (s *SupabaseStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	return listAll[model.Location](ctx, s.client, "locations", nil)
}

func (s *SupabaseStore) UpsertLocations(ctx context.Context, rows []model.Location) error {
	return upsertAll(ctx, s.client, "locations", rows)
}

func (s *SupabaseStore) DeleteLocations(ctx context.Context, ids []string) error {
	return deleteAll(ctx, s.client, "locations", ids)
}

func (s *SupabaseStore) ListEpisodeLocations(ctx context.Context) ([]model.EpisodeLocation, error) {
	return listAll[model.EpisodeLocation](ctx, s.client, "episode_locations", nil)
}

func (s *SupabaseStore) UpsertEpisodeLocations(ctx context.Context, rows []model.EpisodeLocation) error {
	return upsertAll(ctx, s.client, "episode_locations", rows)
}

func (s *SupabaseStore) DeleteEpisodeLocations(ctx context.Context, ids []string) error {
	return deleteAll(ctx, s.client, "episode_locations", ids)
}

func (s *SupabaseStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, t := range []struct {
		table string
		dst   *int64
	}{
		{"celebrities", &c.Celebrities},
		{"episodes", &c.Episodes},
		{"locations", &c.Locations},
		{"episode_locations", &c.EpisodeLocations},
	} {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		_, n, err := s.client.From(t.table).Select("id", "exact", true).Execute()
		if err != nil {
			return c, fmt.Errorf("count %s: %w", t.table, err)
		}
		*t.dst = n
	}
	return c, nil
}

// listAll pages through a table with Range until a short page comes back.
func listAll[T any](ctx context.Context, client *supabase.Client, table string, filter func(*postgrest.FilterBuilder) *postgrest.FilterBuilder) ([]T, error) {
	var all []T
	for from := 0; ; from += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := client.From(table).Select("*", "", false)
		if filter != nil {
			q = filter(q)
		}
		var page []T
		_, err := q.Order("id", &postgrest.OrderOpts{Ascending: true}).
			Range(from, from+pageSize-1, "").
			ExecuteTo(&page)
		if err != nil {
			return nil, fmt.Errorf("list %s (offset %d): %w", table, from, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func upsertAll[T any](ctx context.Context, client *supabase.Client, table string, rows []T) error {
	var now time.Time
	if table != "episode_locations" {
		now = time.Now().UTC()
	}
	for _, part := range chunk(rows, upsertChunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := uniformRows(part, now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", table, err)
		}
		_, _, err = client.From(table).Upsert(body, "id", "minimal", "").Execute()
		if err != nil {
			return fmt.Errorf("upsert %s: %w", table, err)
		}
	}
	return nil
}

func deleteAll(ctx context.Context, client *supabase.Client, table string, ids []string) error {
	for _, part := range chunk(ids, deleteChunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _, err := client.From(table).Delete("minimal", "").In("id", part).Execute()
		if err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// uniformRows turns rows into JSON objects sharing one key set, as PostgREST
// bulk upserts require. created_at is left to the column default; updated_at
// is set to now unless now is zero (episode_locations has no such column).
func uniformRows[T any](rows []T, now time.Time) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(rows))
	keys := map[string]struct{}{}
	for _, r := range rows {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		delete(m, "created_at")
		delete(m, "updated_at")
		for k := range m {
			keys[k] = struct{}{}
		}
		out = append(out, m)
	}
	stamp := ""
	if !now.IsZero() {
		stamp = now.Format(time.RFC3339)
	}
	for _, m := range out {
		for k := range keys {
			if _, ok := m[k]; !ok {
				m[k] = nil
			}
		}
		if stamp != "" {
			m["updated_at"] = stamp
		}
	}
	return out, nil
}
