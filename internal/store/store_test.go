package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/db"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *GormStore {
	gdb, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	return NewGormStore(gdb)
}

func TestGormStore_Celebrities(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertCelebrities(ctx, nil))
	require.NoError(t, s.UpsertCelebrities(ctx, []model.Celebrity{
		{ID: "b", Name: "Bee", Slug: "bee"},
		{ID: "a", Name: "Ay", Slug: "ay"},
	}))

	list, err := s.ListCelebrities(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	c, err := s.GetCelebrityBySlug(ctx, "bee")
	require.NoError(t, err)
	assert.Equal(t, "Bee", c.Name)

	_, err = s.GetCelebrityBySlug(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	// upsert replaces
	require.NoError(t, s.UpsertCelebrities(ctx, []model.Celebrity{{ID: "b", Name: "Bee 2", Slug: "bee", SubscriberCount: 10}}))
	c, err = s.GetCelebrityBySlug(ctx, "bee")
	require.NoError(t, err)
	assert.Equal(t, "Bee 2", c.Name)
	assert.Equal(t, int64(10), c.SubscriberCount)
}

func TestGormStore_EpisodesAndLinks(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEpisodes(ctx, []model.Episode{
		{ID: "v1", CelebrityID: "c1", Title: "one"},
		{ID: "v2", CelebrityID: "c2", Title: "two"},
		{ID: "v3", CelebrityID: "c1", Title: "three"},
	}))

	all, err := s.ListEpisodes(ctx, EpisodeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.ListEpisodes(ctx, EpisodeFilter{CelebrityID: "c1"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "v1", mine[0].ID)
	assert.Equal(t, "v3", mine[1].ID)

	require.NoError(t, s.DeleteEpisodes(ctx, []string{"v1", "v2"}))
	require.NoError(t, s.DeleteEpisodes(ctx, nil))
	all, err = s.ListEpisodes(ctx, EpisodeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "v3", all[0].ID)

	require.NoError(t, s.UpsertEpisodeLocations(ctx, []model.EpisodeLocation{{ID: "l1", EpisodeID: "v3", LocationID: "x"}}))
	links, err := s.ListEpisodeLocations(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.NoError(t, s.DeleteEpisodeLocations(ctx, []string{"l1"}))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Episodes: 1}, counts)
}

func TestGormStore_LocationJSONColumns(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	loc := model.Location{
		ID:   "loc1",
		Name: "ラーメン屋",
		Tags: []string{"ramen", "tokyo"},
		AffiliateInfo: model.AffiliateInfo{Tabelog: &model.TabelogAffiliate{
			URL:      "https://tabelog.com/tokyo/A1303/A130301/13000001/",
			Provider: "linkswitch",
		}},
	}
	require.NoError(t, s.UpsertLocations(ctx, []model.Location{loc}))

	list, err := s.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"ramen", "tokyo"}, list[0].Tags)
	require.NotNil(t, list[0].AffiliateInfo.Tabelog)
	assert.Equal(t, "linkswitch", list[0].AffiliateInfo.Tabelog.Provider)

	require.NoError(t, s.DeleteLocations(ctx, []string{"loc1"}))
	list, err = s.ListLocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2}, {3}}, chunk([]int{1, 2, 3}, 2))
	assert.Equal(t, [][]int{{1, 2}}, chunk([]int{1, 2}, 2))
}

func TestUniformRows(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := []model.Episode{{ID: "a", Date: &now}, {ID: "b"}}

	out, err := uniformRows(rows, now)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, len(out[0]), len(out[1]))
	assert.Equal(t, "2024-01-02T03:04:05Z", out[0]["updated_at"])
	_, hasCreated := out[0]["created_at"]
	assert.False(t, hasCreated)
	// missing date becomes an explicit null
	v, ok := out[1]["date"]
	assert.True(t, ok)
	assert.Nil(t, v)

	links, err := uniformRows([]model.EpisodeLocation{{ID: "l"}}, time.Time{})
	require.NoError(t, err)
	_, hasUpdated := links[0]["updated_at"]
	assert.False(t, hasUpdated)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}}
	s, err := Open(cfg)
	require.NoError(t, err)
	_, ok := s.(*GormStore)
	assert.True(t, ok)

	_, err = Open(&config.Config{Database: config.DatabaseConfig{Driver: "supabase"}})
	assert.Error(t, err)
}

// fakePostgREST records requests and serves canned rows per table.
type fakePostgREST struct {
	mu       sync.Mutex
	rows     map[string]string
	requests []*http.Request
	bodies   []string
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	table := path.Base(r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		if off := r.URL.Query().Get("offset"); off != "" && off != "0" {
			w.Write([]byte("[]"))
			return
		}
		if rows, ok := f.rows[table]; ok {
			w.Write([]byte(rows))
			return
		}
		w.Write([]byte("[]"))
	case http.MethodHead:
		w.Header().Set("Content-Range", "*/3")
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("[]"))
	}
}

func newSupabaseTestStore(t *testing.T, f *fakePostgREST) *SupabaseStore {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	s, err := NewSupabaseStore(srv.URL, "service-role")
	require.NoError(t, err)
	return s
}

func TestSupabaseStore_List(t *testing.T) {
	f := &fakePostgREST{rows: map[string]string{
		"celebrities": `[{"id":"a","name":"Ay","slug":"ay"},{"id":"b","name":"Bee","slug":"bee"}]`,
	}}
	s := newSupabaseTestStore(t, f)

	list, err := s.ListCelebrities(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bee", list[1].Name)

	c, err := s.GetCelebrityBySlug(context.Background(), "ay")
	require.NoError(t, err)
	assert.Equal(t, "a", c.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	assert.True(t, strings.HasSuffix(f.requests[0].URL.Path, "/rest/v1/celebrities"))
	assert.Equal(t, "service-role", f.requests[0].Header.Get("apikey"))
}

func TestSupabaseStore_NotFound(t *testing.T) {
	s := newSupabaseTestStore(t, &fakePostgREST{})
	_, err := s.GetCelebrityBySlug(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupabaseStore_UpsertChunks(t *testing.T) {
	f := &fakePostgREST{}
	s := newSupabaseTestStore(t, f)

	rows := make([]model.Episode, upsertChunkSize+1)
	for i := range rows {
		rows[i] = model.Episode{ID: strings.Repeat("x", i%5+1) + string(rune('a'+i%26)), Title: "t"}
	}
	require.NoError(t, s.UpsertEpisodes(context.Background(), rows))
	require.NoError(t, s.UpsertEpisodes(context.Background(), nil))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.requests, 2)
	for i, r := range f.requests {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "id", r.URL.Query().Get("on_conflict"))
		var payload []map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(f.bodies[i]), &payload))
		if i == 0 {
			assert.Len(t, payload, upsertChunkSize)
		} else {
			assert.Len(t, payload, 1)
		}
	}
}

func TestSupabaseStore_DeleteChunks(t *testing.T) {
	f := &fakePostgREST{}
	s := newSupabaseTestStore(t, f)

	ids := make([]string, deleteChunkSize*2+5)
	for i := range ids {
		ids[i] = "id"
	}
	require.NoError(t, s.DeleteLocations(context.Background(), ids))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.requests, 3)
	assert.Equal(t, http.MethodDelete, f.requests[0].Method)
	assert.True(t, strings.HasPrefix(f.requests[0].URL.Query().Get("id"), "in.("))
}
