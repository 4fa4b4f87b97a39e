package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/db"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var adminHash string

func TestMain(m *testing.M) {
	if err := config.LoadConfig(""); err != nil {
		panic(err)
	}
	// MinCost keeps the suite fast
	h, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	adminHash = string(h)
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	gdb, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	st := store.NewGormStore(gdb)

	ctx := context.Background()
	require.NoError(t, st.UpsertCelebrities(ctx, []model.Celebrity{
		{ID: "c1", Name: "よにの", Slug: "yonino", Status: model.StatusActive, YouTubeChannelID: "UCyonino"},
		{ID: "c2", Name: "引退", Slug: "retired", Status: model.StatusInactive},
	}))
	require.NoError(t, st.UpsertEpisodes(ctx, []model.Episode{
		{ID: "ep000000001", CelebrityID: "c1", Title: "ラーメン", Platform: model.PlatformYouTube},
		{ID: "ep000000002", CelebrityID: "c2", Title: "カフェ", Platform: model.PlatformYouTube},
	}))
	require.NoError(t, st.UpsertLocations(ctx, []model.Location{
		{ID: "l1", Name: "一燈", Slug: "itto", Category: model.CategoryRestaurant},
		{ID: "l2", Name: "東京タワー", Slug: "tower", Category: model.CategoryTourist},
	}))
	return st
}

func setupRouter(srv *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv.InitRoutes(r)
	return r
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestReadHandlers(t *testing.T) {
	srv := NewServer(newTestStore(t), Options{
		Assumptions: service.AssumptionsFromConfig(config.AppConfig.Revenue),
		Bus:         event.NewInMemoryBus(),
	})
	r := setupRouter(srv)

	w := doRequest(r, "GET", "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = doRequest(r, "GET", "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var counts store.Counts
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, store.Counts{Celebrities: 2, Episodes: 2, Locations: 2}, counts)

	w = doRequest(r, "GET", "/api/celebrities?status=active", "")
	require.Equal(t, http.StatusOK, w.Code)
	var celebs []model.Celebrity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &celebs))
	require.Len(t, celebs, 1)
	assert.Equal(t, "yonino", celebs[0].Slug)

	w = doRequest(r, "GET", "/api/celebrities/yonino/episodes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Celebrity model.Celebrity `json:"celebrity"`
		Episodes  []model.Episode `json:"episodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "c1", body.Celebrity.ID)
	require.Len(t, body.Episodes, 1)
	assert.Equal(t, "ep000000001", body.Episodes[0].ID)

	w = doRequest(r, "GET", "/api/celebrities/nobody/episodes", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, "GET", "/api/locations?category=tourist", "")
	require.Equal(t, http.StatusOK, w.Code)
	var locs []model.Location
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &locs))
	require.Len(t, locs, 1)
	assert.Equal(t, "l2", locs[0].ID)

	w = doRequest(r, "GET", "/api/locations?category=hotel", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestReportHandlers(t *testing.T) {
	srv := NewServer(newTestStore(t), Options{
		Assumptions: service.AssumptionsFromConfig(config.AppConfig.Revenue),
		Bus:         event.NewInMemoryBus(),
	})
	r := setupRouter(srv)

	w := doRequest(r, "GET", "/api/reports/quality", "")
	require.Equal(t, http.StatusOK, w.Code)
	var audit service.AuditReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &audit))
	assert.NotEmpty(t, audit.Grade)
	assert.Contains(t, audit.Scores, service.EntityLocation)

	w = doRequest(r, "GET", "/api/reports/revenue", "")
	require.Equal(t, http.StatusOK, w.Code)
	var revenue service.RevenueReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &revenue))
	assert.Len(t, revenue.Scenarios, 3)
	assert.Equal(t, config.AppConfig.Revenue.CommissionYen, revenue.Assumptions.CommissionYen)
}

type stubYouTube struct {
	mu    sync.Mutex
	calls int
}

func (s *stubYouTube) GetChannel(ctx context.Context, id string) (*youtube.Channel, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	ch := &youtube.Channel{ID: id}
	ch.ContentDetails.RelatedPlaylists.Uploads = "UU" + id
	return ch, nil
}

func (s *stubYouTube) ListPlaylistItems(ctx context.Context, playlistID, token string) (*youtube.PlaylistItemsPage, error) {
	var it youtube.PlaylistItem
	it.ContentDetails.VideoID = "newvideo001"
	it.ContentDetails.VideoPublishedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &youtube.PlaylistItemsPage{Items: []youtube.PlaylistItem{it}}, nil
}

func (s *stubYouTube) GetVideos(ctx context.Context, ids []string) ([]youtube.Video, error) {
	var v youtube.Video
	v.ID = "newvideo001"
	v.Snippet.Title = "新作"
	v.Snippet.PublishedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	v.ContentDetails.Duration = "PT8M"
	return []youtube.Video{v}, nil
}

func (s *stubYouTube) SearchChannelVideos(ctx context.Context, channelID, query string, max int) ([]string, error) {
	return nil, nil
}

func TestSyncYouTubeHandler(t *testing.T) {
	st := newTestStore(t)
	bus := event.NewInMemoryBus()
	yt := &stubYouTube{}
	srv := NewServer(st, Options{
		Importer:       service.NewYouTubeImporter(st, yt, bus),
		Bus:            bus,
		AdminTokenHash: adminHash,
	})
	r := setupRouter(srv)

	w := doRequest(r, "POST", "/api/sync/youtube/yonino", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, "POST", "/api/sync/youtube/yonino", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, "POST", "/api/sync/youtube/nobody", "secret-token")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, "POST", "/api/sync/youtube/retired", "secret-token")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, "POST", "/api/sync/youtube/yonino", "secret-token")
	assert.Equal(t, http.StatusAccepted, w.Code)
	srv.Wait()

	eps, err := st.ListEpisodes(context.Background(), store.EpisodeFilter{CelebrityID: "c1"})
	require.NoError(t, err)
	assert.Len(t, eps, 2)
	assert.Equal(t, 1, yt.calls)
}

func TestAdminMiddleware(t *testing.T) {
	t.Run("closed without hash", func(t *testing.T) {
		srv := NewServer(newTestStore(t), Options{Bus: event.NewInMemoryBus()})
		w := doRequest(setupRouter(srv), "POST", "/api/sync/youtube/yonino", "anything")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no importer", func(t *testing.T) {
		srv := NewServer(newTestStore(t), Options{Bus: event.NewInMemoryBus(), AdminTokenHash: adminHash})
		w := doRequest(setupRouter(srv), "POST", "/api/sync/youtube/yonino", "secret-token")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("HashToken", func(t *testing.T) {
		h, err := HashToken("abc")
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("abc")))
	})
}
