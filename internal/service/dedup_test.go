package service

import (
	"context"
	"testing"

	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEpisodeDuplicates(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertEpisodes(ctx, []model.Episode{
		{ID: "abcdefghijk", CelebrityID: "c1", Title: "【神回】ラーメン巡り", Date: ptrTime("2024-03-01T10:00:00Z"),
			ThumbnailURL: "https://img/1.jpg", Platform: model.PlatformYouTube},
		// imported from an old sheet under a different id
		{ID: "legacy-row-1", CelebrityID: "c1", Title: "ラーメン巡り", VideoURL: "https://youtu.be/abcdefghijk",
			Description: "from the sheet", ViewCount: 999, Platform: model.PlatformYouTube},
		// same title and day, no video id
		{ID: "sheet-row-02", CelebrityID: "c1", Title: "ラーメン巡り #shorts", Date: ptrTime("2024-03-01T20:00:00Z"),
			ThumbnailURL: "https://img/3.jpg", Platform: model.PlatformYouTube},
		{ID: "other000001", CelebrityID: "c1", Title: "別の動画", Date: ptrTime("2024-03-02T10:00:00Z"), Platform: model.PlatformYouTube},
		{ID: "c2video0001", CelebrityID: "c2", Title: "ラーメン巡り", Date: ptrTime("2024-03-01T10:00:00Z"), Platform: model.PlatformYouTube},
	}))
	require.NoError(t, st.UpsertEpisodeLocations(ctx, []model.EpisodeLocation{
		{ID: "l1", EpisodeID: "legacy-row-1", LocationID: "locA"},
		{ID: "l2", EpisodeID: "sheet-row-02", LocationID: "locA"},
		{ID: "l3", EpisodeID: "abcdefghijk", LocationID: "locB"},
	}))
}

func TestDeduper_DedupEpisodes(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedEpisodeDuplicates(t, st)
	bus := &recordingBus{}
	d := NewDeduper(st, bus)

	report, err := d.DedupEpisodes(ctx, DedupOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	g := report.Groups[0]
	assert.Equal(t, "abcdefghijk", g.KeeperID)
	assert.Equal(t, []string{"legacy-row-1", "sheet-row-02"}, g.DuplicateIDs)
	assert.Equal(t, ReasonVideoID, g.Reason)
	assert.Equal(t, 1, report.LinksMoved)
	assert.Equal(t, 1, report.LinksDropped)
	assert.Equal(t, 2, report.Deleted)
	assert.True(t, report.DryRun)

	eps, err := st.ListEpisodes(ctx, store.EpisodeFilter{})
	require.NoError(t, err)
	assert.Len(t, eps, 5, "dry run leaves rows alone")
	assert.Empty(t, bus.Events())

	report, err = d.DedupEpisodes(ctx, DedupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deleted)

	eps, err = st.ListEpisodes(ctx, store.EpisodeFilter{})
	require.NoError(t, err)
	require.Len(t, eps, 3)
	keeper := eps[0]
	assert.Equal(t, "abcdefghijk", keeper.ID)
	assert.Equal(t, "from the sheet", keeper.Description)
	assert.Equal(t, int64(999), keeper.ViewCount)

	links, err := st.ListEpisodeLocations(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "l1", links[0].ID)
	assert.Equal(t, "abcdefghijk", links[0].EpisodeID)
	assert.Equal(t, "l3", links[1].ID)

	events := bus.Events()
	require.Len(t, events, 1)
	assert.Equal(t, event.EventDedupCompleted, events[0].Type)
	assert.Equal(t, event.DedupCompleted{Kind: "episodes", Deleted: 2}, events[0].Payload)

	report, err = d.DedupEpisodes(ctx, DedupOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assert.Len(t, bus.Events(), 1)
}

func TestDeduper_DedupEpisodesKeepsSeparateUploads(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.UpsertEpisodes(ctx, []model.Episode{
		{ID: "aaaaaaaaaaa", CelebrityID: "c1", Title: "【前編】渋谷で大食い", Date: ptrTime("2024-06-01T10:00:00Z"), Platform: model.PlatformYouTube},
		{ID: "bbbbbbbbbbb", CelebrityID: "c1", Title: "【後編】渋谷で大食い", Date: ptrTime("2024-06-01T18:00:00Z"), Platform: model.PlatformYouTube},
		{ID: "legacy-ep-01", CelebrityID: "c1", Title: "ドラマ 第1話", Date: ptrTime("2024-06-02T10:00:00Z"), Platform: model.PlatformYouTube},
		{ID: "legacy-ep-02", CelebrityID: "c1", Title: "ドラマ 第2話", Date: ptrTime("2024-06-02T10:00:00Z"), Platform: model.PlatformYouTube},
	}))
	require.NoError(t, st.UpsertEpisodeLocations(ctx, []model.EpisodeLocation{
		{ID: "l1", EpisodeID: "bbbbbbbbbbb", LocationID: "locA"},
	}))

	d := NewDeduper(st, nil)
	for range 2 {
		report, err := d.DedupEpisodes(ctx, DedupOptions{})
		require.NoError(t, err)
		assert.Empty(t, report.Groups)
		assert.Zero(t, report.Deleted)
	}

	eps, err := st.ListEpisodes(ctx, store.EpisodeFilter{})
	require.NoError(t, err)
	assert.Len(t, eps, 4)
	links, err := st.ListEpisodeLocations(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "bbbbbbbbbbb", links[0].EpisodeID)
}

func TestJoinTitleMatches(t *testing.T) {
	// 0 and 1 are different uploads, 2 has no video id and joins 0
	uf := newUnionFind(4)
	uf.joinTitleMatches([]string{"k", "k", "k", "other"}, []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "", ""})
	assert.Equal(t, [][]int{{0, 2}}, uf.groups())
	assert.Equal(t, ReasonTitleDate, uf.reason[0])

	uf = newUnionFind(3)
	uf.joinTitleMatches([]string{"k", "k", ""}, []string{"", "", ""})
	assert.Equal(t, [][]int{{0, 1}}, uf.groups())
}

func TestDeduper_DedupEpisodesScopedToCelebrity(t *testing.T) {
	st := newTestStore(t)
	seedEpisodeDuplicates(t, st)

	report, err := NewDeduper(st, nil).DedupEpisodes(context.Background(), DedupOptions{CelebrityID: "c2"})
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assert.Zero(t, report.Deleted)
}

func TestDeduper_DedupLocations(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tabelog := "https://tabelog.com/tokyo/A1312/A131204/13122633/"
	require.NoError(t, st.UpsertLocations(ctx, []model.Location{
		{ID: "loc-a", Name: "ラーメン 一燈", Slug: "a", Address: "東京都葛飾区東新小岩1-4-17", TabelogURL: tabelog,
			AffiliateInfo: model.AffiliateInfo{Tabelog: &model.TabelogAffiliate{URL: tabelog, OriginalURL: tabelog}}},
		{ID: "loc-b", Name: "ラーメン一燈", Slug: "b", Address: "〒124-0024 東京都葛飾区東新小岩1-4-17", Phone: "03-1234-5678",
			Tags: []string{"ramen"}},
		{ID: "loc-c", Name: "一燈 新小岩店", Slug: "c", TabelogURL: "https://s.tabelog.com/tokyo/A1312/A131204/13122633/?lid=x"},
		{ID: "loc-d", Name: "スタバ", Slug: "d", Latitude: 35.0000, Longitude: 139.0000},
		{ID: "loc-e", Name: "スタバ", Slug: "e", Latitude: 35.0002, Longitude: 139.0002},
		{ID: "loc-f", Name: "スタバ", Slug: "f", Latitude: 35.0100, Longitude: 139.0000},
	}))
	require.NoError(t, st.UpsertEpisodeLocations(ctx, []model.EpisodeLocation{
		{ID: "k1", EpisodeID: "ep1", LocationID: "loc-b"},
		{ID: "k2", EpisodeID: "ep1", LocationID: "loc-a"},
		{ID: "k3", EpisodeID: "ep2", LocationID: "loc-c"},
	}))

	bus := &recordingBus{}
	report, err := NewDeduper(st, bus).DedupLocations(ctx, DedupOptions{})
	require.NoError(t, err)
	require.Len(t, report.Groups, 2)

	assert.Equal(t, "loc-a", report.Groups[0].KeeperID)
	assert.Equal(t, []string{"loc-b", "loc-c"}, report.Groups[0].DuplicateIDs)
	assert.Equal(t, ReasonNameAddr, report.Groups[0].Reason)

	assert.Equal(t, "loc-d", report.Groups[1].KeeperID)
	assert.Equal(t, []string{"loc-e"}, report.Groups[1].DuplicateIDs)
	assert.Equal(t, ReasonNearby, report.Groups[1].Reason)

	assert.Equal(t, 3, report.Deleted)
	assert.Equal(t, 1, report.LinksMoved)
	assert.Equal(t, 1, report.LinksDropped)

	locs, err := st.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 3)
	assert.Equal(t, "loc-a", locs[0].ID)
	assert.Equal(t, "03-1234-5678", locs[0].Phone)
	assert.Equal(t, []string{"ramen"}, locs[0].Tags)
	assert.Equal(t, "loc-d", locs[1].ID)
	assert.Equal(t, "loc-f", locs[2].ID)

	links, err := st.ListEpisodeLocations(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)
	for _, l := range links {
		assert.Equal(t, "loc-a", l.LocationID)
	}

	require.Len(t, bus.Events(), 1)
	assert.Equal(t, event.DedupCompleted{Kind: "locations", Deleted: 3}, bus.Events()[0].Payload)
}

func TestRemapLinks(t *testing.T) {
	links := []model.EpisodeLocation{
		{ID: "b", EpisodeID: "dup", LocationID: "x"},
		{ID: "a", EpisodeID: "dup2", LocationID: "x"},
		{ID: "c", EpisodeID: "keep", LocationID: "y"},
	}
	moved, dropped := remapLinks(links, map[string]string{"dup": "keep", "dup2": "keep"}, true)
	require.Len(t, moved, 1)
	assert.Equal(t, "a", moved[0].ID)
	assert.Equal(t, "keep", moved[0].EpisodeID)
	assert.Equal(t, []string{"b"}, dropped)
}

func TestHaversineAndJapan(t *testing.T) {
	// Tokyo station to Shinjuku station, about 6.1km
	d := haversineMeters(35.681236, 139.767125, 35.690921, 139.700258)
	assert.InDelta(t, 6150, d, 200)
	assert.True(t, inJapan(35.68, 139.76))
	assert.False(t, inJapan(10, 10))
}
