package worker

import (
	"context"
	"testing"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/db"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupWorker(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	st := store.NewGormStore(gdb)

	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertEpisodes(ctx, []model.Episode{
		{ID: "aaaaaaaaaaa", CelebrityID: "c1", Title: "【検証】激辛ラーメン", Date: &day, ThumbnailURL: "https://img/a.jpg"},
		{ID: "sheet-row-01", CelebrityID: "c1", Title: "激辛ラーメン", Date: &day}, // no video id
		{ID: "ccccccccccc", CelebrityID: "c2", Title: "激辛ラーメン", Date: &day},
		{ID: "ddddddddddd", CelebrityID: "c2", Title: "激辛ラーメン #shorts", Date: &day},
	}))

	bus := event.NewInMemoryBus()
	w := NewDedupWorker(bus, service.NewDeduper(st, nil))
	w.Start()

	// ignored: wrong payload and empty imports
	bus.Publish(event.EventEpisodesImported, "not a payload")
	bus.Publish(event.EventEpisodesImported, event.EpisodesImported{CelebrityID: "c2", Count: 0})

	bus.Publish(event.EventEpisodesImported, event.EpisodesImported{CelebrityID: "c1", Source: model.PlatformYouTube, Count: 2})

	assert.Eventually(t, func() bool {
		eps, err := st.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: "c1"})
		return err == nil && len(eps) == 1
	}, 2*time.Second, 10*time.Millisecond)

	w.Stop()

	// c2 was never announced and unsubscribed workers do nothing
	bus.Publish(event.EventEpisodesImported, event.EpisodesImported{CelebrityID: "c2", Count: 2})
	time.Sleep(50 * time.Millisecond)
	eps, err := st.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: "c2"})
	require.NoError(t, err)
	assert.Len(t, eps, 2)
}

func TestDedupWorker_StopWaitsOrSkips(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	st := store.NewGormStore(gdb)

	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertEpisodes(ctx, []model.Episode{
		{ID: "aaaaaaaaaaa", CelebrityID: "c1", Title: "激辛ラーメン", Date: &day},
		{ID: "sheet-row-01", CelebrityID: "c1", Title: "激辛ラーメン", Date: &day},
	}))

	bus := event.NewInMemoryBus()
	w := NewDedupWorker(bus, service.NewDeduper(st, nil))
	w.Start()
	bus.Publish(event.EventEpisodesImported, event.EpisodesImported{CelebrityID: "c1", Count: 2})
	w.Stop()

	// whatever state Stop left behind must not change afterwards
	eps, err := st.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: "c1"})
	require.NoError(t, err)
	before := len(eps)
	time.Sleep(100 * time.Millisecond)
	eps, err = st.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, before, len(eps))

	// a handler reaching the worker after Stop does nothing
	w.handle(event.Event{Type: event.EventEpisodesImported, Payload: event.EpisodesImported{CelebrityID: "c1", Count: 2}})
	eps, err = st.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, before, len(eps))
}
