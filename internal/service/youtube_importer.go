package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/classify"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
	"golang.org/x/sync/errgroup"
)

type ImportOptions struct {
	MaxVideos     int       // 0 = whole uploads playlist
	Since         time.Time // zero = no cutoff
	IncludeShorts bool
	DryRun        bool
	// FeedPrecheck skips channels whose public feed shows nothing new.
	FeedPrecheck bool
	// Query limits the import to a keyword search inside the channel
	// (at most 50 hits) instead of walking the uploads playlist.
	Query string
}

type ImportResult struct {
	CelebrityID string `json:"celebrity_id"`
	Name        string `json:"name"`
	Fetched     int    `json:"fetched"`
	New         int    `json:"new"`
	Updated     int    `json:"updated"`
	Skipped     int    `json:"skipped"`
}

type YouTubeImporter struct {
	store       store.Store
	yt          YouTubeAPI
	bus         event.Bus
	Concurrency int
	Feed        FeedReader // optional, used by FeedPrecheck
}

func NewYouTubeImporter(st store.Store, yt YouTubeAPI, bus event.Bus) *YouTubeImporter {
	return &YouTubeImporter{store: st, yt: yt, bus: bus, Concurrency: 2}
}

// ImportCelebrity pulls the uploads playlist of celeb's channel (or the
// search hits for opts.Query) into episodes.
func (s *YouTubeImporter) ImportCelebrity(ctx context.Context, celeb model.Celebrity, opts ImportOptions) (*ImportResult, error) {
	if celeb.YouTubeChannelID == "" {
		return nil, fmt.Errorf("celebrity %s has no youtube_channel_id", celeb.Slug)
	}
	res := &ImportResult{CelebrityID: celeb.ID, Name: celeb.Name}

	if opts.FeedPrecheck && opts.Query == "" && s.Feed != nil {
		latest, fresh := s.feedHasNew(ctx, celeb)
		if !fresh {
			logger.L().Debugf("YouTubeImporter: %s feed has nothing new", celeb.Name)
			res.Skipped = latest
			return res, nil
		}
	}

	var ids []string
	if opts.Query != "" {
		found, err := performWithRetry(ctx, func() ([]string, error) {
			return s.yt.SearchChannelVideos(ctx, celeb.YouTubeChannelID, opts.Query, opts.MaxVideos)
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", celeb.YouTubeChannelID, err)
		}
		ids = found
	} else {
		uploads, err := s.uploadsPlaylist(ctx, celeb.YouTubeChannelID)
		if err != nil {
			return nil, err
		}
		if ids, err = s.collectVideoIDs(ctx, uploads, opts); err != nil {
			return nil, err
		}
	}
	logger.L().Infof("YouTubeImporter: %s has %d candidate videos", celeb.Name, len(ids))

	existing, err := s.store.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: celeb.ID})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	byID := make(map[string]model.Episode, len(existing))
	for _, e := range existing {
		byID[e.ID] = e
	}

	var rows []model.Episode
	for start := 0; start < len(ids); start += youtube.MaxIDsPerRequest {
		end := min(start+youtube.MaxIDsPerRequest, len(ids))
		batch := ids[start:end]
		videos, err := performWithRetry(ctx, func() ([]youtube.Video, error) {
			return s.yt.GetVideos(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("get videos: %w", err)
		}
		res.Fetched += len(videos)

		for _, v := range videos {
			ep := episodeFromVideo(celeb.ID, v)
			if youtube.IsShort(ep.DurationSec) && !opts.IncludeShorts {
				res.Skipped++
				continue
			}
			// search hits are not date ordered
			if !opts.Since.IsZero() && ep.Date != nil && ep.Date.Before(opts.Since) {
				res.Skipped++
				continue
			}
			old, ok := byID[ep.ID]
			switch {
			case !ok:
				res.New++
			case sameEpisode(old, ep):
				res.Skipped++
				continue
			default:
				if old.Category != "" {
					ep.Category = old.Category // manual edits win
				}
				ep.CreatedAt = old.CreatedAt
				res.Updated++
			}
			rows = append(rows, ep)
		}
	}

	if opts.DryRun || len(rows) == 0 {
		return res, nil
	}
	if err := s.store.UpsertEpisodes(ctx, rows); err != nil {
		return nil, fmt.Errorf("upsert episodes: %w", err)
	}
	if s.bus != nil {
		s.bus.Publish(event.EventEpisodesImported, event.EpisodesImported{
			CelebrityID: celeb.ID,
			Source:      model.PlatformYouTube,
			Count:       len(rows),
		})
	}
	logger.L().Infof("YouTubeImporter: %s new=%d updated=%d skipped=%d", celeb.Name, res.New, res.Updated, res.Skipped)
	return res, nil
}

// ImportAll imports every active celebrity with a channel. A quota error
// stops the run; other per-celebrity failures are logged and skipped.
func (s *YouTubeImporter) ImportAll(ctx context.Context, opts ImportOptions) ([]ImportResult, error) {
	celebs, err := s.store.ListCelebrities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list celebrities: %w", err)
	}
	var targets []model.Celebrity
	for _, c := range celebs {
		if c.YouTubeChannelID != "" && c.Status != model.StatusInactive {
			targets = append(targets, c)
		}
	}

	results := make([]*ImportResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))
	for i, c := range targets {
		g.Go(func() error {
			r, err := s.ImportCelebrity(gctx, c, opts)
			if err != nil {
				if youtube.IsQuotaExceeded(err) || gctx.Err() != nil {
					return err
				}
				logger.L().Errorf("YouTubeImporter: %s failed: %v", c.Name, err)
				return nil
			}
			results[i] = r
			return nil
		})
	}
	err = g.Wait()

	out := make([]ImportResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, err
}

// feedHasNew reports whether the channel feed lists a video not yet stored.
// Feed errors and empty feeds count as new so the API path still runs.
func (s *YouTubeImporter) feedHasNew(ctx context.Context, celeb model.Celebrity) (int, bool) {
	entries, err := s.Feed.Latest(ctx, celeb.YouTubeChannelID)
	if err != nil {
		logger.L().Warnf("YouTubeImporter: feed for %s: %v", celeb.Name, err)
		return 0, true
	}
	if len(entries) == 0 {
		return 0, true
	}
	existing, err := s.store.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: celeb.ID})
	if err != nil {
		return 0, true
	}
	known := make(map[string]bool, len(existing))
	for _, e := range existing {
		known[e.ID] = true
	}
	for _, e := range entries {
		if !known[e.VideoID] {
			return len(entries), true
		}
	}
	return len(entries), false
}

func (s *YouTubeImporter) uploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	ch, err := performWithRetry(ctx, func() (*youtube.Channel, error) {
		return s.yt.GetChannel(ctx, channelID)
	})
	if err != nil {
		return "", fmt.Errorf("get channel %s: %w", channelID, err)
	}
	if ch == nil {
		return "", fmt.Errorf("channel %s not found", channelID)
	}
	if up := ch.ContentDetails.RelatedPlaylists.Uploads; up != "" {
		return up, nil
	}
	// UCxxxx -> UUxxxx is the uploads playlist by convention
	if strings.HasPrefix(channelID, "UC") {
		return "UU" + channelID[2:], nil
	}
	return "", fmt.Errorf("channel %s has no uploads playlist", channelID)
}

// collectVideoIDs pages the uploads playlist (newest first) until MaxVideos
// or the first item older than Since.
func (s *YouTubeImporter) collectVideoIDs(ctx context.Context, playlistID string, opts ImportOptions) ([]string, error) {
	var ids []string
	seen := map[string]bool{}
	token := ""
	for {
		page, err := performWithRetry(ctx, func() (*youtube.PlaylistItemsPage, error) {
			return s.yt.ListPlaylistItems(ctx, playlistID, token)
		})
		if err != nil {
			return nil, fmt.Errorf("list playlist %s: %w", playlistID, err)
		}
		for _, it := range page.Items {
			published := it.ContentDetails.VideoPublishedAt
			if published.IsZero() {
				published = it.Snippet.PublishedAt
			}
			if !opts.Since.IsZero() && !published.IsZero() && published.Before(opts.Since) {
				return ids, nil
			}
			id := it.ContentDetails.VideoID
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			if opts.MaxVideos > 0 && len(ids) >= opts.MaxVideos {
				return ids, nil
			}
		}
		if page.NextPageToken == "" {
			return ids, nil
		}
		token = page.NextPageToken
	}
}

func episodeFromVideo(celebrityID string, v youtube.Video) model.Episode {
	dur, err := youtube.ParseISODuration(v.ContentDetails.Duration)
	if err != nil {
		dur = 0 // live streams report P0D or nothing
	}
	ep := model.Episode{
		ID:           v.ID,
		CelebrityID:  celebrityID,
		Title:        strings.TrimSpace(v.Snippet.Title),
		Description:  v.Snippet.Description,
		VideoURL:     youtube.WatchURL(v.ID),
		ThumbnailURL: v.Snippet.Thumbnails.Best(),
		DurationSec:  dur,
		ViewCount:    v.Statistics.ViewCount,
		Platform:     model.PlatformYouTube,
		Category:     classify.GuessEpisodeCategory(v.Snippet.Title, v.Snippet.Description),
	}
	if !v.Snippet.PublishedAt.IsZero() {
		t := v.Snippet.PublishedAt.UTC()
		ep.Date = &t
	}
	return ep
}

// sameEpisode reports whether nothing worth writing changed.
func sameEpisode(a, b model.Episode) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.ThumbnailURL == b.ThumbnailURL &&
		a.ViewCount == b.ViewCount &&
		a.DurationSec == b.DurationSec &&
		a.CelebrityID == b.CelebrityID
}
