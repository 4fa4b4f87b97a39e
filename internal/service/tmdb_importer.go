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
	"github.com/oshikatsu-collection/oshidata/internal/tmdb"
	"golang.org/x/sync/errgroup"
)

const seasonConcurrency = 3

type TMDBImporter struct {
	store store.Store
	tmdb  TMDBAPI
	bus   event.Bus
}

func NewTMDBImporter(st store.Store, client TMDBAPI, bus event.Bus) *TMDBImporter {
	return &TMDBImporter{store: st, tmdb: client, bus: bus}
}

// TMDBEpisodeID is the stable episode id for a TV episode.
func TMDBEpisodeID(showID, season, episode int) string {
	return fmt.Sprintf("tmdb_%d_s%02de%02d", showID, season, episode)
}

// ImportShow turns every regular season episode of celeb's TV show into episodes.
func (s *TMDBImporter) ImportShow(ctx context.Context, celeb model.Celebrity, dryRun bool) (*ImportResult, error) {
	if celeb.TMDBID == 0 {
		return nil, fmt.Errorf("celebrity %s has no tmdb_id", celeb.Slug)
	}
	res := &ImportResult{CelebrityID: celeb.ID, Name: celeb.Name}

	show, err := performWithRetry(ctx, func() (*tmdb.TVShow, error) {
		return s.tmdb.GetTVDetails(ctx, celeb.TMDBID)
	})
	if err != nil {
		return nil, fmt.Errorf("tv %d: %w", celeb.TMDBID, err)
	}
	if show == nil {
		return nil, fmt.Errorf("tv %d: empty response", celeb.TMDBID)
	}
	if show.ID == 0 {
		// ids and urls must never come out as tmdb_0_...
		fixed := *show
		fixed.ID = celeb.TMDBID
		show = &fixed
	}

	var numbers []int
	for _, season := range show.Seasons {
		// season 0 holds specials
		if season.SeasonNumber > 0 {
			numbers = append(numbers, season.SeasonNumber)
		}
	}

	seasons := make([]*tmdb.Season, len(numbers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seasonConcurrency)
	for i, n := range numbers {
		g.Go(func() error {
			season, err := performWithRetry(gctx, func() (*tmdb.Season, error) {
				return s.tmdb.GetSeasonDetails(gctx, show.ID, n)
			})
			if err != nil {
				return fmt.Errorf("season %d: %w", n, err)
			}
			seasons[i] = season
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	existing, err := s.store.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: celeb.ID})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	byID := make(map[string]model.Episode, len(existing))
	for _, e := range existing {
		byID[e.ID] = e
	}

	var rows []model.Episode
	for i, season := range seasons {
		for _, te := range season.Episodes {
			res.Fetched++
			sn := te.SeasonNumber
			if sn == 0 {
				sn = numbers[i]
			}
			ep := episodeFromTMDB(celeb.ID, show, sn, te)
			old, ok := byID[ep.ID]
			switch {
			case !ok:
				res.New++
			case sameEpisode(old, ep) && sameDate(old.Date, ep.Date):
				res.Skipped++
				continue
			default:
				if old.Category != "" {
					ep.Category = old.Category
				}
				ep.CreatedAt = old.CreatedAt
				res.Updated++
			}
			rows = append(rows, ep)
		}
	}

	if dryRun || len(rows) == 0 {
		return res, nil
	}
	if err := s.store.UpsertEpisodes(ctx, rows); err != nil {
		return nil, fmt.Errorf("upsert episodes: %w", err)
	}
	if s.bus != nil {
		s.bus.Publish(event.EventEpisodesImported, event.EpisodesImported{
			CelebrityID: celeb.ID,
			Source:      model.PlatformTMDB,
			Count:       len(rows),
		})
	}
	logger.L().Infof("TMDBImporter: %s (%s) new=%d updated=%d", show.Name, celeb.Name, res.New, res.Updated)
	return res, nil
}

// LinkShow searches TMDB for a TV show by title and stores its id on celeb.
func (s *TMDBImporter) LinkShow(ctx context.Context, celeb *model.Celebrity, query string, dryRun bool) (*tmdb.TVShow, error) {
	show, err := performWithRetry(ctx, func() (*tmdb.TVShow, error) {
		return s.tmdb.SearchTV(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("search tv %q: %w", query, err)
	}
	if show == nil || show.ID == 0 {
		return nil, fmt.Errorf("no TV show matches %q", query)
	}
	if celeb.TMDBID == show.ID {
		return show, nil
	}
	logger.L().Infof("TMDBImporter: linking %s to %s (%d)", celeb.Name, show.Name, show.ID)
	celeb.TMDBID = show.ID
	if dryRun {
		return show, nil
	}
	if err := s.store.UpsertCelebrities(ctx, []model.Celebrity{*celeb}); err != nil {
		return nil, fmt.Errorf("upsert celebrity: %w", err)
	}
	return show, nil
}

// EnrichCelebrity fills a missing profile image and person id from TMDB.
// It reports whether celeb changed; saving is up to the caller.
func (s *TMDBImporter) EnrichCelebrity(ctx context.Context, celeb *model.Celebrity) (bool, error) {
	if celeb.Image != "" && celeb.TMDBPersonID != 0 {
		return false, nil
	}
	person, err := performWithRetry(ctx, func() (*tmdb.Person, error) {
		return s.tmdb.SearchPerson(ctx, celeb.Name)
	})
	if err != nil {
		return false, err
	}
	if person == nil {
		logger.L().Debugf("TMDBImporter: no person match for %s", celeb.Name)
		return false, nil
	}

	changed := false
	if celeb.TMDBPersonID == 0 {
		celeb.TMDBPersonID = person.ID
		changed = true
	}
	if celeb.Image == "" && person.ProfilePath != "" {
		celeb.Image = person.ProfilePath
		changed = true
	}
	return changed, nil
}

// EnrichAll runs EnrichCelebrity over every celebrity and saves the changed ones.
func (s *TMDBImporter) EnrichAll(ctx context.Context, dryRun bool) (int, error) {
	celebs, err := s.store.ListCelebrities(ctx)
	if err != nil {
		return 0, fmt.Errorf("list celebrities: %w", err)
	}
	var changed []model.Celebrity
	for i := range celebs {
		ok, err := s.EnrichCelebrity(ctx, &celebs[i])
		if err != nil {
			if ctx.Err() != nil {
				return len(changed), err
			}
			logger.L().Warnf("TMDBImporter: enrich %s: %v", celebs[i].Name, err)
			continue
		}
		if ok {
			changed = append(changed, celebs[i])
		}
	}
	if dryRun || len(changed) == 0 {
		return len(changed), nil
	}
	if err := s.store.UpsertCelebrities(ctx, changed); err != nil {
		return 0, fmt.Errorf("upsert celebrities: %w", err)
	}
	return len(changed), nil
}

func episodeFromTMDB(celebrityID string, show *tmdb.TVShow, season int, te tmdb.Episode) model.Episode {
	title := strings.TrimSpace(fmt.Sprintf("%s S%02dE%02d %s", show.Name, season, te.EpisodeNumber, te.Name))
	ep := model.Episode{
		ID:           TMDBEpisodeID(show.ID, season, te.EpisodeNumber),
		CelebrityID:  celebrityID,
		Title:        title,
		Description:  te.Overview,
		VideoURL:     fmt.Sprintf("https://www.themoviedb.org/tv/%d/season/%d/episode/%d", show.ID, season, te.EpisodeNumber),
		ThumbnailURL: te.StillPath,
		DurationSec:  te.Runtime * 60,
		Platform:     model.PlatformTMDB,
		Category:     classify.GuessEpisodeCategory(title, te.Overview),
	}
	if te.StillPath == "" {
		ep.ThumbnailURL = show.PosterPath
	}
	if d, err := time.Parse("2006-01-02", te.AirDate); err == nil {
		ep.Date = &d
	}
	return ep
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
