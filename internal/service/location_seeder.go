package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/oshikatsu-collection/oshidata/internal/affiliate"
	"github.com/oshikatsu-collection/oshidata/internal/classify"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/parser"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
	"gopkg.in/yaml.v3"
)

// LocationSeed is one entry of data/seeds/locations.yaml.
type LocationSeed struct {
	Name        string   `yaml:"name"`
	Address     string   `yaml:"address"`
	Lat         float64  `yaml:"lat"`
	Lng         float64  `yaml:"lng"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Phone       string   `yaml:"phone"`
	Website     string   `yaml:"website"`
	TabelogURL  string   `yaml:"tabelog_url"`
	Tags        []string `yaml:"tags"`
	Image       string   `yaml:"image_url"`
	Episodes    []string `yaml:"episodes"` // episode ids or YouTube URLs
	Note        string   `yaml:"note"`     // stored on every link
}

func LoadLocationSeeds(path string) ([]LocationSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Locations []LocationSeed `yaml:"locations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Locations, nil
}

type LocationSeedResult struct {
	Created         int      `json:"created"`
	Updated         int      `json:"updated"`
	LinksCreated    int      `json:"links_created"`
	MissingEpisodes []string `json:"missing_episodes,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

type LocationSeeder struct {
	store   store.Store
	builder affiliate.Builder
	bus     event.Bus
}

func NewLocationSeeder(st store.Store, builder affiliate.Builder, bus event.Bus) *LocationSeeder {
	return &LocationSeeder{store: st, builder: builder, bus: bus}
}

func locationKey(name, address string) string {
	n, a := parser.NormalizeName(name), parser.NormalizeAddress(address)
	if n == "" || a == "" {
		return ""
	}
	return n + "|" + a
}

// Seed upserts locations and links them to their episodes. Locations match
// existing rows by name+address, then by tabelog URL.
func (s *LocationSeeder) Seed(ctx context.Context, seeds []LocationSeed, dryRun bool) (*LocationSeedResult, error) {
	locs, err := s.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	episodes, err := s.store.ListEpisodes(ctx, store.EpisodeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	links, err := s.store.ListEpisodeLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episode_locations: %w", err)
	}

	byKey := map[string]*model.Location{}
	byTabelog := map[string]*model.Location{}
	slugs := map[string]bool{}
	index := func(l *model.Location) {
		if k := locationKey(l.Name, l.Address); k != "" {
			byKey[k] = l
		}
		if u, err := affiliate.NormalizeTabelogURL(l.TabelogURL); err == nil {
			byTabelog[u] = l
		}
		slugs[l.Slug] = true
	}
	for i := range locs {
		index(&locs[i])
	}

	episodeIDs := make(map[string]bool, len(episodes))
	for _, e := range episodes {
		episodeIDs[e.ID] = true
	}
	pairs := make(map[string]bool, len(links))
	for _, l := range links {
		pairs[l.EpisodeID+"|"+l.LocationID] = true
	}

	res := &LocationSeedResult{}
	touched := map[string]*model.Location{}
	var order []string
	var newLinks []model.EpisodeLocation

	for i, seed := range seeds {
		if strings.TrimSpace(seed.Name) == "" {
			res.warn(fmt.Sprintf("seed #%d: name is required", i+1))
			continue
		}

		tabelog := ""
		if seed.TabelogURL != "" {
			u, err := affiliate.NormalizeTabelogURL(seed.TabelogURL)
			if err != nil {
				res.warn(fmt.Sprintf("%s: dropping tabelog url: %v", seed.Name, err))
			} else {
				tabelog = u
			}
		}

		loc := byKey[locationKey(seed.Name, seed.Address)]
		if loc == nil && tabelog != "" {
			loc = byTabelog[tabelog]
		}
		if loc == nil {
			loc = &model.Location{ID: uuid.New().String(), Slug: uniqueSlug(parser.Slugify(seed.Name, "loc"), slugs)}
			res.Created++
		} else if touched[loc.ID] == nil {
			res.Updated++
		}

		applyLocationSeed(loc, seed, tabelog)
		if loc.TabelogURL != "" {
			aff := loc.AffiliateInfo.Tabelog
			if aff == nil || aff.OriginalURL != loc.TabelogURL {
				built, err := s.builder.Build(loc.TabelogURL)
				if err == nil {
					loc.AffiliateInfo.Tabelog = built
				}
			}
		}
		index(loc)
		if touched[loc.ID] == nil {
			order = append(order, loc.ID)
		}
		touched[loc.ID] = loc

		for _, ref := range seed.Episodes {
			epID, ok := resolveEpisodeRef(ref, episodeIDs)
			if !ok {
				res.MissingEpisodes = append(res.MissingEpisodes, ref)
				continue
			}
			pair := epID + "|" + loc.ID
			if pairs[pair] {
				continue
			}
			pairs[pair] = true
			newLinks = append(newLinks, model.EpisodeLocation{
				ID:         uuid.New().String(),
				EpisodeID:  epID,
				LocationID: loc.ID,
				Note:       seed.Note,
			})
			res.LinksCreated++
		}
	}

	if len(res.MissingEpisodes) > 0 {
		logger.L().Warnf("LocationSeeder: %d episode references not found", len(res.MissingEpisodes))
	}
	if dryRun {
		return res, nil
	}

	rows := make([]model.Location, 0, len(order))
	for _, id := range order {
		rows = append(rows, *touched[id])
	}
	if err := s.store.UpsertLocations(ctx, rows); err != nil {
		return res, fmt.Errorf("upsert locations: %w", err)
	}
	if err := s.store.UpsertEpisodeLocations(ctx, newLinks); err != nil {
		return res, fmt.Errorf("upsert episode_locations: %w", err)
	}
	if s.bus != nil {
		s.bus.Publish(event.EventLocationsSeeded, event.LocationsSeeded{
			Created: res.Created,
			Updated: res.Updated,
			Links:   res.LinksCreated,
		})
	}
	logger.L().Infof("LocationSeeder: %d created, %d updated, %d links", res.Created, res.Updated, res.LinksCreated)
	return res, nil
}

func (r *LocationSeedResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	logger.L().Warnf("LocationSeeder: %s", msg)
}

func applyLocationSeed(loc *model.Location, seed LocationSeed, tabelog string) {
	loc.Name = strings.TrimSpace(seed.Name)
	setIfNotEmpty(&loc.Address, seed.Address)
	if seed.Lat != 0 && seed.Lng != 0 {
		loc.Latitude, loc.Longitude = seed.Lat, seed.Lng
	}
	setIfNotEmpty(&loc.Category, seed.Category)
	setIfNotEmpty(&loc.Description, seed.Description)
	setIfNotEmpty(&loc.Phone, seed.Phone)
	setIfNotEmpty(&loc.Website, seed.Website)
	setIfNotEmpty(&loc.Image, seed.Image)
	if tabelog != "" {
		loc.TabelogURL = tabelog
	}
	loc.Tags = mergeTags(loc.Tags, seed.Tags)
	if loc.Category == "" {
		loc.Category = classify.GuessLocationCategory(loc.Name, loc.Description)
	}
}

// resolveEpisodeRef accepts an episode id or any YouTube URL form.
func resolveEpisodeRef(ref string, known map[string]bool) (string, bool) {
	ref = strings.TrimSpace(ref)
	if known[ref] {
		return ref, true
	}
	if id, err := youtube.ExtractVideoID(ref); err == nil && known[id] {
		return id, true
	}
	return "", false
}

func uniqueSlug(base string, taken map[string]bool) string {
	slug := base
	for n := 2; taken[slug]; n++ {
		slug = fmt.Sprintf("%s-%d", base, n)
	}
	taken[slug] = true
	return slug
}

// mergeTags appends the tags of b missing from a, keeping order.
func mergeTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range append(append([]string{}, a...), b...) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
