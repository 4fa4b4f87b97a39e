package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/oshikatsu-collection/oshidata/internal/affiliate"
	"github.com/oshikatsu-collection/oshidata/internal/classify"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/store"
)

// Change is one field rewrite made by the cleaner.
type Change struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	Field      string `json:"field"`
	From       string `json:"from"`
	To         string `json:"to"`
	Reason     string `json:"reason"`
}

type CleanupReport struct {
	Changes     []Change `json:"changes"`
	Updated     int      `json:"updated"`      // locations rewritten
	OrphanLinks []string `json:"orphan_links"` // episode_locations ids removed
	DryRun      bool     `json:"dry_run"`
}

// Cleaner is the second pass after seeding: it fixes categories and
// affiliate data the classifier disagrees with and removes orphan links.
type Cleaner struct {
	store   store.Store
	builder affiliate.Builder
}

func NewCleaner(st store.Store, builder affiliate.Builder) *Cleaner {
	return &Cleaner{store: st, builder: builder}
}

func (c *Cleaner) Run(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	locs, err := c.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	report := &CleanupReport{DryRun: dryRun}

	var updated []model.Location
	for _, loc := range locs {
		changes := c.cleanLocation(&loc)
		if len(changes) == 0 {
			continue
		}
		report.Changes = append(report.Changes, changes...)
		updated = append(updated, loc)
	}
	report.Updated = len(updated)

	orphans, err := c.orphanLinks(ctx, locs)
	if err != nil {
		return nil, err
	}
	report.OrphanLinks = orphans

	if dryRun {
		return report, nil
	}
	if err := c.store.UpsertLocations(ctx, updated); err != nil {
		return report, fmt.Errorf("upsert locations: %w", err)
	}
	if err := c.store.DeleteEpisodeLocations(ctx, orphans); err != nil {
		return report, fmt.Errorf("delete orphan links: %w", err)
	}
	logger.L().Infof("Cleaner: %d locations updated, %d changes, %d orphan links removed",
		report.Updated, len(report.Changes), len(orphans))
	return report, nil
}

func (c *Cleaner) cleanLocation(loc *model.Location) []Change {
	var changes []Change
	record := func(field, from, to, reason string) {
		changes = append(changes, Change{LocationID: loc.ID, Name: loc.Name, Field: field, From: from, To: to, Reason: reason})
	}

	if v := strings.TrimSpace(loc.Name); v != loc.Name {
		record("name", loc.Name, v, "whitespace")
		loc.Name = v
	}
	if v := strings.TrimSpace(loc.Address); v != loc.Address {
		record("address", loc.Address, v, "whitespace")
		loc.Address = v
	}

	if loc.TabelogURL != "" {
		norm, err := affiliate.NormalizeTabelogURL(loc.TabelogURL)
		switch {
		case err != nil:
			record("tabelog_url", loc.TabelogURL, "", "invalid tabelog url")
			loc.TabelogURL = ""
		case norm != loc.TabelogURL:
			record("tabelog_url", loc.TabelogURL, norm, "normalized")
			loc.TabelogURL = norm
		}
	}

	verdict := classify.Classify(*loc)
	if verdict.Kind == classify.KindNonFood && loc.TabelogURL != "" {
		record("tabelog_url", loc.TabelogURL, "", fmt.Sprintf("non-food location (score %d)", verdict.Score.Value))
		loc.TabelogURL = ""
	}

	switch {
	case verdict.Kind != classify.KindUncertain && verdict.Category != "" && verdict.Category != loc.Category:
		// a generic "other" never replaces a specific category
		if verdict.Category == model.CategoryOther && loc.Category != "" {
			break
		}
		record("category", loc.Category, verdict.Category, fmt.Sprintf("classifier %s (score %d)", verdict.Kind, verdict.Score.Value))
		loc.Category = verdict.Category
	case verdict.Kind == classify.KindUncertain && loc.Category == "":
		if guess := classify.GuessLocationCategory(loc.Name, loc.Description); guess != model.CategoryOther {
			record("category", "", guess, "keyword guess")
			loc.Category = guess
		}
	}

	aff := loc.AffiliateInfo.Tabelog
	switch {
	case loc.TabelogURL == "" && aff != nil:
		record("affiliate_info", aff.URL, "", "no tabelog url")
		loc.AffiliateInfo.Tabelog = nil
	case loc.TabelogURL != "" && (aff == nil || aff.URL == "" || aff.OriginalURL != loc.TabelogURL):
		built, err := c.builder.Build(loc.TabelogURL)
		if err == nil {
			from := ""
			if aff != nil {
				from = aff.URL
			}
			record("affiliate_info", from, built.URL, "rebuilt affiliate link")
			loc.AffiliateInfo.Tabelog = built
		}
	}
	return changes
}

// orphanLinks returns ids of links whose episode or location no longer exists.
func (c *Cleaner) orphanLinks(ctx context.Context, locs []model.Location) ([]string, error) {
	links, err := c.store.ListEpisodeLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episode_locations: %w", err)
	}
	if len(links) == 0 {
		return nil, nil
	}
	eps, err := c.store.ListEpisodes(ctx, store.EpisodeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	epIDs := make(map[string]bool, len(eps))
	for _, e := range eps {
		epIDs[e.ID] = true
	}
	locIDs := make(map[string]bool, len(locs))
	for _, l := range locs {
		locIDs[l.ID] = true
	}

	var orphans []string
	for _, l := range links {
		if !epIDs[l.EpisodeID] || !locIDs[l.LocationID] {
			orphans = append(orphans, l.ID)
		}
	}
	return orphans, nil
}
