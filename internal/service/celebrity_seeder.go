package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/parser"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
	"gopkg.in/yaml.v3"
)

// CelebritySeed is one entry of data/seeds/celebrities.yaml.
type CelebritySeed struct {
	Name             string `yaml:"name"`
	Slug             string `yaml:"slug"`
	Type             string `yaml:"type"`
	Status           string `yaml:"status"`
	GroupName        string `yaml:"group_name"`
	YouTubeChannelID string `yaml:"youtube_channel_id"`
	TMDBID           int    `yaml:"tmdb_id"`
	Image            string `yaml:"image_url"`
	Bio              string `yaml:"bio"`
}

func LoadCelebritySeeds(path string) ([]CelebritySeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Celebrities []CelebritySeed `yaml:"celebrities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Celebrities, nil
}

type SeedResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type CelebritySeeder struct {
	store store.Store
	yt    YouTubeAPI // optional
}

func NewCelebritySeeder(st store.Store, yt YouTubeAPI) *CelebritySeeder {
	return &CelebritySeeder{store: st, yt: yt}
}

// Seed upserts seeds keyed by slug. Existing rows keep their id.
func (s *CelebritySeeder) Seed(ctx context.Context, seeds []CelebritySeed, dryRun bool) (*SeedResult, error) {
	existing, err := s.store.ListCelebrities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list celebrities: %w", err)
	}
	bySlug := make(map[string]model.Celebrity, len(existing))
	for _, c := range existing {
		bySlug[c.Slug] = c
	}

	res := &SeedResult{}
	seen := map[string]bool{}
	var rows []model.Celebrity

	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if strings.TrimSpace(seed.Name) == "" && seed.YouTubeChannelID == "" {
			res.fail(fmt.Sprintf("seed #%d: name or youtube_channel_id is required", i+1))
			continue
		}

		var ch *youtube.Channel
		if s.yt != nil && seed.YouTubeChannelID != "" {
			ch, err = performWithRetry(ctx, func() (*youtube.Channel, error) {
				return s.yt.GetChannel(ctx, seed.YouTubeChannelID)
			})
			if err != nil {
				if youtube.IsQuotaExceeded(err) {
					return res, err
				}
				// keep the seed data, stats can be filled on the next run
				logger.L().Warnf("CelebritySeeder: channel %s lookup failed: %v", seed.YouTubeChannelID, err)
				res.Errors = append(res.Errors, fmt.Sprintf("%s: channel lookup: %v", seed.YouTubeChannelID, err))
			} else if ch == nil {
				logger.L().Warnf("CelebritySeeder: channel %s not found", seed.YouTubeChannelID)
				res.Errors = append(res.Errors, fmt.Sprintf("%s: channel not found", seed.YouTubeChannelID))
			}
		}

		name := strings.TrimSpace(seed.Name)
		if name == "" && ch != nil {
			name = ch.Snippet.Title
		}
		if name == "" {
			res.fail(fmt.Sprintf("seed #%d: no name and channel lookup failed", i+1))
			continue
		}

		slug := seed.Slug
		if slug == "" {
			slug = parser.Slugify(name, "celeb")
		}
		if seen[slug] {
			res.fail(fmt.Sprintf("seed #%d: duplicate slug %q", i+1, slug))
			continue
		}
		seen[slug] = true

		row, ok := bySlug[slug]
		if ok {
			res.Updated++
		} else {
			row = model.Celebrity{ID: uuid.New().String(), Slug: slug}
			res.Created++
		}
		applyCelebritySeed(&row, seed, name)
		if ch != nil {
			applyChannel(&row, ch)
		}
		rows = append(rows, row)
	}

	if dryRun {
		logger.L().Infof("CelebritySeeder: dry run, %d rows not written", len(rows))
		return res, nil
	}
	if err := s.store.UpsertCelebrities(ctx, rows); err != nil {
		return res, fmt.Errorf("upsert celebrities: %w", err)
	}
	logger.L().Infof("CelebritySeeder: %d created, %d updated, %d failed", res.Created, res.Updated, res.Failed)
	return res, nil
}

func (r *SeedResult) fail(msg string) {
	r.Failed++
	r.Errors = append(r.Errors, msg)
	logger.L().Warnf("CelebritySeeder: %s", msg)
}

func applyCelebritySeed(c *model.Celebrity, seed CelebritySeed, name string) {
	c.Name = name
	setIfNotEmpty(&c.Type, seed.Type)
	setIfNotEmpty(&c.Status, seed.Status)
	setIfNotEmpty(&c.GroupName, seed.GroupName)
	setIfNotEmpty(&c.YouTubeChannelID, seed.YouTubeChannelID)
	setIfNotEmpty(&c.Image, seed.Image)
	setIfNotEmpty(&c.Bio, seed.Bio)
	if seed.TMDBID != 0 {
		c.TMDBID = seed.TMDBID
	}
	if c.Status == "" {
		c.Status = model.StatusActive
	}
	if c.Type == "" {
		c.Type = "other"
		if c.YouTubeChannelID != "" {
			c.Type = "youtuber"
		}
	}
}

func applyChannel(c *model.Celebrity, ch *youtube.Channel) {
	if c.Image == "" {
		c.Image = ch.Snippet.Thumbnails.Best()
	}
	if c.Bio == "" {
		c.Bio = strings.TrimSpace(ch.Snippet.Description)
	}
	if !ch.Statistics.HiddenSubscriberCount {
		c.SubscriberCount = ch.Statistics.SubscriberCount
	}
	c.VideoCount = ch.Statistics.VideoCount
	c.ViewCount = ch.Statistics.ViewCount
}

func setIfNotEmpty(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
