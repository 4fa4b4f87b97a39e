package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/affiliate"
	"github.com/oshikatsu-collection/oshidata/internal/classify"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/parser"
	"github.com/oshikatsu-collection/oshidata/internal/store"
)

// Issue codes reported by the auditor.
const (
	IssueLocationMissingAddress     = "location_missing_address"
	IssueLocationMissingCoordinates = "location_missing_coordinates"
	IssueLocationOutsideJapan       = "location_coordinates_outside_japan"
	IssueLocationMissingCategory    = "location_missing_category"
	IssueRestaurantWithoutTabelog   = "restaurant_without_tabelog"
	IssueTabelogInvalidURL          = "tabelog_invalid_url"
	IssueAffiliateMissing           = "affiliate_missing"
	IssueNonFoodWithTabelog         = "non_food_with_tabelog"
	IssueLocationDuplicateName      = "location_duplicate_name"
	IssueLocationWithoutEpisodes    = "location_without_episodes"
	IssueEpisodeMissingThumbnail    = "episode_missing_thumbnail"
	IssueEpisodeMissingDate         = "episode_missing_date"
	IssueEpisodeUnknownCelebrity    = "episode_unknown_celebrity"
	IssueEpisodeDuplicateTitle      = "episode_duplicate_title"
	IssueLinkOrphanEpisode          = "link_orphan_episode"
	IssueLinkOrphanLocation         = "link_orphan_location"
	IssueCelebrityWithoutEpisodes   = "celebrity_without_episodes"
)

const (
	EntityCelebrity = "celebrity"
	EntityEpisode   = "episode"
	EntityLocation  = "location"
	EntityLink      = "link"
)

type Issue struct {
	Code   string `json:"code"`
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

type KindScore struct {
	Total int     `json:"total"`
	Clean int     `json:"clean"`
	Score float64 `json:"score"`
}

type AuditReport struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Issues      map[string][]Issue   `json:"issues"`
	Scores      map[string]KindScore `json:"scores"`
	Overall     float64              `json:"overall"`
	Grade       string               `json:"grade"`
}

// Codes returns issue codes present in the report, sorted.
func (r *AuditReport) Codes() []string {
	codes := make([]string, 0, len(r.Issues))
	for c := range r.Issues {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func (r *AuditReport) IssueCount() int {
	n := 0
	for _, list := range r.Issues {
		n += len(list)
	}
	return n
}

// Auditor is the final data-quality check run before a release of the dataset.
type Auditor struct {
	store store.Store
	Now   func() time.Time
}

func NewAuditor(st store.Store) *Auditor {
	return &Auditor{store: st, Now: time.Now}
}

type auditState struct {
	report *AuditReport
	dirty  map[string]map[string]bool // entity -> id
}

func (a *auditState) add(code, entity, id, name, detail string) {
	a.report.Issues[code] = append(a.report.Issues[code], Issue{Code: code, Entity: entity, ID: id, Name: name, Detail: detail})
	if a.dirty[entity] == nil {
		a.dirty[entity] = map[string]bool{}
	}
	a.dirty[entity][id] = true
}

func (s *Auditor) Audit(ctx context.Context) (*AuditReport, error) {
	celebs, err := s.store.ListCelebrities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list celebrities: %w", err)
	}
	eps, err := s.store.ListEpisodes(ctx, store.EpisodeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	locs, err := s.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	links, err := s.store.ListEpisodeLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episode_locations: %w", err)
	}

	st := &auditState{
		report: &AuditReport{GeneratedAt: s.Now().UTC(), Issues: map[string][]Issue{}, Scores: map[string]KindScore{}},
		dirty:  map[string]map[string]bool{},
	}

	celebIDs := map[string]bool{}
	for _, c := range celebs {
		celebIDs[c.ID] = true
	}
	epIDs := map[string]bool{}
	episodesPerCeleb := map[string]int{}
	for _, e := range eps {
		epIDs[e.ID] = true
		episodesPerCeleb[e.CelebrityID]++
	}
	locIDs := map[string]bool{}
	for _, l := range locs {
		locIDs[l.ID] = true
	}
	linksPerLocation := map[string]int{}
	for _, l := range links {
		linksPerLocation[l.LocationID]++
	}

	auditLocations(st, locs, linksPerLocation)
	auditEpisodes(st, eps, celebIDs)

	for _, l := range links {
		if !epIDs[l.EpisodeID] {
			st.add(IssueLinkOrphanEpisode, EntityLink, l.ID, "", "episode "+l.EpisodeID)
		}
		if !locIDs[l.LocationID] {
			st.add(IssueLinkOrphanLocation, EntityLink, l.ID, "", "location "+l.LocationID)
		}
	}
	for _, c := range celebs {
		if episodesPerCeleb[c.ID] == 0 {
			st.add(IssueCelebrityWithoutEpisodes, EntityCelebrity, c.ID, c.Name, "")
		}
	}

	for code := range st.report.Issues {
		list := st.report.Issues[code]
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}

	totals := map[string]int{
		EntityCelebrity: len(celebs),
		EntityEpisode:   len(eps),
		EntityLocation:  len(locs),
		EntityLink:      len(links),
	}
	allTotal, allClean := 0, 0
	for kind, total := range totals {
		clean := total - len(st.dirty[kind])
		st.report.Scores[kind] = KindScore{Total: total, Clean: clean, Score: percent(clean, total)}
		allTotal += total
		allClean += clean
	}
	st.report.Overall = percent(allClean, allTotal)
	st.report.Grade = Grade(st.report.Overall)
	return st.report, nil
}

func auditLocations(st *auditState, locs []model.Location, links map[string]int) {
	byName := map[string][]model.Location{}
	for _, l := range locs {
		if n := parser.NormalizeName(l.Name); n != "" {
			byName[n] = append(byName[n], l)
		}
	}

	for _, l := range locs {
		if strings.TrimSpace(l.Address) == "" {
			st.add(IssueLocationMissingAddress, EntityLocation, l.ID, l.Name, "")
		}
		if !l.HasCoordinates() {
			st.add(IssueLocationMissingCoordinates, EntityLocation, l.ID, l.Name, "")
		} else if !inJapan(l.Latitude, l.Longitude) {
			st.add(IssueLocationOutsideJapan, EntityLocation, l.ID, l.Name, fmt.Sprintf("%.5f,%.5f", l.Latitude, l.Longitude))
		}
		if l.Category == "" {
			st.add(IssueLocationMissingCategory, EntityLocation, l.ID, l.Name, "")
		}

		validTabelog := affiliate.IsTabelogURL(l.TabelogURL)
		if model.IsFoodCategory(l.Category) && l.TabelogURL == "" {
			st.add(IssueRestaurantWithoutTabelog, EntityLocation, l.ID, l.Name, "")
		}
		if l.TabelogURL != "" && !validTabelog {
			st.add(IssueTabelogInvalidURL, EntityLocation, l.ID, l.Name, l.TabelogURL)
		}
		if validTabelog && !affiliate.HasActiveTabelog(l) {
			st.add(IssueAffiliateMissing, EntityLocation, l.ID, l.Name, "")
		}
		if l.TabelogURL != "" {
			if v := classify.Classify(l); v.Kind == classify.KindNonFood {
				st.add(IssueNonFoodWithTabelog, EntityLocation, l.ID, l.Name, strings.Join(v.Score.Reasons, "; "))
			}
		}
		if same := byName[parser.NormalizeName(l.Name)]; len(same) > 1 {
			st.add(IssueLocationDuplicateName, EntityLocation, l.ID, l.Name, fmt.Sprintf("%d rows share this name", len(same)))
		}
		if links[l.ID] == 0 {
			st.add(IssueLocationWithoutEpisodes, EntityLocation, l.ID, l.Name, "")
		}
	}
}

func auditEpisodes(st *auditState, eps []model.Episode, celebIDs map[string]bool) {
	titles := map[string]int{}
	for _, e := range eps {
		titles[e.CelebrityID+"|"+parser.NormalizeName(parser.CleanTitle(e.Title))]++
	}

	for _, e := range eps {
		if e.ThumbnailURL == "" {
			st.add(IssueEpisodeMissingThumbnail, EntityEpisode, e.ID, e.Title, "")
		}
		if e.Date == nil || e.Date.IsZero() {
			st.add(IssueEpisodeMissingDate, EntityEpisode, e.ID, e.Title, "")
		}
		if !celebIDs[e.CelebrityID] {
			st.add(IssueEpisodeUnknownCelebrity, EntityEpisode, e.ID, e.Title, e.CelebrityID)
		}
		key := parser.NormalizeName(parser.CleanTitle(e.Title))
		if key != "" && titles[e.CelebrityID+"|"+key] > 1 {
			st.add(IssueEpisodeDuplicateTitle, EntityEpisode, e.ID, e.Title, "")
		}
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(part) * 100 / float64(total)
}

// Grade maps a 0-100 score to a letter.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	}
	return "D"
}
