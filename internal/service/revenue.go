package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/oshikatsu-collection/oshidata/internal/affiliate"
	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/store"
)

const topLocations = 10

// Assumptions drive the monthly revenue model:
// views = base + views_per_episode * linked episodes, then ctr, cvr and commission.
type Assumptions struct {
	BaseMonthlyViews float64 `json:"base_monthly_views"`
	ViewsPerEpisode  float64 `json:"views_per_episode"`
	ClickThroughRate float64 `json:"click_through_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	CommissionYen    float64 `json:"commission_yen"`
}

func AssumptionsFromConfig(c config.RevenueConfig) Assumptions {
	return Assumptions{
		BaseMonthlyViews: c.BaseMonthlyViews,
		ViewsPerEpisode:  c.ViewsPerEpisode,
		ClickThroughRate: c.ClickThroughRate,
		ConversionRate:   c.ConversionRate,
		CommissionYen:    c.CommissionYen,
	}
}

func (a Assumptions) views(episodes int) float64 {
	return a.BaseMonthlyViews + a.ViewsPerEpisode*float64(episodes)
}

// revenue is the monthly yen for a page with the given views.
func (a Assumptions) revenue(views float64) float64 {
	return views * a.ClickThroughRate * a.ConversionRate * a.CommissionYen
}

var scenarios = []struct {
	name string
	mult float64
}{
	{"conservative", 0.5},
	{"realistic", 1.0},
	{"optimistic", 2.0},
}

type Scenario struct {
	Name         string  `json:"name"`
	Multiplier   float64 `json:"multiplier"`
	Views        float64 `json:"monthly_views"`
	Clicks       float64 `json:"monthly_clicks"`
	Reservations float64 `json:"monthly_reservations"`
	RevenueYen   float64 `json:"monthly_revenue_yen"`
	AnnualYen    float64 `json:"annual_revenue_yen"`
}

type LocationRevenue struct {
	LocationID   string   `json:"location_id"`
	Name         string   `json:"name"`
	Episodes     int      `json:"episodes"`
	Celebrities  []string `json:"celebrities"`
	MonthlyViews float64  `json:"monthly_views"`
	RevenueYen   float64  `json:"monthly_revenue_yen"`
}

type CelebrityRevenue struct {
	CelebrityID string  `json:"celebrity_id"`
	Name        string  `json:"name"`
	Locations   int     `json:"locations"`
	RevenueYen  float64 `json:"monthly_revenue_yen"`
}

type RevenueReport struct {
	Assumptions        Assumptions        `json:"assumptions"`
	Scenarios          []Scenario         `json:"scenarios"`
	ByCelebrity        []CelebrityRevenue `json:"by_celebrity"`
	TopLocations       []LocationRevenue  `json:"top_locations"`
	MonetizedCount     int                `json:"monetized_count"`
	OpportunityCount   int                `json:"opportunity_count"`
	OpportunityRevenue float64            `json:"opportunity_revenue_yen"`
}

type RevenueEstimator struct {
	store       store.Store
	assumptions Assumptions
}

func NewRevenueEstimator(st store.Store, a Assumptions) *RevenueEstimator {
	return &RevenueEstimator{store: st, assumptions: a}
}

// Estimate projects monthly affiliate revenue from locations with an active
// tabelog link. Food locations without one are reported as opportunity.
func (r *RevenueEstimator) Estimate(ctx context.Context) (*RevenueReport, error) {
	locs, err := r.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	eps, err := r.store.ListEpisodes(ctx, store.EpisodeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	links, err := r.store.ListEpisodeLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episode_locations: %w", err)
	}
	celebs, err := r.store.ListCelebrities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list celebrities: %w", err)
	}

	celebOfEpisode := make(map[string]string, len(eps))
	for _, e := range eps {
		celebOfEpisode[e.ID] = e.CelebrityID
	}
	celebName := make(map[string]string, len(celebs))
	for _, c := range celebs {
		celebName[c.ID] = c.Name
	}
	episodesOf := map[string]map[string]bool{}
	for _, l := range links {
		if _, ok := celebOfEpisode[l.EpisodeID]; !ok {
			continue // orphan
		}
		if episodesOf[l.LocationID] == nil {
			episodesOf[l.LocationID] = map[string]bool{}
		}
		episodesOf[l.LocationID][l.EpisodeID] = true
	}

	a := r.assumptions
	report := &RevenueReport{Assumptions: a}
	byCeleb := map[string]*CelebrityRevenue{}
	var totalViews, totalRevenue float64
	var monetized []LocationRevenue

	for _, loc := range locs {
		lr := LocationRevenue{LocationID: loc.ID, Name: loc.Name, Episodes: len(episodesOf[loc.ID])}
		lr.MonthlyViews = a.views(lr.Episodes)
		lr.RevenueYen = a.revenue(lr.MonthlyViews)
		lr.Celebrities = celebritiesOf(episodesOf[loc.ID], celebOfEpisode)

		switch {
		case affiliate.HasActiveTabelog(loc):
			report.MonetizedCount++
			totalViews += lr.MonthlyViews
			totalRevenue += lr.RevenueYen
			monetized = append(monetized, lr)
			if n := len(lr.Celebrities); n > 0 {
				share := lr.RevenueYen / float64(n)
				for _, id := range lr.Celebrities {
					cr := byCeleb[id]
					if cr == nil {
						cr = &CelebrityRevenue{CelebrityID: id, Name: celebName[id]}
						byCeleb[id] = cr
					}
					cr.Locations++
					cr.RevenueYen += share
				}
			}
		case model.IsFoodCategory(loc.Category):
			report.OpportunityCount++
			report.OpportunityRevenue += lr.RevenueYen
		}
	}

	for _, sc := range scenarios {
		views := totalViews * sc.mult
		clicks := views * a.ClickThroughRate
		monthly := totalRevenue * sc.mult
		report.Scenarios = append(report.Scenarios, Scenario{
			Name:         sc.name,
			Multiplier:   sc.mult,
			Views:        views,
			Clicks:       clicks,
			Reservations: clicks * a.ConversionRate,
			RevenueYen:   monthly,
			AnnualYen:    monthly * 12,
		})
	}

	sort.Slice(monetized, func(i, j int) bool {
		if monetized[i].RevenueYen != monetized[j].RevenueYen {
			return monetized[i].RevenueYen > monetized[j].RevenueYen
		}
		return monetized[i].Name < monetized[j].Name
	})
	if len(monetized) > topLocations {
		monetized = monetized[:topLocations]
	}
	report.TopLocations = monetized

	for _, cr := range byCeleb {
		report.ByCelebrity = append(report.ByCelebrity, *cr)
	}
	sort.Slice(report.ByCelebrity, func(i, j int) bool {
		bi, bj := report.ByCelebrity[i], report.ByCelebrity[j]
		if bi.RevenueYen != bj.RevenueYen {
			return bi.RevenueYen > bj.RevenueYen
		}
		return bi.CelebrityID < bj.CelebrityID
	})
	return report, nil
}

func celebritiesOf(episodes map[string]bool, celebOfEpisode map[string]string) []string {
	seen := map[string]bool{}
	var out []string
	for ep := range episodes {
		id := celebOfEpisode[ep]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
