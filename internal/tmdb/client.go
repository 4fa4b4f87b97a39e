package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	BaseURL      = "https://api.themoviedb.org/3"
	ImageBaseURL = "https://image.tmdb.org/t/p/w500" // Use w500 for posters
)

type Client struct {
	client   *resty.Client
	limiter  *rate.Limiter
	Token    string
	Language string
}

func NewClient(token string, proxyURL string) *Client {
	c := resty.New()
	c.SetTimeout(10 * time.Second)
	c.SetBaseURL(BaseURL)
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	c.SetHeader("Authorization", "Bearer "+token)
	c.SetHeader("Content-Type", "application/json")

	return &Client{
		client:   c,
		limiter:  rate.NewLimiter(rate.Limit(20), 1),
		Token:    token,
		Language: "ja-JP",
	}
}

// SetBaseURL points the client at another endpoint (tests).
func (c *Client) SetBaseURL(u string) {
	c.client.SetBaseURL(u)
}

// SetRateLimit caps requests per second. TMDB allows roughly 40/s.
func (c *Client) SetRateLimit(rps float64) {
	if rps > 0 {
		c.limiter.SetLimit(rate.Limit(rps))
	}
}

// APIError is a non-2xx TMDB answer.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("TMDB Error: %d %s", e.Status, e.Body)
}

type SearchResponse struct {
	Results []TVShow `json:"results"`
}

type TVShow struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name"`
	Overview         string   `json:"overview"`
	PosterPath       string   `json:"poster_path"`
	BackdropPath     string   `json:"backdrop_path"`
	FirstAirDate     string   `json:"first_air_date"`
	VoteAverage      float64  `json:"vote_average"`
	NumberOfSeasons  int      `json:"number_of_seasons"`
	NumberOfEpisodes int      `json:"number_of_episodes"`
	Seasons          []Season `json:"seasons"`
}

type Season struct {
	ID           int       `json:"id"`
	SeasonNumber int       `json:"season_number"`
	Name         string    `json:"name"`
	AirDate      string    `json:"air_date"`
	EpisodeCount int       `json:"episode_count"`
	PosterPath   string    `json:"poster_path"`
	Episodes     []Episode `json:"episodes"`
}

type Episode struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	StillPath     string `json:"still_path"`
	Runtime       int    `json:"runtime"` // minutes
}

type Person struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	OriginalName       string  `json:"original_name"`
	ProfilePath        string  `json:"profile_path"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("language", c.Language)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	resp, err := req.Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return json.Unmarshal(resp.Body(), out)
}

// SearchTV searches for a TV show by query
func (c *Client) SearchTV(ctx context.Context, query string) (*TVShow, error) {
	var result SearchResponse
	if err := c.get(ctx, "/search/tv", map[string]string{"query": query}, &result); err != nil {
		return nil, err
	}

	if len(result.Results) > 0 {
		show := result.Results[0]
		show.PosterPath = c.fixImage(show.PosterPath)
		show.BackdropPath = c.fixImage(show.BackdropPath)
		return &show, nil
	}

	return nil, nil // Not found
}

// GetTVDetails fetches details including the season list for a specific ID
func (c *Client) GetTVDetails(ctx context.Context, id int) (*TVShow, error) {
	var show TVShow
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", id), nil, &show); err != nil {
		return nil, err
	}

	show.PosterPath = c.fixImage(show.PosterPath)
	show.BackdropPath = c.fixImage(show.BackdropPath)
	for i := range show.Seasons {
		show.Seasons[i].PosterPath = c.fixImage(show.Seasons[i].PosterPath)
	}
	return &show, nil
}

// GetSeasonDetails fetches one season with its episodes.
func (c *Client) GetSeasonDetails(ctx context.Context, showID, season int) (*Season, error) {
	var s Season
	if err := c.get(ctx, fmt.Sprintf("/tv/%d/season/%d", showID, season), nil, &s); err != nil {
		return nil, err
	}
	s.PosterPath = c.fixImage(s.PosterPath)
	for i := range s.Episodes {
		s.Episodes[i].StillPath = c.fixImage(s.Episodes[i].StillPath)
	}
	return &s, nil
}

// SearchPerson returns the most popular person matching name.
func (c *Client) SearchPerson(ctx context.Context, name string) (*Person, error) {
	var result struct {
		Results []Person `json:"results"`
	}
	if err := c.get(ctx, "/search/person", map[string]string{"query": name}, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, nil // Not found
	}
	best := result.Results[0]
	for _, p := range result.Results[1:] {
		if p.Popularity > best.Popularity {
			best = p
		}
	}
	best.ProfilePath = c.fixImage(best.ProfilePath)
	return &best, nil
}

func (c *Client) fixImage(path string) string {
	if path == "" {
		return ""
	}
	return ImageBaseURL + path
}
