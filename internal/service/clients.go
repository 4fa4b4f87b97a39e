package service

import (
	"context"

	"github.com/oshikatsu-collection/oshidata/internal/tmdb"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
	"github.com/oshikatsu-collection/oshidata/pkg/rss"
)

// YouTubeAPI is the part of youtube.Client the importers use.
type YouTubeAPI interface {
	GetChannel(ctx context.Context, channelID string) (*youtube.Channel, error)
	ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (*youtube.PlaylistItemsPage, error)
	GetVideos(ctx context.Context, ids []string) ([]youtube.Video, error)
	SearchChannelVideos(ctx context.Context, channelID, query string, max int) ([]string, error)
}

// TMDBAPI is the part of tmdb.Client the importers use.
type TMDBAPI interface {
	SearchTV(ctx context.Context, query string) (*tmdb.TVShow, error)
	GetTVDetails(ctx context.Context, id int) (*tmdb.TVShow, error)
	GetSeasonDetails(ctx context.Context, showID, season int) (*tmdb.Season, error)
	SearchPerson(ctx context.Context, name string) (*tmdb.Person, error)
}

// FeedReader lists the latest uploads from a channel's public feed.
type FeedReader interface {
	Latest(ctx context.Context, channelID string) ([]rss.Entry, error)
}

var (
	_ YouTubeAPI = (*youtube.Client)(nil)
	_ TMDBAPI    = (*tmdb.Client)(nil)
	_ FeedReader = (*rss.Reader)(nil)
)
