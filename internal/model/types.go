package model

import (
	"time"
)

// Celebrity 代表一位推し (YouTuber, idol, actor or group)
type Celebrity struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug" gorm:"uniqueIndex"`
	Type             string     `json:"type"`   // youtuber, idol, actor, group, other
	Status           string     `json:"status"` // active, inactive
	GroupName        string     `json:"group_name"`
	YouTubeChannelID string     `json:"youtube_channel_id" gorm:"column:youtube_channel_id"`
	TMDBID           int        `json:"tmdb_id" gorm:"column:tmdb_id"`               // TV show id, 0 = none
	TMDBPersonID     int        `json:"tmdb_person_id" gorm:"column:tmdb_person_id"` // 0 = unknown
	Image            string     `json:"image_url" gorm:"column:image_url"`
	Bio              string     `json:"bio"`
	SubscriberCount  int64      `json:"subscriber_count"`
	VideoCount       int64      `json:"video_count"`
	ViewCount        int64      `json:"view_count"`
	CreatedAt        *time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

func (Celebrity) TableName() string { return "celebrities" }

// Episode 代表一集内容: a YouTube video or a TMDB TV episode
type Episode struct {
	ID           string     `json:"id" gorm:"primaryKey"` // video id or tmdb_<show>_sXXeYY
	CelebrityID  string     `json:"celebrity_id" gorm:"index"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Date         *time.Time `json:"date,omitempty"`
	VideoURL     string     `json:"video_url"`
	ThumbnailURL string     `json:"thumbnail_url"`
	DurationSec  int        `json:"duration_sec"`
	ViewCount    int64      `json:"view_count"`
	Platform     string     `json:"platform"` // youtube, tmdb
	Category     string     `json:"category"`
	CreatedAt    *time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

func (Episode) TableName() string { return "episodes" }

// Location 代表一个聖地 (filming location, restaurant, shop...)
type Location struct {
	ID            string        `json:"id" gorm:"primaryKey"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug" gorm:"index"`
	Address       string        `json:"address"`
	Latitude      float64       `json:"latitude"`  // 0 = unknown
	Longitude     float64       `json:"longitude"` // 0 = unknown
	Category      string        `json:"category"`  // restaurant, cafe, shop, tourist, hotel, other
	Description   string        `json:"description"`
	Phone         string        `json:"phone"`
	Website       string        `json:"website"`
	TabelogURL    string        `json:"tabelog_url"`
	AffiliateInfo AffiliateInfo `json:"affiliate_info" gorm:"serializer:json"`
	Tags          []string      `json:"tags" gorm:"serializer:json"`
	Image         string        `json:"image_url" gorm:"column:image_url"`
	CreatedAt     *time.Time    `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

func (Location) TableName() string { return "locations" }

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 && l.Longitude != 0
}

// AffiliateInfo is stored as a JSON column keyed by provider.
type AffiliateInfo struct {
	Tabelog *TabelogAffiliate `json:"tabelog,omitempty"`
}

type TabelogAffiliate struct {
	URL               string `json:"url"`
	OriginalURL       string `json:"original_url"`
	Provider          string `json:"provider"` // valuecommerce, linkswitch, direct
	LinkSwitchEnabled bool   `json:"linkswitch_enabled"`
	UpdatedAt         string `json:"updated_at"`
}

// EpisodeLocation links an episode to a location it visits.
type EpisodeLocation struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	EpisodeID  string     `json:"episode_id" gorm:"index"`
	LocationID string     `json:"location_id" gorm:"index"`
	Note       string     `json:"note"`
	CreatedAt  *time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
}

func (EpisodeLocation) TableName() string { return "episode_locations" }

const (
	PlatformYouTube = "youtube"
	PlatformTMDB    = "tmdb"

	StatusActive   = "active"
	StatusInactive = "inactive"

	CategoryRestaurant = "restaurant"
	CategoryCafe       = "cafe"
	CategoryShop       = "shop"
	CategoryTourist    = "tourist"
	CategoryHotel      = "hotel"
	CategoryOther      = "other"
)

// IsFoodCategory reports whether c is a category that can carry a tabelog link.
func IsFoodCategory(c string) bool {
	return c == CategoryRestaurant || c == CategoryCafe
}
