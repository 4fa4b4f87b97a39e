// Package rss reads the public Atom feed YouTube publishes per channel.
// The feed lists the latest ~15 uploads and costs no Data API quota.
package rss

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const FeedBaseURL = "https://www.youtube.com"

type Feed struct {
	XMLName xml.Name `xml:"feed"`
	Title   string   `xml:"title"`
	Entries []Entry  `xml:"entry"`
}

type Entry struct {
	VideoID   string    `xml:"videoId"` // yt:videoId
	ChannelID string    `xml:"channelId"`
	Title     string    `xml:"title"`
	Published time.Time `xml:"published"`
	Updated   time.Time `xml:"updated"`
}

// Parse decodes a channel feed document.
func Parse(data []byte) (*Feed, error) {
	var f Feed
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return &f, nil
}

type Reader struct {
	client *resty.Client
}

func NewReader() *Reader {
	c := resty.New()
	c.SetTimeout(10 * time.Second)
	c.SetBaseURL(FeedBaseURL)
	// 默认 UA 偶尔会被拒
	c.SetHeader("User-Agent", "Mozilla/5.0 (compatible; oshidata/1.0)")
	return &Reader{client: c}
}

// SetBaseURL points the reader at another host (tests).
func (r *Reader) SetBaseURL(u string) {
	r.client.SetBaseURL(u)
}

// Latest returns the newest uploads of a channel, newest first.
func (r *Reader) Latest(ctx context.Context, channelID string) ([]Entry, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("channel_id", channelID).
		Get("/feeds/videos.xml")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("feed %s: bad status %s", channelID, resp.Status())
	}
	f, err := Parse(resp.Body())
	if err != nil {
		return nil, err
	}
	return f.Entries, nil
}
