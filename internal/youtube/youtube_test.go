package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"https://www.youtube.com/watch?v=aSMoF10iD-g", "aSMoF10iD-g"},
		{"https://youtu.be/aSMoF10iD-g", "aSMoF10iD-g"},
		{"https://www.youtube.com/embed/aSMoF10iD-g", "aSMoF10iD-g"},
		{"https://www.youtube.com/shorts/aSMoF10iD-g", "aSMoF10iD-g"},
		{"aSMoF10iD-g", "aSMoF10iD-g"},
		{" https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s ", "dQw4w9WgXcQ"},
	}
	for _, c := range cases {
		got, err := ExtractVideoID(c.input)
		require.NoError(t, err, c.input)
		assert.Equal(t, c.want, got, c.input)
	}

	_, err := ExtractVideoID("not-a-url")
	assert.Error(t, err)
}

func TestParseISODuration(t *testing.T) {
	cases := map[string]int{
		"PT45S":    45,
		"PT12M3S":  723,
		"PT1H":     3600,
		"PT1H2M3S": 3723,
		"P1DT1S":   86401,
		"P0D":      0,
	}
	for in, want := range cases {
		got, err := ParseISODuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "P", "PT", "12:03", "PT1X"} {
		_, err := ParseISODuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsShort(t *testing.T) {
	assert.True(t, IsShort(59))
	assert.True(t, IsShort(60))
	assert.False(t, IsShort(61))
	assert.False(t, IsShort(0))
}

func TestThumbnails_Best(t *testing.T) {
	th := Thumbnails{Default: &Thumbnail{URL: "d"}, High: &Thumbnail{URL: "h"}}
	assert.Equal(t, "h", th.Best())
	assert.Equal(t, "", Thumbnails{}.Best())
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("test-key", 1000)
	c.SetBaseURL(srv.URL)
	return c
}

func TestClient_GetChannel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		if r.URL.Query().Get("id") != "UC123" {
			w.Write([]byte(`{"items":[]}`))
			return
		}
		w.Write([]byte(`{"items":[{"id":"UC123","snippet":{"title":"Ch","thumbnails":{"high":{"url":"https://i/h.jpg"}}},
			"statistics":{"viewCount":"1000","subscriberCount":"50","videoCount":"7"},
			"contentDetails":{"relatedPlaylists":{"uploads":"UU123"}}}]}`))
	})

	ch, err := c.GetChannel(context.Background(), "UC123")
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "Ch", ch.Snippet.Title)
	assert.Equal(t, int64(50), ch.Statistics.SubscriberCount)
	assert.Equal(t, int64(7), ch.Statistics.VideoCount)
	assert.Equal(t, "UU123", ch.ContentDetails.RelatedPlaylists.Uploads)
	assert.Equal(t, "https://i/h.jpg", ch.Snippet.Thumbnails.Best())

	missing, err := c.GetChannel(context.Background(), "UCnope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_GetVideos(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "a1,b2", r.URL.Query().Get("id"))
		w.Write([]byte(`{"items":[{"id":"a1","snippet":{"title":"A","publishedAt":"2024-01-02T03:04:05Z"},
			"contentDetails":{"duration":"PT1M"},"statistics":{"viewCount":"99"}}]}`))
	})

	videos, err := c.GetVideos(context.Background(), []string{"a1", "b2"})
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "A", videos[0].Snippet.Title)
	assert.Equal(t, int64(99), videos[0].Statistics.ViewCount)
	assert.Equal(t, 2024, videos[0].Snippet.PublishedAt.Year())

	none, err := c.GetVideos(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = c.GetVideos(context.Background(), make([]string, MaxIDsPerRequest+1))
	assert.Error(t, err)
}

func TestClient_ListPlaylistItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"nextPageToken":"p2","items":[{"contentDetails":{"videoId":"v1"}}]}`))
			return
		}
		w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"v2"}}]}`))
	})

	first, err := c.ListPlaylistItems(context.Background(), "UU1", "")
	require.NoError(t, err)
	assert.Equal(t, "p2", first.NextPageToken)
	assert.Equal(t, "v1", first.Items[0].ContentDetails.VideoID)

	second, err := c.ListPlaylistItems(context.Background(), "UU1", first.NextPageToken)
	require.NoError(t, err)
	assert.Empty(t, second.NextPageToken)
	assert.Equal(t, "v2", second.Items[0].ContentDetails.VideoID)
}

func TestClient_QuotaError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`))
	})

	_, err := c.GetChannel(context.Background(), "UC1")
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.False(t, IsQuotaExceeded(assert.AnError))
}
