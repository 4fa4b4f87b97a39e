package affiliate

import (
	"net/url"
	"testing"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTabelogURL(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://tabelog.com/tokyo/A1303/A130301/13000001/", "https://tabelog.com/tokyo/A1303/A130301/13000001/", false},
		{"http://tabelog.com/tokyo/A1303/A130301/13000001", "https://tabelog.com/tokyo/A1303/A130301/13000001/", false},
		{"https://s.tabelog.com/osaka/A2701/A270101/27000002/dtlmenu/?lid=x#top", "https://tabelog.com/osaka/A2701/A270101/27000002/", false},
		{"https://tabelog.com/en/kyoto/A2601/A260201/26000003/", "https://tabelog.com/kyoto/A2601/A260201/26000003/", false},
		{"tabelog.com/tokyo/A1301/A130101/13111111/", "https://tabelog.com/tokyo/A1301/A130101/13111111/", false},
		{"https://tabelog.com/tokyo/", "", true},
		{"https://example.com/tokyo/A1303/A130301/13000001/", "", true},
		{"https://tabelog.com.evil.jp/tokyo/A1303/A130301/13000001/", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := NormalizeTabelogURL(c.in)
		if c.wantErr {
			assert.Error(t, err, c.in)
			assert.False(t, IsTabelogURL(c.in), c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
		assert.True(t, IsTabelogURL(c.in), c.in)
	}
}

func TestBuilder_Build(t *testing.T) {
	fixed := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	raw := "https://tabelog.com/tokyo/A1303/A130301/13000001/?utm=1"

	t.Run("valuecommerce", func(t *testing.T) {
		b := Builder{SID: "3700000", PID: "888000000", LinkSwitch: true, Now: fixed}
		aff, err := b.Build(raw)
		require.NoError(t, err)
		assert.Equal(t, ProviderValueCommerce, aff.Provider)
		assert.Equal(t, "https://tabelog.com/tokyo/A1303/A130301/13000001/", aff.OriginalURL)
		assert.Equal(t, "2024-05-01T12:00:00Z", aff.UpdatedAt)

		u, err := url.Parse(aff.URL)
		require.NoError(t, err)
		assert.Equal(t, "ck.jp.ap.valuecommerce.com", u.Host)
		assert.Equal(t, "3700000", u.Query().Get("sid"))
		assert.Equal(t, "888000000", u.Query().Get("pid"))
		assert.Equal(t, aff.OriginalURL, u.Query().Get("vc_url"))
	})

	t.Run("linkswitch", func(t *testing.T) {
		aff, err := Builder{LinkSwitch: true, Now: fixed}.Build(raw)
		require.NoError(t, err)
		assert.Equal(t, ProviderLinkSwitch, aff.Provider)
		assert.Equal(t, aff.OriginalURL, aff.URL)
		assert.True(t, aff.LinkSwitchEnabled)
	})

	t.Run("direct", func(t *testing.T) {
		aff, err := Builder{}.Build(raw)
		require.NoError(t, err)
		assert.Equal(t, ProviderDirect, aff.Provider)
		assert.False(t, aff.LinkSwitchEnabled)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := Builder{LinkSwitch: true}.Build("https://example.com/")
		assert.Error(t, err)
	})
}

func TestHasActiveTabelog(t *testing.T) {
	assert.False(t, HasActiveTabelog(model.Location{}))
	assert.False(t, HasActiveTabelog(model.Location{AffiliateInfo: model.AffiliateInfo{Tabelog: &model.TabelogAffiliate{}}}))
	assert.True(t, HasActiveTabelog(model.Location{AffiliateInfo: model.AffiliateInfo{Tabelog: &model.TabelogAffiliate{URL: "https://tabelog.com/x"}}}))
}
