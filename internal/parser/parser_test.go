package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		Title    string
		Expected string
	}{
		{"【大食い】ラーメン10杯食べてみた | 〇〇チャンネル", "ラーメン10杯食べてみた"},
		{"[4K] 京都の朝ごはん巡り #京都 #vlog", "京都の朝ごはん巡り"},
		{"渋谷でカフェ巡り（前編）", "渋谷でカフェ巡り"},
		{"  ドッキリ大成功  ", "ドッキリ大成功"},
		{"【】", "【】"},
		{"｜開封動画｜ 新作グッズ", "開封動画"},
	}

	for _, c := range cases {
		got := CleanTitle(c.Title)
		if got != c.Expected {
			t.Errorf("CleanTitle(%q): expected %q, got %q", c.Title, c.Expected, got)
		}
	}
}

func TestParseSeasonEpisode(t *testing.T) {
	cases := []struct {
		Title   string
		Season  int
		Episode int
	}{
		{"Show S02E05 Title", 2, 5},
		{"第12話 最終回", 0, 12},
		{"旅の記録 #34", 0, 34},
		{"EP.7 京都編", 0, 7},
		{"no markers here", 0, 0},
	}
	for _, c := range cases {
		s, e := ParseSeasonEpisode(c.Title)
		assert.Equal(t, c.Season, s, c.Title)
		assert.Equal(t, c.Episode, e, c.Title)
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, NormalizeName("ＣＯＣＯ壱番屋 渋谷店"), NormalizeName("coco壱番屋渋谷店"))
	assert.Equal(t, NormalizeName("すし・ざんまい"), NormalizeName("すしざんまい"))
	assert.Equal(t, "cafeabc", NormalizeName("Cafe ABC!"))
	assert.NotEqual(t, NormalizeName("ラーメン二郎"), NormalizeName("ラーメン一郎"))
	// half-width katakana folds to full-width
	assert.Equal(t, NormalizeName("ラーメン"), NormalizeName("ﾗｰﾒﾝ"))
}

func TestNormalizeAddress(t *testing.T) {
	a := NormalizeAddress("〒150-0002 東京都渋谷区渋谷1-2-3")
	b := NormalizeAddress("日本、東京都渋谷区渋谷１－２－３")
	c := NormalizeAddress("Japan, 東京都渋谷区渋谷1-2-3")
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.True(t, strings.HasPrefix(a, "東京都"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hikakin-tv", Slugify("HIKAKIN TV", "celebrity"))
	assert.Equal(t, "abc-cafe", Slugify("ＡＢＣ　Cafe", "location"))

	jp := Slugify("すきやばし次郎", "location")
	assert.True(t, strings.HasPrefix(jp, "location-"), jp)
	assert.Len(t, jp, len("location-")+8)
	assert.Equal(t, jp, Slugify("すきやばし 次郎", "location"), "slug must be stable under spacing")
}
