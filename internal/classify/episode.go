package classify

import (
	"strings"
)

const CategoryOther = "その他"

type keywordRule struct {
	Category string
	Keywords []string
}

// Order matters: the first rule with a hit wins.
var episodeRules = []keywordRule{
	{"グルメ", []string{"大食い", "食べ", "ラーメン", "寿司", "焼肉", "カフェ", "スイーツ", "ランチ", "ディナー", "モッパン", "グルメ", "飯", "食堂", "居酒屋", "mukbang", "eating"}},
	{"旅行", []string{"旅行", "旅", "観光", "温泉", "ホテル", "聖地巡礼", "日帰り", "trip", "travel"}},
	{"ショッピング", []string{"購入品", "爆買い", "開封", "買い物", "ショッピング", "haul", "unboxing"}},
	{"料理", []string{"料理", "レシピ", "作ってみた", "手作り", "cooking", "recipe"}},
	{"ゲーム", []string{"ゲーム", "実況", "マイクラ", "マインクラフト", "ポケモン", "スプラ", "gameplay", "minecraft"}},
	{"歌ってみた", []string{"歌ってみた", "cover", "カバー", "弾いてみた"}},
	{"ライブ", []string{"ライブ", "live", "ツアー", "コンサート", "ステージ", "配信"}},
	{"コラボ", []string{"コラボ", "共演", "feat", "collab"}},
	{"ドッキリ", []string{"ドッキリ", "いたずら", "prank"}},
	{"Vlog", []string{"vlog", "ルーティン", "日常", "一日", "密着"}},
}

// GuessEpisodeCategory picks a category from keyword hits. Title hits take
// precedence over description hits.
func GuessEpisodeCategory(title, description string) string {
	if c := matchRules(episodeRules, title); c != "" {
		return c
	}
	if c := matchRules(episodeRules, description); c != "" {
		return c
	}
	return CategoryOther
}

func matchRules(rules []keywordRule, text string) string {
	if text == "" {
		return ""
	}
	lower := maskPlaceNames(strings.ToLower(text))
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if containsKeyword(lower, kw) {
				return r.Category
			}
		}
	}
	return ""
}
