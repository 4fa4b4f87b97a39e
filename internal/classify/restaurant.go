package classify

import (
	"fmt"
	"strings"

	"github.com/oshikatsu-collection/oshidata/internal/affiliate"
	"github.com/oshikatsu-collection/oshidata/internal/model"
)

var (
	foodKeywords = []string{
		"レストラン", "食堂", "ラーメン", "らーめん", "拉麺", "中華", "そば", "蕎麦", "うどん",
		"寿司", "鮨", "すし", "焼肉", "焼き鳥", "焼鳥", "居酒屋", "酒場", "ビストロ",
		"トラットリア", "イタリアン", "フレンチ", "カレー", "定食", "丼", "天ぷら", "とんかつ",
		"ステーキ", "ハンバーグ", "ハンバーガー", "餃子", "お好み焼き", "たこ焼き", "もんじゃ",
		"鍋", "しゃぶしゃぶ", "食べ放題", "ビュッフェ", "パン屋", "ベーカリー", "スイーツ", "パフェ",
		"restaurant", "ramen", "sushi", "bistro", "diner", "grill", "bakery", "burger",
	}
	cafeKeywords = []string{"カフェ", "喫茶", "珈琲", "コーヒー", "cafe", "café", "coffee", "tea room"}

	nonFoodKeywords = []string{
		"駅", "公園", "神社", "寺", "大社", "城", "美術館", "博物館", "水族館", "動物園",
		"御苑", "庭園", "ホテル", "旅館", "空港", "タワー", "スタジアム", "ドーム", "アリーナ", "劇場", "ホール",
		"橋", "海岸", "ビーチ", "展望台", "遊園地", "テーマパーク", "スタジオ", "学校", "大学",
		"ショップ", "ストア", "書店", "百貨店", "モール", "station", "park", "shrine", "temple",
		"museum", "hotel", "airport", "tower", "stadium", "store", "mall",
	}

	locationRules = []keywordRule{
		{model.CategoryHotel, []string{"ホテル", "旅館", "民宿", "宿坊", "湯宿", "宿泊", "hotel", "inn", "hostel"}},
		{model.CategoryCafe, cafeKeywords},
		{model.CategoryRestaurant, foodKeywords},
		{model.CategoryShop, []string{"ショップ", "ストア", "書店", "百貨店", "モール", "店舗", "store", "shop", "mall"}},
		{model.CategoryTourist, []string{"駅", "公園", "御苑", "庭園", "神社", "寺", "大社", "城", "美術館", "博物館", "水族館", "動物園", "タワー", "展望台", "海岸", "橋", "遊園地", "park", "shrine", "temple", "museum", "tower"}},
	}
)

// Score is the outcome of the restaurant heuristic. Reasons explains each
// contribution so reports can show why a row was flagged.
type Score struct {
	Value   int      `json:"value"`
	Reasons []string `json:"reasons"`
}

func (s *Score) add(delta int, reason string) {
	if delta == 0 {
		return
	}
	s.Value += delta
	s.Reasons = append(s.Reasons, fmt.Sprintf("%+d %s", delta, reason))
}

// ScoreRestaurant rates how likely loc is a place to eat.
func ScoreRestaurant(loc model.Location) Score {
	var s Score

	if affiliate.IsTabelogURL(loc.TabelogURL) {
		s.add(3, "tabelog url")
	}

	food := append(append([]string{}, foodKeywords...), cafeKeywords...)
	name := strings.ToLower(loc.Name)
	s.add(capped(2*countHits(name, food), 4), "food keyword in name")

	body := strings.ToLower(loc.Description + " " + strings.Join(loc.Tags, " "))
	s.add(capped(countHits(body, food), 2), "food keyword in description")

	if model.IsFoodCategory(loc.Category) {
		s.add(1, "food category")
	}

	s.add(-capped(3*countHits(name, nonFoodKeywords), 6), "non-food keyword in name")
	s.add(-capped(countHits(strings.ToLower(loc.Description), nonFoodKeywords), 2), "non-food keyword in description")

	return s
}

const (
	KindFood      = "food"
	KindNonFood   = "non_food"
	KindUncertain = "uncertain"
)

// Verdict is the classification derived from a Score.
type Verdict struct {
	Kind     string `json:"kind"`
	Category string `json:"category"` // suggested category, empty when uncertain
	Score    Score  `json:"score"`
}

// Classify decides whether loc is food, non-food or unclear and suggests a category.
func Classify(loc model.Location) Verdict {
	score := ScoreRestaurant(loc)
	v := Verdict{Kind: KindUncertain, Score: score}
	switch {
	case score.Value >= 3:
		v.Kind = KindFood
		v.Category = model.CategoryRestaurant
		if countHits(strings.ToLower(loc.Name+" "+loc.Description), cafeKeywords) > 0 {
			v.Category = model.CategoryCafe
		}
	case score.Value <= -2:
		v.Kind = KindNonFood
		v.Category = GuessLocationCategory(loc.Name, loc.Description)
		if model.IsFoodCategory(v.Category) {
			v.Category = model.CategoryOther
		}
	}
	return v
}

// GuessLocationCategory maps name and description keywords to a location category.
func GuessLocationCategory(name, description string) string {
	if c := matchRules(locationRules, name); c != "" {
		return c
	}
	if c := matchRules(locationRules, description); c != "" {
		return c
	}
	return model.CategoryOther
}

func countHits(text string, keywords []string) int {
	text = maskPlaceNames(text)
	n := 0
	for _, kw := range keywords {
		if containsKeyword(text, kw) {
			n++
		}
	}
	return n
}

func capped(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}
