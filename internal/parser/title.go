package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reBracketTags = regexp.MustCompile(`【.*?】|\[.*?\]|\(.*?\)|（.*?）|〔.*?〕`)
	reHashtag     = regexp.MustCompile(`[#＃][^\s#＃]+`)
	reSpaces      = regexp.MustCompile(`\s+`)
	reSuffixSep   = regexp.MustCompile(`\s*[|｜]\s*`)

	reSxxEyy    = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*E(\d{1,3})\b`)
	reJPEpisode = regexp.MustCompile(`第\s*(\d{1,4})\s*[話回]`)
	reEpTag     = regexp.MustCompile(`(?i)(?:\bEP\.?|＃|#)\s*(\d{1,4})\b`)
)

// CleanTitle strips decoration from a video title so that re-uploads and
// variants of the same episode compare equal:
// 【tags】, [tags], (notes), #hashtags and "| channel" suffixes.
func CleanTitle(raw string) string {
	s := raw

	// 1. Drop "| チャンネル名" style suffixes, keep the first non-empty segment
	parts := reSuffixSep.Split(s, -1)
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			s = p
			break
		}
	}

	// 2. Remove bracket content
	s = reBracketTags.ReplaceAllString(s, " ")

	// 3. Remove hashtags
	s = reHashtag.ReplaceAllString(s, " ")

	// 4. Cleanup: Remove extra spaces and leading/trailing dashes/spaces
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	s = strings.Trim(s, "-－ 　")

	if s == "" {
		return strings.TrimSpace(raw) // Fallback if we stripped everything
	}
	return s
}

// ParseSeasonEpisode extracts season and episode numbers from a title.
// Zero means "not present". Titles with only an episode marker get season 0.
func ParseSeasonEpisode(title string) (season, episode int) {
	if m := reSxxEyy.FindStringSubmatch(title); len(m) > 2 {
		season, _ = strconv.Atoi(m[1])
		episode, _ = strconv.Atoi(m[2])
		return season, episode
	}
	if m := reJPEpisode.FindStringSubmatch(title); len(m) > 1 {
		episode, _ = strconv.Atoi(m[1])
		return 0, episode
	}
	if m := reEpTag.FindStringSubmatch(title); len(m) > 1 {
		episode, _ = strconv.Atoi(m[1])
		return 0, episode
	}
	return 0, 0
}
