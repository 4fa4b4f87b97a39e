package youtube

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	videoIDRegex  = regexp.MustCompile(`(?:v=|youtu\.be/|/embed/|/v/|/shorts/|/live/)([a-zA-Z0-9_-]{11})`)
	bareIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	durationRegex = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)
)

// ShortsMaxSeconds is the longest a video can be and still count as a Short.
const ShortsMaxSeconds = 60

// ExtractVideoID accepts a watch/short/embed URL or a bare 11 char id.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if bareIDRegex.MatchString(raw) {
		return raw, nil
	}
	if m := videoIDRegex.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("could not extract video ID from %q", raw)
}

// WatchURL is the canonical URL stored in episodes.video_url.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ParseISODuration converts an ISO 8601 duration (PT1H2M3S) to seconds.
func ParseISODuration(s string) (int, error) {
	m := durationRegex.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	mult := []int{86400, 3600, 60, 1}
	total := 0
	for i, part := range m[1:] {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, err
		}
		total += n * mult[i]
	}
	return total, nil
}

// IsShort reports whether a video of this length is a Short.
func IsShort(durationSec int) bool {
	return durationSec > 0 && durationSec <= ShortsMaxSeconds
}
