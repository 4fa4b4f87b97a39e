package classify

import "strings"

// Place names that contain a category keyword without meaning it
// (新宿 is not an inn, ジャパン is not bread).
var placeNames = strings.NewReplacer(
	"新宿", "　",
	"原宿", "　",
	"吉祥寺", "　",
	"ジャパン", "　",
	"japan", " ",
)

func maskPlaceNames(text string) string {
	return placeNames.Replace(text)
}

// containsKeyword matches ASCII keywords on word boundaries ("inn" is not in
// "dinner") and everything else as a substring.
func containsKeyword(text, kw string) bool {
	if !isASCII(kw) {
		return strings.Contains(text, kw)
	}
	for start := 0; ; {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(kw)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
