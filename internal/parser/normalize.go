package parser

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	rePostalCode = regexp.MustCompile(`^〒?\s*\d{3}-?\d{4}`)
	reSlugSep    = regexp.MustCompile(`[^a-z0-9]+`)
)

// punctuation that carries no identity in Japanese shop and title names
const ignorable = "・-_.,!?'\"()【】「」『』～~、。：:／/&＆"

// NormalizeName folds a name into a comparison key: NFKC, narrow ASCII,
// lowercase, no spaces or punctuation. "ＣＯＣＯ壱番屋 渋谷店" and
// "coco壱番屋渋谷店" produce the same key.
func NormalizeName(s string) string {
	s = norm.NFKC.String(s)
	s = width.Fold.String(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || strings.ContainsRune(ignorable, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeAddress is NormalizeName plus removal of the postal code and
// country prefix that some sources include.
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(norm.NFKC.String(s))
	s = rePostalCode.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "日本")
	if strings.HasPrefix(strings.ToLower(s), "japan") {
		s = s[len("japan"):]
	}
	s = strings.TrimLeft(s, "、, ")
	return NormalizeName(s)
}

// Slugify builds a URL slug. Names without any ASCII letters or digits
// (most Japanese names) get prefix plus a stable hash of the normalised name.
func Slugify(s, prefix string) string {
	folded := strings.ToLower(width.Fold.String(norm.NFKC.String(s)))
	slug := strings.Trim(reSlugSep.ReplaceAllString(folded, "-"), "-")
	if slug != "" && hasASCIIAlnum(s) {
		return slug
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(NormalizeName(s)))
	return fmt.Sprintf("%s-%08x", prefix, h.Sum32())
}

func hasASCIIAlnum(s string) bool {
	for _, r := range width.Fold.String(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return true
		}
	}
	return false
}
