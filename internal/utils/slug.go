package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
var multiDash = regexp.MustCompile(`-+`)

// đ has no canonical decomposition, so it is mapped before stripping marks.
var letterReplacer = strings.NewReplacer("đ", "d", "Đ", "d", "'", "", "&", " and ", "/", " ")

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify turns a display name such as "Bảo dưỡng pin & sạc" into "bao-duong-pin-and-sac".
func Slugify(input string) string {
	s := letterReplacer.Replace(strings.TrimSpace(input))
	s = strings.ToLower(foldAccents(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = multiDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}
