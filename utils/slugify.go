package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const slugMaxLen = 80

// Slugify turns a display name into a filesystem-safe export slug: diacritics
// stripped (NFKD), lowercased, whitespace to underscores, everything outside
// [a-z0-9_-] dropped, separator runs collapsed. Empty results fall back to
// "instance".
func Slugify(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	b.Grow(len(decomposed))
	lastSep := true
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		case unicode.IsSpace(r), r == '_':
			if !lastSep {
				b.WriteByte('_')
				lastSep = true
			}
		case r == '-':
			if !lastSep {
				b.WriteByte('-')
				lastSep = true
			}
		}
	}

	slug := strings.Trim(b.String(), "_-")
	if len(slug) > slugMaxLen {
		slug = strings.Trim(slug[:slugMaxLen], "_-")
	}
	if slug == "" {
		return "instance"
	}
	return slug
}
