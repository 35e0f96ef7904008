package coverage

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleCaser = cases.Title(language.Und, cases.NoLower)
	lowerCaser = cases.Lower(language.Und)
	upperCaser = cases.Upper(language.Und)
)

// words splits an identifier on separators and case boundaries:
// "userCreatedEvent", "user_created-event" and "UserCreatedEvent" all give
// user, created, event (case preserved).
func words(s string) []string {
	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// Transform renders value in one of the named case styles. An empty or
// "none" style returns value unchanged.
func Transform(style, value string) string {
	parts := words(value)
	switch style {
	case "PascalCase":
		for i, w := range parts {
			parts[i] = titleCaser.String(lowerCaser.String(w))
		}
		return strings.Join(parts, "")
	case "camelCase":
		for i, w := range parts {
			if i == 0 {
				parts[i] = lowerCaser.String(w)
			} else {
				parts[i] = titleCaser.String(lowerCaser.String(w))
			}
		}
		return strings.Join(parts, "")
	case "snake_case":
		return lowerCaser.String(strings.Join(parts, "_"))
	case "kebab-case":
		return lowerCaser.String(strings.Join(parts, "-"))
	case "UPPER_CASE":
		return upperCaser.String(strings.Join(parts, "_"))
	case "lowercase":
		return lowerCaser.String(strings.Join(parts, ""))
	}
	return value
}
