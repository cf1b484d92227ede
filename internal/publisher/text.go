package publisher

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes markup tags from a description so it can be typed into a
// plain-text editor field.
func StripHTML(value string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(value, ""))
}

// FirstKeyword returns the first entry of a delimited keyword list. The form
// offers one field per keyword; additional keywords are entered manually.
func FirstKeyword(keywords string) string {
	for _, sep := range []string{";", ","} {
		if strings.Contains(keywords, sep) {
			return strings.TrimSpace(strings.SplitN(keywords, sep, 2)[0])
		}
	}
	return strings.TrimSpace(keywords)
}

// SplitAuthor divides an author name into the first/last name fields the
// form expects. A single-word name goes entirely into the first name field.
func SplitAuthor(author string) (first, last string) {
	trimmed := strings.TrimSpace(author)
	parts := strings.Fields(trimmed)
	if len(parts) <= 1 {
		return trimmed, ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// FormatPrice renders a major-unit price the way the pricing form expects.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

// DisplayLanguage normalizes a language value to the English display name
// used by the form's language dropdown. Values that already are display
// names, or that cannot be parsed as language tags, pass through unchanged.
func DisplayLanguage(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return trimmed
}
