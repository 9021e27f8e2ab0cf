package htmlutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var innerWhitespace = regexp.MustCompile(`\s+`)
var tagRegex = regexp.MustCompile(`<[^>]+>`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText turns text content into a single trimmed line, &nbsp; and friends
// count as whitespace.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = removeNonPrintable(text)
	text = strings.TrimSpace(text)
	text = innerWhitespace.ReplaceAllString(text, " ")
	return text
}

// StripTags removes every tag from an html fragment, unescapes entities
// and cleans up the whitespace that is left.
func StripTags(fragment string) string {
	text := tagRegex.ReplaceAllString(fragment, "")
	return CleanText(html.UnescapeString(text))
}
