package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/modfin/henry/slicez"
)

var blankLine = regexp.MustCompile(`\n\s*\n`)

// Terms returns the distinct lower-cased query tokens longer than three characters.
func Terms(query string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens = slicez.Filter(tokens, func(t string) bool {
		return utf8.RuneCountInString(t) > 3
	})
	return slicez.Uniq(tokens)
}

// Coverage is the fraction of query terms found as substrings of the
// lower-cased content. ok is false when the query has no qualifying terms.
func Coverage(content, query string) (coverage float64, found []string, ok bool) {
	terms := Terms(query)
	if len(terms) == 0 {
		return 0, nil, false
	}
	lower := strings.ToLower(content)
	found = slicez.Filter(terms, func(t string) bool {
		return strings.Contains(lower, t)
	})
	return float64(len(found)) / float64(len(terms)), found, true
}

// Paragraphs counts the non-empty blocks of content separated by blank lines.
func Paragraphs(content string) int {
	blocks := blankLine.Split(strings.ReplaceAll(content, "\r\n", "\n"), -1)
	return len(slicez.Filter(blocks, func(b string) bool {
		return strings.TrimSpace(b) != ""
	}))
}

// Length is the content length in characters.
func Length(content string) int {
	return utf8.RuneCountInString(content)
}
