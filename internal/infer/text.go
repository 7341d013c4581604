package infer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/family-events/internal/model"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	breakRe = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|li|h[1-6])>`)
)

// CollapseSpace folds every whitespace run into a single space and trims.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// StripHTML renders markup as plain text with entities decoded and
// whitespace collapsed. Input that is not HTML passes through collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CollapseSpace(s)
	}
	s = breakRe.ReplaceAllString(s, "\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CollapseSpace(s)
	}
	return CollapseSpace(doc.Text())
}

// Truncate caps s at limit characters without splitting a multi-byte rune.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

// Description cleans and caps a description for the catalog.
func Description(s string) string {
	return Truncate(CollapseSpace(s), model.MaxDescriptionLen)
}

// TitleCase upper-cases the first letter of each dash or space separated
// word, used for slugs that have no gazetteer entry.
func TitleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == ' ' || r == '_' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
