package infer

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/family-events/internal/model"
)

// Slug lowercases s, folds accents, collapses every run of non-alphanumerics
// into a single "-", trims separators from both ends, and caps the result at
// limit bytes (0 means no cap). The cap never leaves a trailing separator.
func Slug(s string, limit int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	out := b.String()
	if limit > 0 && len(out) > limit {
		out = strings.TrimRight(out[:limit], "-")
	}
	return out
}

// Id prefixes for each adapter.
const (
	PrefixParks   = "fcp"
	PrefixLibrary = "lib"
	PrefixMuseum  = "uh"
	PrefixFarm    = "gcf"
)

// Slug caps for titles and venue/campus disambiguators.
const (
	TitleSlugMax = 30
	VenueSlugMax = 10
)

// EventID joins a source prefix, a title slug and the non-empty
// disambiguators into a stable identifier.
func EventID(prefix, title string, titleMax int, parts ...string) string {
	segs := []string{prefix}
	if s := Slug(title, titleMax); s != "" {
		segs = append(segs, s)
	}
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, "-")
}

// MonthDay renders the compact "mar14" disambiguator.
func MonthDay(d model.Date) string {
	return fmt.Sprintf("%s%02d", MonthAbbrev(d.Month()), d.Day())
}

// MonthYear renders the compact "mar2026" disambiguator.
func MonthYear(d model.Date) string {
	return fmt.Sprintf("%s%d", MonthAbbrev(d.Month()), d.Year())
}

// CompactDate renders "20260314".
func CompactDate(d model.Date) string {
	return d.Format("20060102")
}
