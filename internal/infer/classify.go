// Package infer holds the pure, source-agnostic inference rules that turn
// scraped text into canonical event fields.
package infer

import (
	"regexp"
	"strings"

	"github.com/sells-group/family-events/internal/model"
)

// Rule maps a keyword pattern to an activity tag.
type Rule struct {
	Pattern *regexp.Regexp
	Tag     model.ActivityType
}

// R compiles a case-insensitive rule. It panics on a bad pattern, so use it
// only for package-level tables.
func R(pattern string, tag model.ActivityType) Rule {
	return Rule{Pattern: regexp.MustCompile("(?i)" + pattern), Tag: tag}
}

// Classifier evaluates an ordered rule table against text and unions the
// matching tags. Default is applied when nothing matches.
type Classifier struct {
	Rules   []Rule
	Default model.ActivityType
}

// Classify returns the tags matched by title and description in first-match
// order, and whether the default tag had to be used.
func (c Classifier) Classify(title, description string) ([]model.ActivityType, bool) {
	text := strings.TrimSpace(title + " " + description)

	var tags []model.ActivityType
	seen := make(map[model.ActivityType]bool, len(c.Rules))
	for _, r := range c.Rules {
		if seen[r.Tag] || !r.Pattern.MatchString(text) {
			continue
		}
		seen[r.Tag] = true
		tags = append(tags, r.Tag)
	}
	if len(tags) == 0 {
		def := c.Default
		if def == "" {
			def = model.ActivityEducational
		}
		return []model.ActivityType{def}, true
	}
	return tags, false
}

var exertionScores = map[model.ActivityType]int{
	model.ActivityEducational:  1,
	model.ActivityHistory:      1,
	model.ActivityArts:         2,
	model.ActivityMusic:        2,
	model.ActivityScience:      2,
	model.ActivityNature:       3,
	model.ActivitySeasonal:     3,
	model.ActivityAdventure:    4,
	model.ActivityPhysicalPlay: 4,
}

// Exertion returns the highest base score across tags, 1 when there are none.
func Exertion(tags []model.ActivityType) int {
	best := 1
	for _, t := range tags {
		if s, ok := exertionScores[t]; ok && s > best {
			best = s
		}
	}
	return best
}
