package infer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/family-events/internal/model"
)

var (
	agePlusRe   = regexp.MustCompile(`(\d+)\s*\+`)
	ageRangeRe  = regexp.MustCompile(`(\d+)\s*(?:-|–|—|to)\s*(\d+)`)
	ageSingleRe = regexp.MustCompile(`(\d+)`)
	allAgesRe   = regexp.MustCompile(`(?i)all ages?|general|everyone`)
	adultsRe    = regexp.MustCompile(`(?i)adults?`)
)

// audienceAges maps categorical audience words to a fixed window. Order
// matters: the first matching word wins.
var audienceAges = []struct {
	re  *regexp.Regexp
	age model.AgeRange
}{
	{regexp.MustCompile(`(?i)bab(y|ies)|infant`), model.AgeRange{Min: 0, Max: 2}},
	{regexp.MustCompile(`(?i)toddler`), model.AgeRange{Min: 1, Max: 3}},
	{regexp.MustCompile(`(?i)preschool|pre-k`), model.AgeRange{Min: 3, Max: 5}},
	{regexp.MustCompile(`(?i)school[ -]age|children|kids`), model.AgeRange{Min: 5, Max: 12}},
	{regexp.MustCompile(`(?i)tween`), model.AgeRange{Min: 9, Max: 12}},
	{regexp.MustCompile(`(?i)teen`), model.AgeRange{Min: 13, Max: 18}},
	{regexp.MustCompile(`(?i)famil`), model.AllAges()},
}

// ParseAge interprets free age or audience text. It always returns a well
// formed range; matched is false when the text was empty or unrecognized and
// the all-ages default was used.
func ParseAge(text string) (age model.AgeRange, matched bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.AllAges(), false
	}
	if allAgesRe.MatchString(text) {
		return model.AllAges(), true
	}

	if m := agePlusRe.FindStringSubmatch(text); m != nil {
		return model.AgeRange{Min: atoi(m[1]), Max: model.MaxAge}.Normalize(), true
	}
	if m := ageRangeRe.FindStringSubmatch(text); m != nil {
		return model.AgeRange{Min: atoi(m[1]), Max: atoi(m[2])}.Normalize(), true
	}
	if m := ageSingleRe.FindStringSubmatch(text); m != nil {
		return model.AgeRange{Min: atoi(m[1]), Max: model.MaxAge}.Normalize(), true
	}

	adults := adultsRe.MatchString(text)
	for _, a := range audienceAges {
		if a.re.MatchString(text) {
			// "Adults and children" opens the child window up to the ceiling.
			if adults {
				return model.AgeRange{Min: a.age.Min, Max: model.MaxAge}, true
			}
			return a.age, true
		}
	}
	if adults {
		return model.AgeRange{Min: 18, Max: model.MaxAge}, true
	}
	return model.AllAges(), false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		// Digit runs too long for int; treat as the ceiling.
		return model.MaxAge
	}
	return n
}
