package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/family-events/internal/model"
)

// Parameter names accepted by ParseValues.
const (
	ParamActivity = "activity"
	ParamCity     = "city"
	ParamMaxCost  = "max_cost"
	ParamMinAge   = "min_age"
	ParamMaxAge   = "max_age"
	ParamDate     = "date"
	ParamSort     = "sort"
)

// ParseValues builds a Filter from URL-style parameters. List parameters may
// repeat or hold comma-separated values. An age bound on its own leaves the
// other side open.
func ParseValues(v url.Values) (Filter, error) {
	var f Filter
	for _, s := range list(v, ParamActivity) {
		a, err := model.ParseActivityType(s)
		if err != nil {
			return Filter{}, eris.Wrap(err, "query")
		}
		f.ActivityTypes = append(f.ActivityTypes, a)
	}
	for _, s := range list(v, ParamCity) {
		c := model.City(s)
		if !c.Valid() {
			return Filter{}, eris.Errorf("query: unknown city %q", s)
		}
		f.Cities = append(f.Cities, c)
	}

	if s := strings.TrimSpace(v.Get(ParamMaxCost)); s != "" {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n < 0 {
			return Filter{}, eris.Errorf("query: invalid max_cost %q", s)
		}
		f.MaxCost = &n
	}

	minAge, hasMin, err := age(v, ParamMinAge)
	if err != nil {
		return Filter{}, err
	}
	maxAge, hasMax, err := age(v, ParamMaxAge)
	if err != nil {
		return Filter{}, err
	}
	if hasMin || hasMax {
		r := model.AgeRange{Min: 0, Max: model.MaxAge}
		if hasMin {
			r.Min = minAge
		}
		if hasMax {
			r.Max = maxAge
		}
		if err := r.Validate(); err != nil {
			return Filter{}, eris.Wrap(err, "query")
		}
		f.Ages = &r
	}

	if f.Date, err = ParseDatePreset(strings.TrimSpace(v.Get(ParamDate))); err != nil {
		return Filter{}, err
	}
	if f.Sort, err = ParseSort(strings.TrimSpace(v.Get(ParamSort))); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func list(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func age(v url.Values, key string) (int, bool, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, eris.Errorf("query: invalid %s %q", key, s)
	}
	return n, true, nil
}
