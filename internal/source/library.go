package source

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/infer"
	"github.com/sells-group/family-events/internal/model"
)

const (
	libraryFeedURL      = "https://librarycalendar.fairfaxcounty.gov/rss.php?cid=6524"
	libraryTitleSlugMax = 25
	libraryDuration     = time.Hour
)

// familyAudiences are the audience keywords that keep a library event.
var familyAudiences = []string{
	"babies", "baby", "infant", "toddler", "preschool",
	"school age", "children", "kids", "family", "families",
}

var libraryClassifier = infer.Classifier{
	Rules: []infer.Rule{
		infer.R(`storytime|story|reading|book`, model.ActivityEducational),
		infer.R(`steam|stem|science|robot|coding|tech`, model.ActivityScience),
		infer.R(`art|craft|make.*create|creative`, model.ActivityArts),
		infer.R(`music|movement|dance|sing`, model.ActivityMusic),
		infer.R(`game|play|outdoor`, model.ActivityPhysicalPlay),
		infer.R(`nature|animal|garden`, model.ActivityNature),
		infer.R(`history|heritage`, model.ActivityHistory),
	},
	Default: model.ActivityEducational,
}

var (
	canceledRe     = regexp.MustCompile(`(?i)cancel+ed`)
	timePrefixRe   = regexp.MustCompile(`(?i)^time:\s*[\d:apm\s-]+`)
	locationHeadRe = regexp.MustCompile(`(?i)location:\s*`)
)

// rssItem is one LibCal feed entry. The libcal: fields are matched by local
// name.
type rssItem struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Date          string `xml:"date"`
	Start         string `xml:"start"`
	End           string `xml:"end"`
	Campus        string `xml:"campus"`
	Location      string `xml:"location"`
	Audience      string `xml:"audience"`
	Category      string `xml:"category"`
	Registrations string `xml:"registrations"`
}

func (it rssItem) candidate() model.Candidate {
	return model.Candidate{
		Title:        strings.TrimSpace(it.Title),
		URL:          strings.TrimSpace(it.Link),
		RawDate:      strings.TrimSpace(it.Date),
		RawTime:      strings.TrimSpace(it.Start),
		RawEndTime:   strings.TrimSpace(it.End),
		RawLocation:  strings.TrimSpace(it.Campus),
		Description:  infer.StripHTML(it.Description),
		RawAudience:  strings.TrimSpace(it.Audience),
		Category:     strings.TrimSpace(it.Category),
		Registration: strings.EqualFold(strings.TrimSpace(it.Registrations), "true"),
	}
}

// Library reads the county library's LibCal RSS feed. The feed only lists
// the next day or so of events, so earlier future records are retained.
type Library struct {
	env Env
	cfg Settings
}

// NewLibrary creates the library adapter.
func NewLibrary(env Env, cfg Settings) *Library {
	return &Library{env: env.withDefaults(), cfg: cfg.withDefaults(libraryFeedURL, 1)}
}

// Source implements Adapter.
func (l *Library) Source() model.Source { return model.SourceLibrary }

// RetainFuture implements Adapter.
func (l *Library) RetainFuture() bool { return true }

// Refresh implements Adapter.
func (l *Library) Refresh(ctx context.Context, f fetcher.Fetcher) (*Result, error) {
	page, err := f.Fetch(ctx, l.cfg.URL)
	if err != nil {
		return nil, &FetchError{URL: l.cfg.URL, Err: err}
	}
	items, err := fetcher.DecodeXML[rssItem](ctx, bytes.NewReader(page.Body), "item")
	if err != nil {
		return nil, &FetchError{URL: l.cfg.URL, Err: err}
	}

	col := newCollector(l.Source())
	today := l.env.today()
	for _, it := range items {
		col.candidate()
		c := it.candidate()
		// Rooms live in libcal:location; the campus is the branch.
		l.transform(col, c, strings.TrimSpace(it.Location), today)
	}
	return col.done(), nil
}

func isFamilyAudience(audience string) bool {
	lower := strings.ToLower(audience)
	for _, kw := range familyAudiences {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (l *Library) transform(col *collector, c model.Candidate, room string, today model.Date) {
	if c.Title == "" || c.RawDate == "" {
		col.skip(c.Title, c.RawDate, "missing title or date")
		return
	}
	if !isFamilyAudience(c.RawAudience) {
		col.exclude(c.Title, "audience "+c.RawAudience)
		return
	}
	if canceledRe.MatchString(c.Title) {
		col.exclude(c.Title, "canceled")
		return
	}

	dr, ok := infer.ParseDate(c.RawDate, l.env.now())
	if !ok {
		col.skip(c.Title, c.RawDate, "unparseable date")
		return
	}
	var defaults []string

	start := infer.Clock{Hour: 10}
	if tr, ok := infer.ParseTime(c.RawTime); ok {
		start = tr.Start
	} else {
		defaults = append(defaults, "start_time")
	}
	end := start.Plus(libraryDuration)
	if tr, ok := infer.ParseTime(c.RawEndTime); ok {
		end = tr.Start
	}
	startTS, endTS := start.On(dr.Start), end.On(dr.Start)
	if endTS.Before(startTS) {
		endTS = startTS.Add(libraryDuration)
	}

	venue, _ := l.env.Gazetteer.Resolve(model.SourceLibrary, c.RawLocation)

	classifyOn := c.Category
	if classifyOn == "" {
		classifyOn = c.Title
	}
	tags, tagDefault := libraryClassifier.Classify(classifyOn, "")
	if tagDefault {
		defaults = append(defaults, "activity_types")
	}
	age, matched := infer.ParseAge(c.RawAudience)
	if !matched {
		defaults = append(defaults, "age_range")
	}

	sourceURL := c.URL
	if sourceURL == "" {
		sourceURL = l.cfg.URL
	}

	e := model.Event{
		ID:             infer.EventID(infer.PrefixLibrary, c.Title, libraryTitleSlugMax, infer.Slug(c.RawLocation, infer.VenueSlugMax), infer.CompactDate(dr.Start)),
		Title:          c.Title,
		Description:    infer.Description(libraryDescription(c.Description, room, c.Registration)),
		Timing:         model.OneTime(startTS, &endTS),
		Location:       venue.Location(),
		ActivityTypes:  tags,
		AgeRange:       age,
		Cost:           model.Free(),
		ExertionRating: intPtr(infer.Exertion(tags)),
		SourceURL:      sourceURL,
		Source:         model.SourceLibrary,
		LastUpdated:    today,
	}
	if e.Description == "" {
		e.Description = c.Title
	}
	col.add(e, c.RawDate, defaults)
}

// libraryDescription drops the feed's "Time:" and "Location:" boilerplate,
// names the room when the text does not, and flags sign-up events.
func libraryDescription(desc, room string, registration bool) string {
	desc = timePrefixRe.ReplaceAllString(desc, "")
	desc = strings.TrimSpace(locationHeadRe.ReplaceAllString(desc, ""))
	if room != "" && !strings.Contains(strings.ToLower(desc), strings.ToLower(room)) {
		desc = strings.TrimSpace(room + ". " + desc)
	}
	if registration {
		desc = strings.TrimSpace("Registration required. " + desc)
	}
	return desc
}
