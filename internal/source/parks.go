package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/infer"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/scrape"
)

const (
	parksCalendarURL = "https://www.fairfaxcounty.gov/parks/park-events-calendar"
	parksMaxPages    = 4
	parksDuration    = 90 * time.Minute
	parksAdmission   = 8
)

var parksClassifier = infer.Classifier{
	Rules: []infer.Rule{
		infer.R(`nature|wildlife|bird|animal|forest|tree|plant|garden|wetland|creek|stream|fox|owl|squirrel|salamander|turtle|snake`, model.ActivityNature),
		infer.R(`science|lab|experiment|biology|astronomy|star|space|biomimicry`, model.ActivityScience),
		infer.R(`history|historic|colonial|enslaved|black history|meeting house`, model.ActivityHistory),
		infer.R(`art|craft|paint|draw|sketch|valentine|card making|pottery`, model.ActivityArts),
		infer.R(`hike|walk|campfire|adventure|fire building|lantern`, model.ActivityAdventure),
		infer.R(`play|playground|physical|active`, model.ActivityPhysicalPlay),
		infer.R(`music|concert|quartet|performance`, model.ActivityMusic),
		infer.R(`seasonal|lunar|new year|holiday|valentine|easter|halloween`, model.ActivitySeasonal),
		infer.R(`learn|education|class|workshop|lecture|storytime|homeschool`, model.ActivityEducational),
	},
	Default: model.ActivityEducational,
}

var (
	parksFullRe     = regexp.MustCompile(`(?i)\s*\(the event is full\)\s*`)
	parksLeadTimeRe = regexp.MustCompile(`(?i)^(\d{1,2}:\d{2}\s*(?:am|pm))`)
	parksTimeTrimRe = regexp.MustCompile(`(?i)^\d{1,2}:\d{2}\s*(?:am|pm),?\s*`)
	parksAgeRe      = regexp.MustCompile(`\(([^)]+)\)`)
	parksParenRe    = regexp.MustCompile(`\([^)]+\)\s*`)
	parksSlugRe     = regexp.MustCompile(`/parks/([^/]+)/`)
)

// Parks scrapes the county park authority's paginated HTML calendar.
type Parks struct {
	env Env
	cfg Settings
}

// NewParks creates the fairfax-parks adapter.
func NewParks(env Env, cfg Settings) *Parks {
	return &Parks{env: env.withDefaults(), cfg: cfg.withDefaults(parksCalendarURL, parksMaxPages)}
}

// Source implements Adapter.
func (p *Parks) Source() model.Source { return model.SourceParks }

// RetainFuture implements Adapter.
func (p *Parks) RetainFuture() bool { return false }

// Refresh implements Adapter.
func (p *Parks) Refresh(ctx context.Context, f fetcher.Fetcher) (*Result, error) {
	cands, err := paginate(ctx, f, p.cfg.URL, p.cfg.MaxPages, p.parse)
	if err != nil {
		return nil, err
	}
	col := newCollector(p.Source())
	ref := p.env.now()
	today := p.env.today()
	for _, c := range cands {
		col.candidate()
		p.transform(col, c, ref, today)
	}
	return col.done(), nil
}

func (p *Parks) parse(doc *scrape.Document) []model.Candidate {
	var out []model.Candidate
	doc.Find("div.events-list.views-row").Each(func(_ int, row *goquery.Selection) {
		link := row.Find(".calendar-title a").First()
		title := strings.TrimSpace(parksFullRe.ReplaceAllString(infer.CollapseSpace(link.Text()), " "))
		href, _ := link.Attr("href")
		date := infer.CollapseSpace(row.Find(".date").Text())
		if title == "" || date == "" {
			return
		}

		raw := infer.CollapseSpace(row.Find(".calendar-description").Text())
		c := model.Candidate{
			Title:   title,
			URL:     doc.Absolute(href, ""),
			RawDate: date,
		}
		if m := parksLeadTimeRe.FindStringSubmatch(raw); m != nil {
			c.RawTime = m[1]
		}
		if m := parksAgeRe.FindStringSubmatch(raw); m != nil {
			c.RawAudience = m[1]
		}
		desc := parksTimeTrimRe.ReplaceAllString(raw, "")
		c.Description = strings.TrimSpace(parksParenRe.ReplaceAllString(desc, ""))
		if c.Description == "" {
			c.Description = title
		}
		c.RawLocation = p.parkFromURL(c.URL)
		out = append(out, c)
	})
	return out
}

// parkFromURL maps an event URL like /parks/hidden-oaks/owl-prowl to a
// park name; unknown slugs are title-cased.
func (p *Parks) parkFromURL(u string) string {
	m := parksSlugRe.FindStringSubmatch(u)
	if m == nil {
		return "Fairfax County Park"
	}
	if v, ok := p.env.Gazetteer.BySlug(model.SourceParks, m[1]); ok {
		return v.Name
	}
	return infer.TitleCase(m[1])
}

func (p *Parks) transform(col *collector, c model.Candidate, ref time.Time, today model.Date) {
	dr, ok := infer.ParseDate(c.RawDate, ref)
	if !ok {
		col.skip(c.Title, c.RawDate, "unparseable date")
		return
	}
	var defaults []string

	start := infer.Clock{Hour: 10}
	tr, ok := infer.ParseTime(c.RawTime)
	if ok {
		start = tr.Start
	} else {
		defaults = append(defaults, "start_time")
	}
	startTS := start.On(dr.Start)
	endTS := startTS.Add(parksDuration)
	if ok && tr.HasEnd {
		endTS = tr.End.On(dr.Start)
	}

	venue, _ := p.env.Gazetteer.Resolve(model.SourceParks, c.RawLocation)
	tags, tagDefault := parksClassifier.Classify(c.Title, c.Description)
	if tagDefault {
		defaults = append(defaults, "activity_types")
	}
	age, matched := infer.ParseAge(c.RawAudience)
	if !matched {
		defaults = append(defaults, "age_range")
	}

	sourceURL := c.URL
	if sourceURL == "" {
		sourceURL = p.cfg.URL
	}

	e := model.Event{
		ID:             infer.EventID(infer.PrefixParks, c.Title, infer.TitleSlugMax, infer.Slug(venue.Name, infer.VenueSlugMax), infer.MonthDay(dr.Start)),
		Title:          c.Title,
		Description:    infer.Description(c.Description),
		Timing:         model.OneTime(startTS, &endTS),
		Location:       venue.Location(),
		ActivityTypes:  tags,
		AgeRange:       age,
		Cost:           model.Cost{Amount: parksAdmission, Per: model.PerPerson},
		ExertionRating: intPtr(infer.Exertion(tags)),
		SourceURL:      sourceURL,
		Source:         model.SourceParks,
		LastUpdated:    today,
	}
	col.add(e, c.RawDate, defaults)
}
