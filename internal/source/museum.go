package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/infer"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/scrape"
)

const (
	museumEventsURL = "https://airandspace.si.edu/whats-on/events?location[133]=133&building=133"
	museumMaxPages  = 5
	museumDuration  = time.Hour
)

var museumClassifier = infer.Classifier{
	Rules: []infer.Rule{
		infer.R(`story|storytime|read|book`, model.ActivityEducational),
		infer.R(`star|planet|moon|sun|telescope|astronomy|night sky|stargazing`, model.ActivityScience),
		infer.R(`space|rocket|aviation|aircraft|flight|shuttle|plane|pilot`, model.ActivityScience),
		infer.R(`history|historic|war|wwii|world war`, model.ActivityHistory),
		infer.R(`hands.?on|build|create|make|workshop`, model.ActivityScience),
		infer.R(`tour|walk|explore`, model.ActivityEducational),
	},
	Default: model.ActivityEducational,
}

const (
	museumCardSel      = `article, .event-card, .views-row, [class*="event"], .card`
	museumTitleLinkSel = `h2 a, h3 a, .event-title a, .title a, a[href*="/event"]`
	museumTitleSel     = `h2, h3, .event-title, .title`
	museumDateSel      = `.date, time, .event-date, [datetime]`
	museumTimeSel      = `.time, .event-time, [class*="time"]`
	museumDescSel      = `p, .description, .summary, .teaser, .body`
	museumItemSel      = `[itemtype*="Event"], [typeof="Event"]`
)

// Museum scrapes the air and space museum's annex events listing.
type Museum struct {
	env Env
	cfg Settings
}

// NewMuseum creates the udvar-hazy adapter.
func NewMuseum(env Env, cfg Settings) *Museum {
	return &Museum{env: env.withDefaults(), cfg: cfg.withDefaults(museumEventsURL, museumMaxPages)}
}

// Source implements Adapter.
func (m *Museum) Source() model.Source { return model.SourceMuseum }

// RetainFuture implements Adapter.
func (m *Museum) RetainFuture() bool { return false }

// Refresh implements Adapter.
func (m *Museum) Refresh(ctx context.Context, f fetcher.Fetcher) (*Result, error) {
	cands, err := paginate(ctx, f, m.cfg.URL, m.cfg.MaxPages, m.parse)
	if err != nil {
		return nil, err
	}
	col := newCollector(m.Source())
	ref := m.env.now()
	today := m.env.today()
	for _, c := range cands {
		col.candidate()
		m.transform(col, c, ref, today)
	}
	return col.done(), nil
}

func (m *Museum) parse(doc *scrape.Document) []model.Candidate {
	var out []model.Candidate
	seen := make(map[string]bool)
	push := func(c model.Candidate) {
		key := strings.ToLower(c.Title) + "|" + c.RawDate
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c)
	}

	doc.Find(museumCardSel).Each(func(_ int, card *goquery.Selection) {
		link := card.Find(museumTitleLinkSel).First()
		title := infer.CollapseSpace(link.Text())
		if title == "" {
			title = scrape.Text(card, museumTitleSel)
		}
		if len(title) < 3 {
			return
		}
		href, ok := link.Attr("href")
		if !ok {
			href, _ = card.Find("a").First().Attr("href")
		}
		date := museumDate(card.Find(museumDateSel).First())
		if date == "" {
			date = scrape.Text(card, `[class*="date"]`)
		}
		if date == "" {
			return
		}
		desc := scrape.Text(card, museumDescSel)
		if desc == "" {
			desc = title
		}
		push(model.Candidate{
			Title:       title,
			URL:         m.link(doc, href),
			RawDate:     date,
			RawTime:     scrape.Text(card, museumTimeSel),
			Description: desc,
		})
	})

	// schema.org microdata listings, only for titles the cards missed.
	doc.Find(museumItemSel).Each(func(_ int, item *goquery.Selection) {
		title := scrape.Text(item, `[itemprop="name"], [property="name"]`)
		startEl := item.Find(`[itemprop="startDate"], [property="startDate"]`).First()
		date, ok := startEl.Attr("content")
		if !ok || strings.TrimSpace(date) == "" {
			date = infer.CollapseSpace(startEl.Text())
		}
		if title == "" || date == "" {
			return
		}
		for _, c := range out {
			if strings.EqualFold(c.Title, title) {
				return
			}
		}
		href, ok := item.Find(`[itemprop="url"]`).First().Attr("href")
		if !ok {
			href, _ = item.Find("a").First().Attr("href")
		}
		desc := scrape.Text(item, `[itemprop="description"], [property="description"]`)
		if desc == "" {
			desc = title
		}
		c := model.Candidate{Title: title, URL: m.link(doc, href), RawDate: date, Description: desc}
		c.RawDate, c.RawTime = splitISO(date, m.env.Location)
		push(c)
	})
	return out
}

// splitISO separates an ISO startDate into date and clock text. Values with a
// zone designator are moved into loc first; the clock never carries the zone.
func splitISO(v string, loc *time.Location) (date, clock string) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.In(loc)
		return t.Format(time.DateOnly), t.Format("15:04")
	}
	i := strings.IndexByte(v, 'T')
	if i <= 0 {
		return v, ""
	}
	return v[:i], v[i+1:]
}

// museumDate prefers visible date text and falls back to a datetime attribute.
func museumDate(s *goquery.Selection) string {
	if t := infer.CollapseSpace(s.Text()); t != "" {
		return t
	}
	if v, ok := s.Attr("datetime"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func (m *Museum) link(doc *scrape.Document, href string) string {
	if strings.TrimSpace(href) == "" {
		return m.cfg.URL
	}
	return doc.Absolute(href, "")
}

func (m *Museum) transform(col *collector, c model.Candidate, ref time.Time, today model.Date) {
	dr, ok := infer.ParseDate(c.RawDate, ref)
	if !ok {
		col.skip(c.Title, c.RawDate, "unparseable date")
		return
	}
	var defaults []string

	startTS := infer.Clock{Hour: 10}.On(dr.Start)
	var end *model.Timestamp
	if tr, ok := infer.ParseTime(c.RawTime); ok {
		startTS = tr.Start.On(dr.Start)
		endTS := startTS.Add(museumDuration)
		if tr.HasEnd {
			endTS = tr.End.On(dr.Start)
		}
		end = &endTS
	} else {
		defaults = append(defaults, "start_time")
	}

	venue, _ := m.env.Gazetteer.Primary(model.SourceMuseum)
	tags, tagDefault := museumClassifier.Classify(c.Title, c.Description)
	if tagDefault {
		defaults = append(defaults, "activity_types")
	}

	e := model.Event{
		ID:             infer.EventID(infer.PrefixMuseum, c.Title, infer.TitleSlugMax, infer.MonthDay(dr.Start), strconv.Itoa(dr.Start.Year())),
		Title:          c.Title,
		Description:    infer.Description(c.Description),
		Timing:         model.OneTime(startTS, end),
		Location:       venue.Location(),
		ActivityTypes:  tags,
		AgeRange:       model.AllAges(),
		Cost:           model.Free(),
		ExertionRating: intPtr(infer.Exertion(tags)),
		SourceURL:      c.URL,
		Source:         model.SourceMuseum,
		LastUpdated:    today,
	}
	col.add(e, c.RawDate, defaults)
}
