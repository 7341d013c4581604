package source

import (
	"context"
	"fmt"
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
	farmEventsURL    = "https://greatcountryfarms.com/festivals-events/"
	farmAdmission    = 15
	farmDescSnippet  = 300
	farmOpensAt      = 10
	farmClosesAt     = 17
	farmMinTitleLen  = 5
	farmMaxTitleLen  = 50
	farmSectionsSel  = `section, article, .event, .festival, div[class*="event"], div[class*="festival"], .wp-block-group, .wp-block-columns`
	farmHeadingsSel  = `h1, h2, h3, h4, strong, b`
	farmContainerSel = `section, article, div`
)

// adultOnly drops 21+ programming.
var adultOnly = []string{
	"adult corn maze", "adult egg hunt", "loco cider fest", "cider fest",
	"21+", "adults only", "beer", "wine tasting",
}

type knownFestival struct {
	Title    string
	Month    time.Month
	Keywords []string
}

// knownFestivals are the farm's recurring seasonal events. Each is looked
// for on the page by title or keyword.
var knownFestivals = []knownFestival{
	{"Baby Dino Days", time.February, []string{"dino", "dinosaur", "hatching"}},
	{"Breakfast with Santa", time.December, []string{"santa", "breakfast", "christmas"}},
	{"Easter Egg Hunt", time.April, []string{"easter", "egg", "hunt"}},
	{"Breakfast with Easter Bunny", time.April, []string{"bunny", "easter", "breakfast"}},
	{"Strawberry Jubilee", time.May, []string{"strawberry", "jubilee"}},
	{"Fish-a-Rama", time.June, []string{"fish", "fishing", "derby"}},
	{"Pickle Fest", time.June, []string{"pickle", "cucumber"}},
	{"Sunflowers", time.July, []string{"sunflower"}},
	{"Peach Fuzztival", time.July, []string{"peach", "fuzztival"}},
	{"Big Dig & Big Rigs", time.August, []string{"dig", "rigs", "potato", "truck"}},
	{"Watermelon Bash", time.August, []string{"watermelon", "bash"}},
	{"Apple Harvest & Corn Maze", time.September, []string{"apple", "harvest", "corn maze"}},
	{"Family Flashlight Corn Maze", time.September, []string{"flashlight", "maze", "night"}},
	{"Fall Pumpkin Harvest", time.October, []string{"pumpkin", "harvest", "fall"}},
	{"Pumpkin Chunkin'", time.November, []string{"chunkin", "pumpkin"}},
}

var farmClassifier = infer.Classifier{
	Rules: []infer.Rule{
		infer.R(`strawberry|pumpkin|apple|harvest|farm|pick|peach|berry`, model.ActivityNature),
		infer.R(`festival|jubilee|bash|hunt|celebration`, model.ActivitySeasonal),
		infer.R(`maze|hunt|dig|fishing|adventure`, model.ActivityAdventure),
		infer.R(`breakfast|santa|bunny|easter|christmas|holiday`, model.ActivitySeasonal),
		infer.R(`play|indoor|bounce|slide|jump`, model.ActivityPhysicalPlay),
		infer.R(`animal|goat|pig|chicken|cow|petting`, model.ActivityNature),
	},
	Default: model.ActivitySeasonal,
}

var (
	// "Feb 20 - Mar 2, 2026", "May 23-24, 30-31, 2026", "Oct 1-31, 2026"
	farmDateRe  = regexp.MustCompile(`[A-Z][a-z]+\.?\s+\d+(?:\s*[-–]\s*(?:[A-Z][a-z]+\.?\s+)?\d+)?(?:,\s*\d+\s*[-–]\s*\d+)*,?\s*\d{4}`)
	farmNavRe   = regexp.MustCompile(`(?i)menu|nav|skip|home|about|contact|shop|directions|hours`)
	farmEventRe = regexp.MustCompile(`(?i)festival|harvest|hunt|jubilee|bash|breakfast|pick|pumpkin|apple|strawberry|easter|christmas|dino|sunflower|peach|watermelon|fish|pickle|maze|chunkin`)
)

// Farm scrapes the pick-your-own farm's single festivals page.
type Farm struct {
	env Env
	cfg Settings
}

// NewFarm creates the great-country-farms adapter.
func NewFarm(env Env, cfg Settings) *Farm {
	return &Farm{env: env.withDefaults(), cfg: cfg.withDefaults(farmEventsURL, 1)}
}

// Source implements Adapter.
func (g *Farm) Source() model.Source { return model.SourceFarm }

// RetainFuture implements Adapter.
func (g *Farm) RetainFuture() bool { return false }

// Refresh implements Adapter.
func (g *Farm) Refresh(ctx context.Context, f fetcher.Fetcher) (*Result, error) {
	doc, err := scrape.Load(ctx, f, g.cfg.URL)
	if err != nil {
		return nil, &FetchError{URL: g.cfg.URL, Err: err}
	}
	ref := g.env.now()
	cands := g.parse(doc, ref)

	col := newCollector(g.Source())
	today := g.env.today()
	for _, c := range cands {
		col.candidate()
		g.transform(col, c, ref, today)
	}
	return col.done(), nil
}

func isAdultOnly(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range adultOnly {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// findDate returns the first date-looking span in text that actually parses.
func findDate(text string, ref time.Time) string {
	for _, m := range farmDateRe.FindAllString(text, -1) {
		if _, ok := infer.ParseDate(m, ref); ok {
			return m
		}
	}
	return ""
}

func (g *Farm) parse(doc *scrape.Document, ref time.Time) []model.Candidate {
	pageText := doc.Find("body").Text()
	var sections []string
	doc.Find(farmSectionsSel).Each(func(_ int, s *goquery.Selection) {
		sections = append(sections, strings.TrimSpace(s.Text()))
	})
	// Dates are only trusted from a festival's own block; the whole page is
	// searched only when it has no blocks at all.
	if len(sections) == 0 {
		sections = append(sections, pageText)
	}

	var out []model.Candidate
	has := func(title string) bool {
		for _, c := range out {
			if strings.EqualFold(c.Title, title) {
				return true
			}
		}
		return false
	}

	for _, k := range knownFestivals {
		if isAdultOnly(k.Title) || has(k.Title) {
			continue
		}
		titleRe := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(k.Title))
		quoted := make([]string, len(k.Keywords))
		for i, kw := range k.Keywords {
			quoted[i] = regexp.QuoteMeta(kw)
		}
		keywordRe := regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
		mentions := func(s string) bool { return titleRe.MatchString(s) || keywordRe.MatchString(s) }
		if !mentions(pageText) {
			continue
		}

		var date string
		for _, s := range sections {
			if mentions(s) {
				if date = findDate(s, ref); date != "" {
					break
				}
			}
		}
		var guessed []string
		if date == "" {
			guessed = append(guessed, "date")
			year := ref.Year()
			if k.Month < ref.Month() {
				year++
			}
			date = fmt.Sprintf("%s 1, %d", k.Month, year)
		}

		desc := k.Title
		snippetRe := regexp.MustCompile(`(?is).{0,50}` + regexp.QuoteMeta(k.Title) + `.{0,200}`)
		for _, s := range sections {
			if m := snippetRe.FindString(s); m != "" {
				desc = infer.CollapseSpace(m)
				break
			}
		}
		out = append(out, model.Candidate{
			Title:       k.Title,
			URL:         g.cfg.URL,
			RawDate:     date,
			Description: infer.Truncate(desc, farmDescSnippet),
			Guessed:     guessed,
		})
	}

	doc.Find(farmHeadingsSel).Each(func(_ int, h *goquery.Selection) {
		title := infer.CollapseSpace(h.Text())
		if len(title) < farmMinTitleLen || len(title) > farmMaxTitleLen {
			return
		}
		if farmNavRe.MatchString(title) || !farmEventRe.MatchString(title) || has(title) {
			return
		}
		around := h.Closest(farmContainerSel).Text()
		date := findDate(around, ref)
		if date == "" {
			return
		}
		out = append(out, model.Candidate{
			Title:       title,
			URL:         g.cfg.URL,
			RawDate:     date,
			Description: infer.Truncate(infer.CollapseSpace(around), farmDescSnippet),
		})
	})
	return out
}

func (g *Farm) transform(col *collector, c model.Candidate, ref time.Time, today model.Date) {
	if isAdultOnly(c.Title + " " + c.Description) {
		col.exclude(c.Title, "adult-only")
		return
	}
	dr, ok := infer.ParseDate(c.RawDate, ref)
	if !ok {
		col.skip(c.Title, c.RawDate, "unparseable date")
		return
	}

	start := infer.Clock{Hour: farmOpensAt}.On(dr.Start)
	end := infer.Clock{Hour: farmClosesAt}.On(dr.End)

	desc := c.Description
	if display := strings.TrimSpace(c.RawDate); !strings.Contains(desc, display) {
		desc = display + ". " + desc
	}

	venue, _ := g.env.Gazetteer.Primary(model.SourceFarm)
	tags, tagDefault := farmClassifier.Classify(c.Title, c.Description)
	defaults := append([]string(nil), c.Guessed...)
	if tagDefault {
		defaults = append(defaults, "activity_types")
	}

	e := model.Event{
		ID:             infer.EventID(infer.PrefixFarm, c.Title, infer.TitleSlugMax, infer.MonthYear(dr.Start)),
		Title:          c.Title,
		Description:    infer.Description(desc),
		Timing:         model.OneTime(start, &end),
		Location:       venue.Location(),
		ActivityTypes:  tags,
		AgeRange:       model.AllAges(),
		Cost:           model.Cost{Amount: farmAdmission, Per: model.PerPerson},
		ExertionRating: intPtr(infer.Exertion(tags)),
		SourceURL:      c.URL,
		Source:         model.SourceFarm,
		LastUpdated:    today,
	}
	col.add(e, c.RawDate, defaults)
}
