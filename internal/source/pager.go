package source

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/scrape"
)

// pageURL sets the zero-based page query parameter on base.
func pageURL(base string, page int) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// paginate loads pages 0..maxPages-1 and stops at the first page that yields
// no candidates. Request spacing is the fetcher's job. Any page that cannot
// be loaded aborts the whole run.
func paginate(ctx context.Context, f fetcher.Fetcher, base string, maxPages int, parse func(*scrape.Document) []model.Candidate) ([]model.Candidate, error) {
	log := zap.L().With(zap.String("component", "source.pager"))
	var all []model.Candidate
	for page := range maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u := pageURL(base, page)
		doc, err := scrape.Load(ctx, f, u)
		if err != nil {
			return nil, &FetchError{URL: u, Err: err}
		}
		found := parse(doc)
		log.Debug("page parsed", zap.Int("page", page), zap.Int("candidates", len(found)))
		if len(found) == 0 {
			break
		}
		all = append(all, found...)
	}
	return all, nil
}
