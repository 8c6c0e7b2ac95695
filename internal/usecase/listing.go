package usecase

import (
	"context"
	"encoding/json"

	crerr "github.com/cockroachdb/errors"
	conciter "github.com/sourcegraph/conc/iter"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/normalize"
)

// synchronizeListings walks the listing endpoint from the durable count of kind for src and
// stages a stub for every unseen external id, one commit per page. It stops at the first page
// that adds nothing.
func (r *Reconciler) synchronizeListings(ctx context.Context, src source.Source, kind entity.Kind) (Report, error) {
	unlock, err := r.acquire()
	if err != nil {
		return Report{}, err
	}
	defer unlock()

	ctx, span := startSyncSpan(ctx, "SynchronizeListings", src, kind)
	defer span.End()

	report := newReport(src, kind)
	feed, err := r.feed(src)
	if err != nil {
		return report, err
	}
	if !normalize.Supports(src, kind) {
		return report, crerr.Wrapf(normalize.ErrUnsupportedDecoder, "%s %s", src, kind)
	}

	cursor, err := r.store.CountDurable(ctx, kind, src)
	if err != nil {
		return report, crerr.Wrapf(err, "count durable %s for %s", kind, src)
	}

	st := newRun(r.store)
	for {
		pages, err := feed.Endpoints.ListPages(kind, cursor, r.cfg.PageSize, r.cfg.PagesPerRound)
		if err != nil {
			return r.finish(ctx, "listing sync", report, err)
		}
		bodies, err := r.fetchAll(ctx, feed.Lister, pageURLs(pages))
		if err != nil {
			return r.finish(ctx, "listing sync", report, err)
		}

		more := true
		for i, page := range pages {
			if bodies[i] == nil {
				r.logger.WarnContext(ctx, "listing page not fetched", "url", page.URL)
				more = false
				break
			}
			records, err := feed.Endpoints.ParseList(kind, bodies[i])
			if err != nil {
				return r.finish(ctx, "listing sync", report, crerr.Wrapf(err, "parse listing %s", page.URL))
			}
			if page.Skip >= len(records) {
				more = false
				break
			}
			records = records[page.Skip:]

			added, err := r.stageListing(ctx, st, src, kind, records)
			if err != nil {
				st.discard()
				return r.finish(ctx, "listing sync", report, crerr.Wrapf(err, "page %s", page.URL))
			}
			if added == 0 {
				more = false
				break
			}
			result, err := r.commit(ctx, st)
			if err != nil {
				return r.finish(ctx, "listing sync", report, err)
			}
			report.absorb(result)
			cursor += len(records)
			r.logger.DebugContext(ctx, "listing page committed", "url", page.URL, "added", added, "cursor", cursor)
		}
		if !more {
			break
		}
	}

	return r.finish(ctx, "listing sync", report, nil)
}

// stageListing decodes one page and stages stubs, preserving the page order of records.
func (r *Reconciler) stageListing(ctx context.Context, st *run, src source.Source, kind entity.Kind, records []json.RawMessage) (int, error) {
	ids, err := conciter.MapErr(records, func(raw *json.RawMessage) (source.SiteIDs, error) {
		switch kind {
		case entity.KindMatch:
			m, err := normalize.DecodeMatch(src, *raw)
			return m.SiteIDs, err
		case entity.KindRoster:
			ro, err := normalize.DecodeRoster(src, *raw)
			return ro.SiteIDs, err
		default:
			return source.SiteIDs{}, crerr.Wrapf(ErrListingUnsupported, "%s %s", src, kind)
		}
	})
	if err != nil {
		return 0, err
	}

	added := 0
	for _, siteIDs := range ids {
		var ok bool
		switch kind {
		case entity.KindMatch:
			ok, err = st.stageMatchStub(ctx, siteIDs)
		case entity.KindRoster:
			ok, err = st.stageRosterStub(ctx, siteIDs)
		}
		if err != nil {
			return 0, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func pageURLs(pages []PageRequest) []string {
	out := make([]string, 0, len(pages))
	for _, page := range pages {
		out = append(out, page.URL)
	}
	return out
}

// fetchAll scrapes urls for at most MaxRounds rounds and returns bodies aligned with urls.
// A nil body means the url was dropped or never succeeded.
func (r *Reconciler) fetchAll(ctx context.Context, fetcher Fetcher, urls []string) ([][]byte, error) {
	bodies := make([][]byte, len(urls))
	positions := make(map[string][]int, len(urls))
	for i, u := range urls {
		positions[u] = append(positions[u], i)
	}

	rounds := 0
	for batch, err := range fetcher.Scrape(ctx, urls) {
		if err != nil {
			return nil, err
		}
		for _, resp := range batch {
			slots := positions[resp.URL]
			if len(slots) == 0 {
				continue
			}
			bodies[slots[0]] = resp.Body
			positions[resp.URL] = slots[1:]
		}
		rounds++
		if rounds >= r.cfg.MaxRounds {
			r.logger.WarnContext(ctx, "fetch round ceiling reached", "rounds", rounds, "urls", len(urls))
			break
		}
	}
	return bodies, nil
}
