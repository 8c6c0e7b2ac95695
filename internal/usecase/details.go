package usecase

import (
	"context"

	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/fetch"
	"github.com/riskibarqy/league-sync/internal/normalize"
)

// synchronizeDetails fetches the detail record of every incomplete kind stub held for src and
// marks it complete. Each scheduler round is committed as one batch.
func (r *Reconciler) synchronizeDetails(ctx context.Context, src source.Source, kind entity.Kind) (Report, error) {
	unlock, err := r.acquire()
	if err != nil {
		return Report{}, err
	}
	defer unlock()

	ctx, span := startSyncSpan(ctx, "SynchronizeDetails", src, kind)
	defer span.End()

	report := newReport(src, kind)
	feed, err := r.feed(src)
	if err != nil {
		return report, err
	}
	if !normalize.Supports(src, kind) {
		return report, crerr.Wrapf(normalize.ErrUnsupportedDecoder, "%s %s", src, kind)
	}

	st := newRun(r.store)
	var after int64
	for {
		ids, err := r.incomplete(ctx, kind, src, after)
		if err != nil {
			return r.finish(ctx, "detail sync", report, err)
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]

		urls := make([]string, 0, len(ids))
		for _, id := range ids {
			u, err := feed.Endpoints.DetailURL(kind, id)
			if err != nil {
				return r.finish(ctx, "detail sync", report, err)
			}
			urls = append(urls, u)
		}

		rounds := 0
		for batch, err := range feed.Fetcher.Scrape(ctx, urls) {
			if err != nil {
				return r.finish(ctx, "detail sync", report, err)
			}
			if err := r.stageDetails(ctx, st, feed.Endpoints, src, kind, batch); err != nil {
				st.discard()
				return r.finish(ctx, "detail sync", report, err)
			}
			result, err := r.commit(ctx, st)
			if err != nil {
				return r.finish(ctx, "detail sync", report, err)
			}
			report.absorb(result)
			rounds++
			r.logger.DebugContext(ctx, "detail round committed", "round", rounds, "fetched", len(batch))
			if rounds >= r.cfg.MaxRounds {
				r.logger.WarnContext(ctx, "detail round ceiling reached", "rounds", rounds, "requested", len(urls))
				break
			}
		}
	}

	return r.finish(ctx, "detail sync", report, nil)
}

func (r *Reconciler) incomplete(ctx context.Context, kind entity.Kind, src source.Source, after int64) ([]int64, error) {
	var (
		ids []int64
		err error
	)
	switch kind {
	case entity.KindMatch:
		ids, err = r.store.IncompleteMatches(ctx, src, after, r.cfg.DetailBatch)
	case entity.KindRoster:
		ids, err = r.store.IncompleteRosters(ctx, src, after, r.cfg.DetailBatch)
	case entity.KindPlayer:
		ids, err = r.store.IncompletePlayers(ctx, src, after, r.cfg.DetailBatch)
	default:
		return nil, crerr.Wrapf(ErrInvalidInput, "no detail sync for %s", kind)
	}
	if err != nil {
		return nil, crerr.Wrapf(err, "load incomplete %s for %s", kind, src)
	}
	return ids, nil
}

// stageDetails decodes one round of detail responses and stages them as complete records.
// Any malformed payload fails the whole round.
func (r *Reconciler) stageDetails(ctx context.Context, st *run, endpoints Endpoints, src source.Source, kind entity.Kind, batch []fetch.Response) error {
	for _, resp := range batch {
		raw, err := endpoints.ParseDetail(kind, resp.Body)
		if err != nil {
			return crerr.Wrapf(err, "parse detail %s", resp.URL)
		}
		switch kind {
		case entity.KindMatch:
			m, err := normalize.DecodeMatch(src, raw)
			if err != nil {
				return crerr.Wrapf(err, "decode %s", resp.URL)
			}
			m.Complete = true
			_, err = st.upsertMatch(ctx, m)
			if err != nil {
				return err
			}
		case entity.KindRoster:
			ro, err := normalize.DecodeRoster(src, raw)
			if err != nil {
				return crerr.Wrapf(err, "decode %s", resp.URL)
			}
			ro.Complete = true
			if _, err := st.upsertRoster(ctx, ro); err != nil {
				return err
			}
		case entity.KindPlayer:
			p, err := normalize.DecodePlayer(src, raw)
			if err != nil {
				return crerr.Wrapf(err, "decode %s", resp.URL)
			}
			p.Complete = true
			if _, err := st.upsertPlayer(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}
