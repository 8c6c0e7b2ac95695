package usecase

import (
	"context"
	"iter"

	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/normalize"
)

// Replay re-applies checkpoint documents through the same insert/update path as detail sync,
// committing every PageSize documents. Counts land in Report.Related by kind.
func (r *Reconciler) Replay(ctx context.Context, docs iter.Seq2[[]byte, error]) (Report, error) {
	unlock, err := r.acquire()
	if err != nil {
		return Report{}, err
	}
	defer unlock()

	ctx, span := startSyncSpan(ctx, "Replay", source.Internal, "")
	defer span.End()

	report := newReport(source.Internal, "")
	st := newRun(r.store)
	st.replay = true

	staged := 0
	flush := func() error {
		result, err := r.commit(ctx, st)
		if err != nil {
			return err
		}
		report.absorb(result)
		staged = 0
		return nil
	}

	line := 0
	for doc, err := range docs {
		line++
		if err != nil {
			return r.finish(ctx, "replay", report, err)
		}
		if err := r.stageDocument(ctx, st, doc); err != nil {
			st.discard()
			return r.finish(ctx, "replay", report, crerr.Wrapf(err, "document %d", line))
		}
		staged++
		if staged >= r.cfg.PageSize {
			if err := flush(); err != nil {
				return r.finish(ctx, "replay", report, err)
			}
		}
	}
	if staged > 0 {
		if err := flush(); err != nil {
			return r.finish(ctx, "replay", report, err)
		}
	}

	return r.finish(ctx, "replay", report, nil)
}

func (r *Reconciler) stageDocument(ctx context.Context, st *run, doc []byte) error {
	kind, err := normalize.DocumentKind(doc)
	if err != nil {
		return err
	}
	switch kind {
	case entity.KindMatch:
		m, err := normalize.DecodeMatch(source.Internal, doc)
		if err != nil {
			return err
		}
		_, err = st.upsertMatch(ctx, m)
		return err
	case entity.KindRoster:
		ro, err := normalize.DecodeRoster(source.Internal, doc)
		if err != nil {
			return err
		}
		_, err = st.upsertRoster(ctx, ro)
		return err
	case entity.KindPlayer:
		p, err := normalize.DecodePlayer(source.Internal, doc)
		if err != nil {
			return err
		}
		_, err = st.upsertPlayer(ctx, p)
		return err
	default:
		return crerr.Wrapf(ErrInvalidInput, "unknown document kind %s", kind)
	}
}
