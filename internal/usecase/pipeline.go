package usecase

import (
	"context"

	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

// SynchronizeAll runs every listing src supports, then match, roster and player details
// in that order so each step completes the stubs the previous one staged. It stops at
// the first failing step and returns the reports of the steps that ran.
func (r *Reconciler) SynchronizeAll(ctx context.Context, src source.Source) ([]Report, error) {
	reports := make([]Report, 0, 5)
	for _, kind := range []entity.Kind{entity.KindMatch, entity.KindRoster} {
		ops, err := r.For(kind)
		if err != nil {
			return reports, err
		}
		rep, err := ops.SynchronizeListings(ctx, src)
		if crerr.Is(err, ErrListingUnsupported) {
			r.logger.DebugContext(ctx, "listing skipped", "source", src.String(), "kind", kind.String())
			continue
		}
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}

	for _, kind := range []entity.Kind{entity.KindMatch, entity.KindRoster, entity.KindPlayer} {
		ops, err := r.For(kind)
		if err != nil {
			return reports, err
		}
		rep, err := ops.SynchronizeDetails(ctx, src)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
