package usecase

import (
	"context"

	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

// EntitySync is the pair of operations exposed per entity kind. Both are idempotent.
type EntitySync interface {
	SynchronizeListings(ctx context.Context, src source.Source) (Report, error)
	SynchronizeDetails(ctx context.Context, src source.Source) (Report, error)
}

type MatchSync struct{ r *Reconciler }

type RosterSync struct{ r *Reconciler }

type PlayerSync struct{ r *Reconciler }

func (r *Reconciler) Matches() MatchSync { return MatchSync{r: r} }

func (r *Reconciler) Rosters() RosterSync { return RosterSync{r: r} }

func (r *Reconciler) Players() PlayerSync { return PlayerSync{r: r} }

// For returns the sync operations of kind.
func (r *Reconciler) For(kind entity.Kind) (EntitySync, error) {
	switch kind {
	case entity.KindMatch:
		return r.Matches(), nil
	case entity.KindRoster:
		return r.Rosters(), nil
	case entity.KindPlayer:
		return r.Players(), nil
	default:
		return nil, crerr.Wrapf(ErrInvalidInput, "no sync for %s", kind)
	}
}

// SynchronizeListings stages a stub for every match listed by src that is not yet stored.
func (s MatchSync) SynchronizeListings(ctx context.Context, src source.Source) (Report, error) {
	return s.r.synchronizeListings(ctx, src, entity.KindMatch)
}

// SynchronizeDetails completes stored match stubs, creating roster stubs for their teams.
func (s MatchSync) SynchronizeDetails(ctx context.Context, src source.Source) (Report, error) {
	return s.r.synchronizeDetails(ctx, src, entity.KindMatch)
}

func (s RosterSync) SynchronizeListings(ctx context.Context, src source.Source) (Report, error) {
	return s.r.synchronizeListings(ctx, src, entity.KindRoster)
}

// SynchronizeDetails completes stored roster stubs, linking teams and staging player stubs.
func (s RosterSync) SynchronizeDetails(ctx context.Context, src source.Source) (Report, error) {
	return s.r.synchronizeDetails(ctx, src, entity.KindRoster)
}

// SynchronizeListings always fails: players only enter through roster details.
func (s PlayerSync) SynchronizeListings(_ context.Context, src source.Source) (Report, error) {
	return newReport(src, entity.KindPlayer), crerr.Wrapf(ErrListingUnsupported, "%s player", src)
}

func (s PlayerSync) SynchronizeDetails(ctx context.Context, src source.Source) (Report, error) {
	return s.r.synchronizeDetails(ctx, src, entity.KindPlayer)
}
