package usecase

import (
	"context"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/normalize"
)

type written struct {
	kind entity.Kind
	item any
}

// commit writes everything staged in st as one transaction. Rows are written parents first so
// foreign keys hold: players, then each roster after its team, then matches and their results. A rolled back
// batch releases all its reservations.
func (r *Reconciler) commit(ctx context.Context, st *run) (commitResult, error) {
	result := commitResult{}
	if st.pending() == 0 {
		return result, nil
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		st.discard()
		return nil, crerr.Wrap(err, "begin batch")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
			st.discard()
		}
	}()

	var docs []written

	for _, p := range st.newPlayers.Items() {
		inserted, err := tx.InsertPlayer(ctx, p)
		if err != nil {
			return nil, crerr.Wrapf(err, "insert player %d", p.ID)
		}
		if !inserted {
			r.logger.WarnContext(ctx, "player already exists, skipping", "steam_id", p.ID)
			result.bump(entity.KindPlayer, func(t *Tally) { t.Skipped++ })
			continue
		}
		result.bump(entity.KindPlayer, countWrite(true, p.Complete))
		if p.Complete {
			docs = append(docs, written{entity.KindPlayer, p})
		}
	}

	teams := newTeamWrites(st)

	// rosters that lost an insert race are remapped onto the winner's id
	remap := make(map[int64]int64)
	for _, ro := range st.newRosters.Items() {
		if err := teams.ensure(ctx, tx, ro.TeamID); err != nil {
			return nil, err
		}
		inserted, err := tx.InsertRoster(ctx, ro)
		if err != nil {
			return nil, crerr.Wrapf(err, "insert roster %d", ro.ID)
		}
		if !inserted {
			site, _ := ro.SiteIDs.Primary()
			winner, found, err := tx.RosterIDBySiteID(ctx, site)
			if err != nil {
				return nil, crerr.Wrapf(err, "resolve roster %s", site)
			}
			if found {
				remap[ro.ID] = winner
			}
			r.logger.WarnContext(ctx, "roster already exists, skipping", "site_id", site.String(), "roster_id", winner)
			result.bump(entity.KindRoster, func(t *Tally) { t.Skipped++ })
			continue
		}
		teams.use(ro.TeamID)
		result.bump(entity.KindRoster, countWrite(true, ro.Complete))
		if ro.Complete {
			docs = append(docs, written{entity.KindRoster, ro})
		}
	}

	for _, ro := range st.rosterUpdates.Items() {
		if err := teams.ensure(ctx, tx, ro.TeamID); err != nil {
			return nil, err
		}
		teams.use(ro.TeamID)
		if err := tx.UpdateRoster(ctx, ro); err != nil {
			return nil, crerr.Wrapf(err, "update roster %d", ro.ID)
		}
		result.bump(entity.KindRoster, countWrite(false, ro.Complete))
		if ro.Complete {
			docs = append(docs, written{entity.KindRoster, ro})
		}
	}

	if err := teams.prune(ctx, tx, result); err != nil {
		return nil, err
	}

	for _, p := range st.playerUpdates.Items() {
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return nil, crerr.Wrapf(err, "update player %d", p.ID)
		}
		result.bump(entity.KindPlayer, countWrite(false, p.Complete))
		if p.Complete {
			docs = append(docs, written{entity.KindPlayer, p})
		}
	}

	for _, m := range st.newMatches.Items() {
		m.Results = remapResults(m.Results, remap)
		inserted, err := tx.InsertMatch(ctx, m)
		if err != nil {
			return nil, crerr.Wrapf(err, "insert match %d", m.ID)
		}
		if !inserted {
			site, _ := m.SiteIDs.Primary()
			r.logger.WarnContext(ctx, "match already exists, skipping", "site_id", site.String())
			result.bump(entity.KindMatch, func(t *Tally) { t.Skipped++ })
			continue
		}
		result.bump(entity.KindMatch, countWrite(true, m.Complete))
		if m.Complete {
			docs = append(docs, written{entity.KindMatch, m})
		}
	}

	for _, m := range st.matchUpdates.Items() {
		m.Results = remapResults(m.Results, remap)
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return nil, crerr.Wrapf(err, "update match %d", m.ID)
		}
		result.bump(entity.KindMatch, countWrite(false, m.Complete))
		if m.Complete {
			docs = append(docs, written{entity.KindMatch, m})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, crerr.Wrap(err, "commit batch")
	}
	committed = true

	if err := st.settle(ctx); err != nil {
		return result, err
	}
	if !st.replay {
		r.checkpoint(ctx, docs)
	}
	return result, nil
}

// teamWrites inserts staged teams on first use by a roster. Teams whose only rosters lost
// their insert race are deleted again before the batch commits.
type teamWrites struct {
	staged   *run
	inserted map[int64]bool
	used     map[int64]struct{}
}

func newTeamWrites(st *run) *teamWrites {
	return &teamWrites{staged: st, inserted: make(map[int64]bool), used: make(map[int64]struct{})}
}

func (w *teamWrites) ensure(ctx context.Context, tx Tx, teamID *int64) error {
	if teamID == nil {
		return nil
	}
	if _, done := w.inserted[*teamID]; done {
		return nil
	}
	tm, ok := w.staged.newTeams.Get(*teamID)
	if !ok {
		return nil
	}
	inserted, err := tx.InsertTeam(ctx, tm)
	if err != nil {
		return crerr.Wrapf(err, "insert team %d", tm.ID)
	}
	w.inserted[tm.ID] = inserted
	return nil
}

func (w *teamWrites) use(teamID *int64) {
	if teamID != nil {
		w.used[*teamID] = struct{}{}
	}
}

func (w *teamWrites) prune(ctx context.Context, tx Tx, result commitResult) error {
	for _, tm := range w.staged.newTeams.Items() {
		inserted, written := w.inserted[tm.ID]
		if !written {
			continue
		}
		if !inserted {
			result.bump(entity.KindTeam, func(t *Tally) { t.Skipped++ })
			continue
		}
		if _, ok := w.used[tm.ID]; !ok {
			if err := tx.DeleteTeam(ctx, tm.ID); err != nil {
				return crerr.Wrapf(err, "delete unused team %d", tm.ID)
			}
			continue
		}
		result.bump(entity.KindTeam, func(t *Tally) { t.Added++ })
	}
	return nil
}

func countWrite(inserted, complete bool) func(*Tally) {
	return func(t *Tally) {
		if inserted {
			t.Added++
		} else {
			t.Updated++
		}
		if complete {
			t.Completed++
		}
	}
}

func remapResults(results []match.Result, remap map[int64]int64) []match.Result {
	if len(remap) == 0 || len(results) == 0 {
		return results
	}
	out := make([]match.Result, 0, len(results))
	seen := make(map[match.ResultKey]struct{}, len(results))
	for _, res := range results {
		if winner, ok := remap[res.RosterID]; ok {
			res.RosterID = winner
		}
		if _, ok := seen[res.Key()]; ok {
			continue
		}
		seen[res.Key()] = struct{}{}
		out = append(out, res)
	}
	return out
}

// checkpoint appends committed complete entities to the sink. Failures are logged; the batch
// is already durable.
func (r *Reconciler) checkpoint(ctx context.Context, docs []written) {
	if r.cfg.Checkpoint == nil {
		return
	}
	for _, doc := range docs {
		raw, err := normalize.Encode(doc.item)
		if err != nil {
			r.logger.ErrorContext(ctx, "encode checkpoint failed", "kind", doc.kind.String(), "error", err)
			continue
		}
		if err := r.cfg.Checkpoint.Append(ctx, doc.kind, raw); err != nil {
			r.logger.ErrorContext(ctx, "append checkpoint failed", "kind", doc.kind.String(), "error", err)
		}
	}
}
