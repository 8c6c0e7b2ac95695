package usecase

import (
	"context"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/domain/team"
	"github.com/riskibarqy/league-sync/internal/identity"
)

// run is the reservation context of one synchronization operation. Reservations live for the
// whole operation; staging is flushed at every batch commit.
type run struct {
	store Store
	// replay runs re-apply checkpoint documents and must not append them again
	replay bool

	matchIDs  *identity.Reservation[match.Match]
	rosterIDs *identity.Reservation[roster.Roster]
	teamIDs   *identity.Reservation[team.Team]

	newTeams   *identity.Staging[team.Team]
	newPlayers *identity.Staging[player.Player]
	newRosters *identity.Staging[roster.Roster]
	newMatches *identity.Staging[match.Match]

	playerUpdates *identity.Staging[player.Player]
	rosterUpdates *identity.Staging[roster.Roster]
	matchUpdates  *identity.Staging[match.Match]

	// site ids of records first created in the current batch
	rosterBySite map[source.SiteID]int64
	matchBySite  map[source.SiteID]int64
}

func newRun(store Store) *run {
	maxOf := func(kind entity.Kind) identity.MaxFunc {
		return func(ctx context.Context) (int64, error) {
			return store.MaxSurrogateID(ctx, kind)
		}
	}
	durable := func(kind entity.Kind) identity.DurableFunc {
		return func(ctx context.Context, id int64) (bool, error) {
			return store.ExistsByID(ctx, kind, id)
		}
	}

	return &run{
		store:         store,
		matchIDs:      identity.NewReservation[match.Match](entity.KindMatch, maxOf(entity.KindMatch)),
		rosterIDs:     identity.NewReservation[roster.Roster](entity.KindRoster, maxOf(entity.KindRoster)),
		teamIDs:       identity.NewReservation[team.Team](entity.KindTeam, maxOf(entity.KindTeam)),
		newTeams:      identity.NewStaging[team.Team](entity.KindTeam, durable(entity.KindTeam)),
		newPlayers:    identity.NewStaging[player.Player](entity.KindPlayer, durable(entity.KindPlayer)),
		newRosters:    identity.NewStaging[roster.Roster](entity.KindRoster, durable(entity.KindRoster)),
		newMatches:    identity.NewStaging[match.Match](entity.KindMatch, durable(entity.KindMatch)),
		playerUpdates: identity.NewStaging[player.Player](entity.KindPlayer, nil),
		rosterUpdates: identity.NewStaging[roster.Roster](entity.KindRoster, nil),
		matchUpdates:  identity.NewStaging[match.Match](entity.KindMatch, nil),
		rosterBySite:  make(map[source.SiteID]int64),
		matchBySite:   make(map[source.SiteID]int64),
	}
}

func (r *run) pending() int {
	return r.newTeams.Len() + r.newPlayers.Len() + r.newRosters.Len() + r.newMatches.Len() +
		r.playerUpdates.Len() + r.rosterUpdates.Len() + r.matchUpdates.Len()
}

// settle releases reservations after a successful commit. Staged inserts the store now holds are
// released as durable; the rest (duplicates that lost a race) are freed for reuse.
func (r *run) settle(ctx context.Context) error {
	if err := settleKind(ctx, r.newTeams, r.teamIDs); err != nil {
		return err
	}
	if err := settleKind(ctx, r.newRosters, r.rosterIDs); err != nil {
		return err
	}
	if err := settleKind(ctx, r.newMatches, r.matchIDs); err != nil {
		return err
	}
	if _, _, err := r.newPlayers.Flush(ctx); err != nil {
		return err
	}
	r.playerUpdates.Discard()
	r.rosterUpdates.Discard()
	r.matchUpdates.Discard()
	clear(r.rosterBySite)
	clear(r.matchBySite)
	return nil
}

func settleKind[T any](ctx context.Context, staged *identity.Staging[T], ids *identity.Reservation[T]) error {
	durable, dropped, err := staged.Flush(ctx)
	if err != nil {
		return err
	}
	ids.ReleaseDurable(durable...)
	ids.Release(dropped...)
	return nil
}

// discard drops a batch that was rolled back, freeing every reservation it held.
func (r *run) discard() {
	r.teamIDs.Release(r.newTeams.IDs()...)
	r.rosterIDs.Release(r.newRosters.IDs()...)
	r.matchIDs.Release(r.newMatches.IDs()...)
	r.newTeams.Discard()
	r.newPlayers.Discard()
	r.newRosters.Discard()
	r.newMatches.Discard()
	r.playerUpdates.Discard()
	r.rosterUpdates.Discard()
	r.matchUpdates.Discard()
	clear(r.rosterBySite)
	clear(r.matchBySite)
}

// knownMatch reports whether any of ids is durable or already staged in this batch.
func (r *run) knownMatch(ctx context.Context, ids source.SiteIDs) (bool, error) {
	for _, id := range ids.All() {
		if _, ok := r.matchBySite[id]; ok {
			return true, nil
		}
		exists, err := r.store.ExistsBySiteID(ctx, entity.KindMatch, id)
		if err != nil {
			return false, crerr.Wrapf(err, "check match %s", id)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

func (r *run) knownRoster(ctx context.Context, ids source.SiteIDs) (bool, error) {
	for _, id := range ids.All() {
		if _, ok := r.rosterBySite[id]; ok {
			return true, nil
		}
		exists, err := r.store.ExistsBySiteID(ctx, entity.KindRoster, id)
		if err != nil {
			return false, crerr.Wrapf(err, "check roster %s", id)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// stageMatchStub reserves an id for a match seen in a listing. Known matches are left alone.
func (r *run) stageMatchStub(ctx context.Context, ids source.SiteIDs) (bool, error) {
	known, err := r.knownMatch(ctx, ids)
	if err != nil || known {
		return false, err
	}
	id, err := r.matchIDs.Reserve(ctx)
	if err != nil {
		return false, err
	}
	if _, err := r.newMatches.Stage(ctx, id, match.Match{ID: id, SiteIDs: ids}); err != nil {
		r.matchIDs.Release(id)
		return false, err
	}
	for _, site := range ids.All() {
		r.matchBySite[site] = id
	}
	return true, nil
}

func (r *run) stageRosterStub(ctx context.Context, ids source.SiteIDs) (bool, error) {
	known, err := r.knownRoster(ctx, ids)
	if err != nil || known {
		return false, err
	}
	if _, err := r.newRosterStub(ctx, ids); err != nil {
		return false, err
	}
	return true, nil
}

func (r *run) newRosterStub(ctx context.Context, ids source.SiteIDs) (int64, error) {
	id, err := r.rosterIDs.Reserve(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := r.newRosters.Stage(ctx, id, roster.Roster{ID: id, SiteIDs: ids}); err != nil {
		r.rosterIDs.Release(id)
		return 0, err
	}
	for _, site := range ids.All() {
		r.rosterBySite[site] = id
	}
	return id, nil
}

// resolveRoster returns the surrogate id for a roster site id, creating a stub when the roster
// is neither durable nor staged.
func (r *run) resolveRoster(ctx context.Context, site source.SiteID) (int64, error) {
	if id, ok := r.rosterBySite[site]; ok {
		return id, nil
	}
	existing, ok, err := r.store.RosterBySiteID(ctx, site)
	if err != nil {
		return 0, crerr.Wrapf(err, "load roster %s", site)
	}
	if ok {
		return existing.ID, nil
	}
	return r.newRosterStub(ctx, source.NewSiteIDs(site))
}

// ensurePlayer stages a stub for a steam id the store does not hold yet.
func (r *run) ensurePlayer(ctx context.Context, id int64) error {
	if id <= 0 || r.playerUpdates.IsStaged(id) {
		return nil
	}
	_, err := r.newPlayers.Stage(ctx, id, player.Stub(id))
	return err
}

// upsertMatch applies a decoded match onto the durable or staged record with the same site id.
// It reports true when the match is new.
func (r *run) upsertMatch(ctx context.Context, incoming match.Match) (bool, error) {
	site, ok := incoming.SiteIDs.Primary()
	if !ok {
		return false, crerr.Wrap(ErrInvalidInput, "match without site id")
	}

	var homeID, awayID int64
	var err error
	if incoming.HomeTeam != nil && incoming.AwayTeam != nil {
		if homeID, err = r.resolveRoster(ctx, *incoming.HomeTeam); err != nil {
			return false, err
		}
		if awayID, err = r.resolveRoster(ctx, *incoming.AwayTeam); err != nil {
			return false, err
		}
	}
	build := func(target *match.Match) {
		next := incoming
		next.ID = target.ID
		next.Results = nil
		if homeID != 0 && awayID != 0 {
			next.Results = next.BuildResults(homeID, awayID)
		}
		target.Overwrite(next)
	}

	if id, ok := r.matchBySite[site]; ok {
		staged, _ := r.newMatches.Get(id)
		build(&staged)
		r.newMatches.Replace(id, staged)
		return false, nil
	}

	existing, ok, err := r.store.MatchBySiteID(ctx, site)
	if err != nil {
		return false, crerr.Wrapf(err, "load match %s", site)
	}
	if ok {
		if staged, found := r.matchUpdates.Get(existing.ID); found {
			build(&staged)
			r.matchUpdates.Replace(existing.ID, staged)
			return false, nil
		}
		build(&existing)
		_, err := r.matchUpdates.Stage(ctx, existing.ID, existing)
		return false, err
	}

	id, err := r.matchIDs.Reserve(ctx)
	if err != nil {
		return false, err
	}
	created := match.Match{ID: id}
	build(&created)
	if _, err := r.newMatches.Stage(ctx, id, created); err != nil {
		r.matchIDs.Release(id)
		return false, err
	}
	for _, s := range created.SiteIDs.All() {
		r.matchBySite[s] = id
	}
	return true, nil
}

// upsertRoster applies a decoded roster, linking it to a team and staging player stubs for
// its members. It reports true when the roster is new.
func (r *run) upsertRoster(ctx context.Context, incoming roster.Roster) (bool, error) {
	site, ok := incoming.SiteIDs.Primary()
	if !ok {
		return false, crerr.Wrap(ErrInvalidInput, "roster without site id")
	}
	for _, playerID := range incoming.PlayerIDs() {
		if err := r.ensurePlayer(ctx, playerID); err != nil {
			return false, err
		}
	}

	apply := func(target *roster.Roster) error {
		next := incoming
		next.ID = target.ID
		next.TeamID = nil
		target.Overwrite(next)
		if target.TeamID != nil {
			return nil
		}
		teamID, err := r.linkTeam(ctx, incoming.LinkedTeams)
		if err != nil {
			return err
		}
		target.TeamID = &teamID
		return nil
	}

	if id, ok := r.rosterBySite[site]; ok {
		staged, _ := r.newRosters.Get(id)
		if err := apply(&staged); err != nil {
			return false, err
		}
		r.newRosters.Replace(id, staged)
		return false, nil
	}

	existing, ok, err := r.store.RosterBySiteID(ctx, site)
	if err != nil {
		return false, crerr.Wrapf(err, "load roster %s", site)
	}
	if ok {
		if staged, found := r.rosterUpdates.Get(existing.ID); found {
			existing = staged
		}
		if err := apply(&existing); err != nil {
			return false, err
		}
		if !r.rosterUpdates.Replace(existing.ID, existing) {
			if _, err := r.rosterUpdates.Stage(ctx, existing.ID, existing); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	id, err := r.rosterIDs.Reserve(ctx)
	if err != nil {
		return false, err
	}
	created := roster.Roster{ID: id}
	if err := apply(&created); err != nil {
		r.rosterIDs.Release(id)
		return false, err
	}
	if _, err := r.newRosters.Stage(ctx, id, created); err != nil {
		r.rosterIDs.Release(id)
		return false, err
	}
	for _, s := range created.SiteIDs.All() {
		r.rosterBySite[s] = id
	}
	return true, nil
}

// linkTeam returns the team of the first linked roster that already belongs to one, or
// reserves a new team.
func (r *run) linkTeam(ctx context.Context, linked []source.SiteID) (int64, error) {
	for _, site := range linked {
		if id, ok := r.rosterBySite[site]; ok {
			if staged, found := r.newRosters.Get(id); found && staged.TeamID != nil {
				return *staged.TeamID, nil
			}
			continue
		}
		existing, ok, err := r.store.RosterBySiteID(ctx, site)
		if err != nil {
			return 0, crerr.Wrapf(err, "load linked roster %s", site)
		}
		if !ok {
			continue
		}
		if staged, found := r.rosterUpdates.Get(existing.ID); found && staged.TeamID != nil {
			return *staged.TeamID, nil
		}
		if existing.TeamID != nil {
			return *existing.TeamID, nil
		}
	}

	id, err := r.teamIDs.Reserve(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := r.newTeams.Stage(ctx, id, team.Team{ID: id}); err != nil {
		r.teamIDs.Release(id)
		return 0, err
	}
	return id, nil
}

// upsertPlayer applies a decoded profile. It reports true when the player is new.
func (r *run) upsertPlayer(ctx context.Context, incoming player.Player) (bool, error) {
	if err := incoming.Validate(); err != nil {
		return false, crerr.Wrap(ErrInvalidInput, err.Error())
	}

	if staged, ok := r.newPlayers.Get(incoming.ID); ok {
		staged.Overwrite(incoming)
		r.newPlayers.Replace(incoming.ID, staged)
		return false, nil
	}
	if staged, ok := r.playerUpdates.Get(incoming.ID); ok {
		staged.Overwrite(incoming)
		r.playerUpdates.Replace(incoming.ID, staged)
		return false, nil
	}

	existing, ok, err := r.store.PlayerByID(ctx, incoming.ID)
	if err != nil {
		return false, crerr.Wrapf(err, "load player %d", incoming.ID)
	}
	if ok {
		existing.Overwrite(incoming)
		_, err := r.playerUpdates.Stage(ctx, existing.ID, existing)
		return false, err
	}
	created := player.Stub(incoming.ID)
	created.Overwrite(incoming)
	_, err = r.newPlayers.Stage(ctx, created.ID, created)
	return err == nil, err
}
