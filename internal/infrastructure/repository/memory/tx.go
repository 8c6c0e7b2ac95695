package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/domain/team"
)

var ErrTxDone = errors.New("transaction already finished")

// Tx mutates a private copy of the store state. Foreign keys are checked the way the
// postgres schema checks them.
type Tx struct {
	store *Store
	state *state
	done  bool
}

func (t *Tx) InsertTeam(_ context.Context, item team.Team) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	if _, ok := t.state.teams[item.ID]; ok {
		return false, nil
	}
	t.state.teams[item.ID] = item
	return true, nil
}

func (t *Tx) DeleteTeam(_ context.Context, id int64) error {
	if t.done {
		return ErrTxDone
	}
	for _, r := range t.state.rosters {
		if r.TeamID != nil && *r.TeamID == id {
			return fmt.Errorf("team %d still referenced by roster %d", id, r.ID)
		}
	}
	delete(t.state.teams, id)
	return nil
}

func (t *Tx) InsertPlayer(_ context.Context, item player.Player) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	if err := item.Validate(); err != nil {
		return false, err
	}
	if _, ok := t.state.players[item.ID]; ok {
		return false, nil
	}
	t.state.players[item.ID] = item
	return true, nil
}

func (t *Tx) UpdatePlayer(_ context.Context, item player.Player) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.state.players[item.ID]; !ok {
		return fmt.Errorf("update player %d: not found", item.ID)
	}
	t.state.players[item.ID] = item
	return nil
}

func (t *Tx) InsertRoster(_ context.Context, item roster.Roster) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	if err := item.Validate(); err != nil {
		return false, err
	}
	if _, ok := t.state.rosters[item.ID]; ok {
		return false, nil
	}
	for _, site := range item.SiteIDs.All() {
		if _, ok := t.state.rosterSites[site]; ok {
			return false, nil
		}
	}
	if err := t.checkRoster(item); err != nil {
		return false, err
	}

	t.state.rosters[item.ID] = cloneRoster(item)
	for _, site := range item.SiteIDs.All() {
		t.state.rosterSites[site] = item.ID
	}
	return true, nil
}

func (t *Tx) UpdateRoster(_ context.Context, item roster.Roster) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.state.rosters[item.ID]; !ok {
		return fmt.Errorf("update roster %d: not found", item.ID)
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if err := t.checkRoster(item); err != nil {
		return err
	}
	if err := claimSites(t.state.rosterSites, item.SiteIDs, item.ID, entity.KindRoster); err != nil {
		return err
	}
	t.state.rosters[item.ID] = cloneRoster(item)
	return nil
}

func (t *Tx) RosterIDBySiteID(_ context.Context, id source.SiteID) (int64, bool, error) {
	if t.done {
		return 0, false, ErrTxDone
	}
	key, ok := t.state.rosterSites[id]
	return key, ok, nil
}

func (t *Tx) InsertMatch(_ context.Context, item match.Match) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	if err := item.Validate(); err != nil {
		return false, err
	}
	if _, ok := t.state.matches[item.ID]; ok {
		return false, nil
	}
	for _, site := range item.SiteIDs.All() {
		if _, ok := t.state.matchSites[site]; ok {
			return false, nil
		}
	}
	if err := t.checkResults(item); err != nil {
		return false, err
	}

	t.state.matches[item.ID] = cloneMatch(item)
	for _, site := range item.SiteIDs.All() {
		t.state.matchSites[site] = item.ID
	}
	return true, nil
}

func (t *Tx) UpdateMatch(_ context.Context, item match.Match) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.state.matches[item.ID]; !ok {
		return fmt.Errorf("update match %d: not found", item.ID)
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if err := t.checkResults(item); err != nil {
		return err
	}
	if err := claimSites(t.state.matchSites, item.SiteIDs, item.ID, entity.KindMatch); err != nil {
		return err
	}
	t.state.matches[item.ID] = cloneMatch(item)
	return nil
}

func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.state = t.state
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.state = nil
	return nil
}

func (t *Tx) checkRoster(item roster.Roster) error {
	if item.TeamID != nil {
		if _, ok := t.state.teams[*item.TeamID]; !ok {
			return fmt.Errorf("roster %d references missing team %d", item.ID, *item.TeamID)
		}
	}
	for _, member := range item.Members {
		if _, ok := t.state.players[member.PlayerID]; !ok {
			return fmt.Errorf("roster %d references missing player %d", item.ID, member.PlayerID)
		}
	}
	return nil
}

func (t *Tx) checkResults(item match.Match) error {
	for _, result := range item.Results {
		if result.MatchID != item.ID {
			return fmt.Errorf("match %d carries result for match %d", item.ID, result.MatchID)
		}
		if _, ok := t.state.rosters[result.RosterID]; !ok {
			return fmt.Errorf("match %d references missing roster %d", item.ID, result.RosterID)
		}
	}
	return nil
}

func claimSites(index map[source.SiteID]int64, ids source.SiteIDs, owner int64, kind entity.Kind) error {
	for _, site := range ids.All() {
		if current, ok := index[site]; ok && current != owner {
			return fmt.Errorf("%s site id %s already belongs to %d", kind, site, current)
		}
	}
	for _, site := range ids.All() {
		index[site] = owner
	}
	return nil
}

func unknownKind(kind entity.Kind) error {
	return fmt.Errorf("unknown entity kind %q", kind)
}
