package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/domain/team"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

// Store is an in-process implementation of usecase.Store. Transactions work on a copy of the
// state that replaces it on commit, so one writer at a time is assumed.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	teams       map[int64]team.Team
	players     map[int64]player.Player
	rosters     map[int64]roster.Roster
	matches     map[int64]match.Match
	rosterSites map[source.SiteID]int64
	matchSites  map[source.SiteID]int64
}

func newState() *state {
	return &state{
		teams:       make(map[int64]team.Team),
		players:     make(map[int64]player.Player),
		rosters:     make(map[int64]roster.Roster),
		matches:     make(map[int64]match.Match),
		rosterSites: make(map[source.SiteID]int64),
		matchSites:  make(map[source.SiteID]int64),
	}
}

// clone copies the indexes. Records are stored as private copies, so values can be shared.
func (s *state) clone() *state {
	return &state{
		teams:       maps.Clone(s.teams),
		players:     maps.Clone(s.players),
		rosters:     maps.Clone(s.rosters),
		matches:     maps.Clone(s.matches),
		rosterSites: maps.Clone(s.rosterSites),
		matchSites:  maps.Clone(s.matchSites),
	}
}

func NewStore() *Store {
	return &Store{state: newState()}
}

var _ usecase.Store = (*Store)(nil)

func (s *Store) MaxSurrogateID(_ context.Context, kind entity.Kind) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case entity.KindMatch:
		return maxKey(s.state.matches), nil
	case entity.KindRoster:
		return maxKey(s.state.rosters), nil
	case entity.KindTeam:
		return maxKey(s.state.teams), nil
	case entity.KindPlayer:
		return maxKey(s.state.players), nil
	default:
		return 0, unknownKind(kind)
	}
}

func (s *Store) CountDurable(_ context.Context, kind entity.Kind, src source.Source) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case entity.KindMatch:
		return countSites(s.state.matchSites, src), nil
	case entity.KindRoster:
		return countSites(s.state.rosterSites, src), nil
	case entity.KindTeam:
		return len(s.state.teams), nil
	case entity.KindPlayer:
		return len(s.state.players), nil
	default:
		return 0, unknownKind(kind)
	}
}

func (s *Store) ExistsBySiteID(_ context.Context, kind entity.Kind, id source.SiteID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case entity.KindMatch:
		_, ok := s.state.matchSites[id]
		return ok, nil
	case entity.KindRoster:
		_, ok := s.state.rosterSites[id]
		return ok, nil
	default:
		return false, unknownKind(kind)
	}
}

func (s *Store) ExistsByID(_ context.Context, kind entity.Kind, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ok bool
	switch kind {
	case entity.KindMatch:
		_, ok = s.state.matches[id]
	case entity.KindRoster:
		_, ok = s.state.rosters[id]
	case entity.KindTeam:
		_, ok = s.state.teams[id]
	case entity.KindPlayer:
		_, ok = s.state.players[id]
	default:
		return false, unknownKind(kind)
	}
	return ok, nil
}

func (s *Store) MatchBySiteID(_ context.Context, id source.SiteID) (match.Match, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.state.matchSites[id]
	if !ok {
		return match.Match{}, false, nil
	}
	return cloneMatch(s.state.matches[key]), true, nil
}

func (s *Store) RosterBySiteID(_ context.Context, id source.SiteID) (roster.Roster, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.state.rosterSites[id]
	if !ok {
		return roster.Roster{}, false, nil
	}
	return cloneRoster(s.state.rosters[key]), true, nil
}

func (s *Store) PlayerByID(_ context.Context, id int64) (player.Player, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.state.players[id]
	return p, ok, nil
}

func (s *Store) IncompleteMatches(_ context.Context, src source.Source, afterID int64, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return incompleteSites(s.state.matches, src, afterID, limit, func(m match.Match) (source.SiteIDs, bool) {
		return m.SiteIDs, m.Complete
	}), nil
}

func (s *Store) IncompleteRosters(_ context.Context, src source.Source, afterID int64, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return incompleteSites(s.state.rosters, src, afterID, limit, func(r roster.Roster) (source.SiteIDs, bool) {
		return r.SiteIDs, r.Complete
	}), nil
}

func (s *Store) IncompletePlayers(_ context.Context, src source.Source, afterID int64, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	out := make([]int64, 0)
	for _, r := range s.state.rosters {
		if _, ok := r.SiteIDs.Get(src); !ok {
			continue
		}
		for _, member := range r.Members {
			id := member.PlayerID
			if _, dup := seen[id]; dup || id <= afterID {
				continue
			}
			if p, ok := s.state.players[id]; ok && !p.Complete {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return truncate(out, limit), nil
}

func (s *Store) Begin(_ context.Context) (usecase.Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Tx{store: s, state: s.state.clone()}, nil
}

// Matches returns every stored match ordered by surrogate id.
func (s *Store) Matches() []match.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]match.Match, 0, len(s.state.matches))
	for _, id := range slices.Sorted(maps.Keys(s.state.matches)) {
		out = append(out, cloneMatch(s.state.matches[id]))
	}
	return out
}

// Rosters returns every stored roster ordered by surrogate id.
func (s *Store) Rosters() []roster.Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]roster.Roster, 0, len(s.state.rosters))
	for _, id := range slices.Sorted(maps.Keys(s.state.rosters)) {
		out = append(out, cloneRoster(s.state.rosters[id]))
	}
	return out
}

// Players returns every stored player ordered by steam id.
func (s *Store) Players() []player.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]player.Player, 0, len(s.state.players))
	for _, id := range slices.Sorted(maps.Keys(s.state.players)) {
		out = append(out, s.state.players[id])
	}
	return out
}

func (s *Store) Teams() []team.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]team.Team, 0, len(s.state.teams))
	for _, id := range slices.Sorted(maps.Keys(s.state.teams)) {
		out = append(out, s.state.teams[id])
	}
	return out
}

func maxKey[V any](items map[int64]V) int64 {
	var out int64
	for id := range items {
		out = max(out, id)
	}
	return out
}

func countSites(index map[source.SiteID]int64, src source.Source) int {
	n := 0
	for site := range index {
		if site.Source == src {
			n++
		}
	}
	return n
}

func incompleteSites[V any](items map[int64]V, src source.Source, afterID int64, limit int, view func(V) (source.SiteIDs, bool)) []int64 {
	out := make([]int64, 0)
	for _, item := range items {
		ids, complete := view(item)
		if complete {
			continue
		}
		site, ok := ids.Get(src)
		if !ok || site.ID <= afterID {
			continue
		}
		out = append(out, site.ID)
	}
	return truncate(out, limit)
}

func truncate(ids []int64, limit int) []int64 {
	slices.Sort(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func cloneMatch(m match.Match) match.Match {
	copied := m
	copied.Maps = slices.Clone(m.Maps)
	copied.Results = slices.Clone(m.Results)
	return copied
}

func cloneRoster(r roster.Roster) roster.Roster {
	copied := r
	copied.Members = slices.Clone(r.Members)
	copied.LinkedTeams = slices.Clone(r.LinkedTeams)
	return copied
}
