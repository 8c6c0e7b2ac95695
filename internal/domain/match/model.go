package match

import (
	"fmt"

	"github.com/riskibarqy/league-sync/internal/domain/source"
)

// Map is one played (or scheduled) map of a match, scored from the home roster's side.
type Map struct {
	Name      string
	Played    bool
	HomeScore int
	AwayScore int
}

// Result is the score of one roster on one map.
type Result struct {
	MatchID  int64
	RosterID int64
	MapName  string
	Score    int
}

type ResultKey struct {
	MatchID  int64
	RosterID int64
	MapName  string
}

func (r Result) Key() ResultKey {
	return ResultKey{MatchID: r.MatchID, RosterID: r.RosterID, MapName: r.MapName}
}

// Match is a scheduled fixture between two rosters. Complete is false for listing stubs.
type Match struct {
	ID       int64
	SiteIDs  source.SiteIDs
	Name     *string
	Epoch    *float64
	Forfeit  *bool
	Event    *source.SiteID
	Division *int64
	Region   *int64
	HomeTeam *source.SiteID
	AwayTeam *source.SiteID
	Maps     []Map
	Results  []Result
	Complete bool
}

func (m Match) Validate() error {
	if m.SiteIDs.IsEmpty() {
		return fmt.Errorf("match site id is required")
	}
	seen := make(map[ResultKey]struct{}, len(m.Results))
	for _, result := range m.Results {
		if _, ok := seen[result.Key()]; ok {
			return fmt.Errorf("duplicate match result roster=%d map=%s", result.RosterID, result.MapName)
		}
		seen[result.Key()] = struct{}{}
	}
	return nil
}

// Overwrite copies the mutable fields of other onto m, keeping m's surrogate id and merging site ids.
func (m *Match) Overwrite(other Match) {
	m.SiteIDs.Merge(other.SiteIDs)
	m.Name = other.Name
	m.Epoch = other.Epoch
	m.Forfeit = other.Forfeit
	m.Event = other.Event
	m.Division = other.Division
	m.Region = other.Region
	m.HomeTeam = other.HomeTeam
	m.AwayTeam = other.AwayTeam
	m.Maps = other.Maps
	m.Complete = other.Complete

	results := make([]Result, 0, len(other.Results))
	seen := make(map[ResultKey]struct{}, len(other.Results))
	for _, result := range other.Results {
		result.MatchID = m.ID
		if _, ok := seen[result.Key()]; ok {
			continue
		}
		seen[result.Key()] = struct{}{}
		results = append(results, result)
	}
	m.Results = results
}

// BuildResults expands the maps into one result per roster per map, keyed on the given roster ids.
func (m Match) BuildResults(homeRosterID, awayRosterID int64) []Result {
	out := make([]Result, 0, len(m.Maps)*2)
	seen := make(map[ResultKey]struct{}, len(m.Maps)*2)
	add := func(result Result) {
		if _, ok := seen[result.Key()]; ok {
			return
		}
		seen[result.Key()] = struct{}{}
		out = append(out, result)
	}
	for _, mp := range m.Maps {
		add(Result{MatchID: m.ID, RosterID: homeRosterID, MapName: mp.Name, Score: mp.HomeScore})
		add(Result{MatchID: m.ID, RosterID: awayRosterID, MapName: mp.Name, Score: mp.AwayScore})
	}
	return out
}
