package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

const uniqueViolation pq.ErrorCode = "23505"

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// table describes where one entity kind lives. sites holds a site id column per
// source in source.Sites order, and is empty for kinds with no external identity.
type table struct {
	name  string
	id    string
	sites []string
}

var tables = map[entity.Kind]table{
	entity.KindMatch:  {name: "matches", id: "match_id", sites: []string{"rgl_match_id", "ugc_match_id", "etf2l_match_id"}},
	entity.KindRoster: {name: "rosters", id: "roster_id", sites: []string{"rgl_team_id", "ugc_team_id", "etf2l_team_id"}},
	entity.KindTeam:   {name: "teams", id: "team_id"},
	entity.KindPlayer: {name: "players", id: "steam_id"},
}

func tableFor(kind entity.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return t, nil
}

func (t table) site(src source.Source) (string, error) {
	for i, s := range source.Sites {
		if s == src && i < len(t.sites) {
			return t.sites[i], nil
		}
	}
	return "", fmt.Errorf("%s has no %s site id column", t.name, src)
}
