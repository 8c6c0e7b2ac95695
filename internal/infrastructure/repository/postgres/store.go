package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	qb "github.com/riskibarqy/league-sync/internal/platform/querybuilder"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

// Store persists synchronized entities in postgres. The schema lives in migrations/.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

var _ usecase.Store = (*Store)(nil)

func (s *Store) MaxSurrogateID(ctx context.Context, kind entity.Kind) (int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	query, args, err := qb.Max(t.id).From(t.name).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build max %s id query: %w", kind, err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("max %s id: %w", kind, err)
	}
	return id, nil
}

func (s *Store) CountDurable(ctx context.Context, kind entity.Kind, src source.Source) (int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	b := qb.Count().From(t.name)
	if len(t.sites) > 0 {
		col, err := t.site(src)
		if err != nil {
			return 0, err
		}
		b.Where(qb.IsNotNull(col))
	}
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count %s query: %w", kind, err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return count, nil
}

func (s *Store) ExistsBySiteID(ctx context.Context, kind entity.Kind, id source.SiteID) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	col, err := t.site(id.Source)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, t, qb.Eq(col, id.ID))
}

func (s *Store) ExistsByID(ctx context.Context, kind entity.Kind, id int64) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, t, qb.Eq(t.id, id))
}

func (s *Store) exists(ctx context.Context, t table, cond qb.Condition) (bool, error) {
	query, args, err := qb.Select("1").From(t.name).Where(cond).Limit(1).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build %s exists query: %w", t.name, err)
	}

	var one int
	if err := s.db.GetContext(ctx, &one, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check %s exists: %w", t.name, err)
	}
	return true, nil
}

func (s *Store) MatchBySiteID(ctx context.Context, id source.SiteID) (match.Match, bool, error) {
	col, err := tables[entity.KindMatch].site(id.Source)
	if err != nil {
		return match.Match{}, false, err
	}
	return getMatch(ctx, s.db, qb.Eq(col, id.ID))
}

func (s *Store) RosterBySiteID(ctx context.Context, id source.SiteID) (roster.Roster, bool, error) {
	col, err := tables[entity.KindRoster].site(id.Source)
	if err != nil {
		return roster.Roster{}, false, err
	}
	return getRoster(ctx, s.db, qb.Eq(col, id.ID))
}

func (s *Store) PlayerByID(ctx context.Context, id int64) (player.Player, bool, error) {
	query, args, err := qb.Select(playerColumns...).From("players").Where(qb.Eq("steam_id", id)).ToSQL()
	if err != nil {
		return player.Player{}, false, fmt.Errorf("build get player query: %w", err)
	}

	var row playerTableModel
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return player.Player{}, false, nil
		}
		return player.Player{}, false, fmt.Errorf("get player: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *Store) IncompleteMatches(ctx context.Context, src source.Source, afterID int64, limit int) ([]int64, error) {
	col, err := tables[entity.KindMatch].site(src)
	if err != nil {
		return nil, err
	}
	return s.incomplete(ctx, "matches", col, afterID, limit)
}

func (s *Store) IncompleteRosters(ctx context.Context, src source.Source, afterID int64, limit int) ([]int64, error) {
	col, err := tables[entity.KindRoster].site(src)
	if err != nil {
		return nil, err
	}
	return s.incomplete(ctx, "rosters", col, afterID, limit)
}

func (s *Store) IncompletePlayers(ctx context.Context, src source.Source, afterID int64, limit int) ([]int64, error) {
	col, err := tables[entity.KindRoster].site(src)
	if err != nil {
		return nil, err
	}
	onSite := qb.Expr("EXISTS (SELECT 1 FROM roster_members rm JOIN rosters r ON r.roster_id = rm.roster_id" +
		" WHERE rm.player_id = players.steam_id AND r." + col + " IS NOT NULL)")
	return s.incomplete(ctx, "players", "steam_id", afterID, limit, onSite)
}

func (s *Store) incomplete(ctx context.Context, tableName, col string, afterID int64, limit int, extra ...qb.Condition) ([]int64, error) {
	conds := append([]qb.Condition{qb.Eq("is_complete", false), qb.Gt(col, afterID)}, extra...)
	query, args, err := qb.Select(col).From(tableName).
		Where(conds...).
		OrderBy(col).
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build incomplete %s query: %w", tableName, err)
	}

	ids := make([]int64, 0, limit)
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list incomplete %s: %w", tableName, err)
	}
	return ids, nil
}

func (s *Store) Begin(ctx context.Context) (usecase.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func getMatch(ctx context.Context, q sqlx.QueryerContext, cond qb.Condition) (match.Match, bool, error) {
	query, args, err := qb.Select(matchColumns...).From("matches").Where(cond).Limit(1).ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build get match query: %w", err)
	}
	var row matchTableModel
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("get match: %w", err)
	}

	query, args, err = qb.Select("match_id", "roster_id", "map_name", "score").From("match_results").
		Where(qb.Eq("match_id", row.ID)).
		OrderBy("map_name", "roster_id").
		ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build list match results query: %w", err)
	}
	var results []resultTableModel
	if err := sqlx.SelectContext(ctx, q, &results, query, args...); err != nil {
		return match.Match{}, false, fmt.Errorf("list match results: %w", err)
	}

	out, err := row.toDomain(results)
	if err != nil {
		return match.Match{}, false, err
	}
	return out, true, nil
}

func getRoster(ctx context.Context, q sqlx.QueryerContext, cond qb.Condition) (roster.Roster, bool, error) {
	query, args, err := qb.Select(rosterColumns...).From("rosters").Where(cond).Limit(1).ToSQL()
	if err != nil {
		return roster.Roster{}, false, fmt.Errorf("build get roster query: %w", err)
	}
	var row rosterTableModel
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNotFound(err) {
			return roster.Roster{}, false, nil
		}
		return roster.Roster{}, false, fmt.Errorf("get roster: %w", err)
	}

	query, args, err = qb.Select("roster_id", "player_id", "joined_at", "left_at").From("roster_members").
		Where(qb.Eq("roster_id", row.ID)).
		OrderBy("joined_at", "player_id").
		ToSQL()
	if err != nil {
		return roster.Roster{}, false, fmt.Errorf("build list roster members query: %w", err)
	}
	var members []membershipTableModel
	if err := sqlx.SelectContext(ctx, q, &members, query, args...); err != nil {
		return roster.Roster{}, false, fmt.Errorf("list roster members: %w", err)
	}

	out, err := row.toDomain(members)
	if err != nil {
		return roster.Roster{}, false, err
	}
	return out, true, nil
}
