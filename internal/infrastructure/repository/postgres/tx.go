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
	"github.com/riskibarqy/league-sync/internal/domain/team"
	qb "github.com/riskibarqy/league-sync/internal/platform/querybuilder"
)

// onConflict makes inserts that hit any unique constraint return no row.
const onConflict = "ON CONFLICT DO NOTHING RETURNING "

type Tx struct {
	tx *sqlx.Tx
}

func (t *Tx) InsertTeam(ctx context.Context, item team.Team) (bool, error) {
	return t.insert(ctx, entity.KindTeam, toTeamModel(item))
}

func (t *Tx) DeleteTeam(ctx context.Context, id int64) error {
	query, args, err := qb.DeleteFrom("teams").Where(qb.Eq("team_id", id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete team query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete team %d: %w", id, err)
	}
	return nil
}

func (t *Tx) InsertPlayer(ctx context.Context, item player.Player) (bool, error) {
	if err := item.Validate(); err != nil {
		return false, err
	}
	return t.insert(ctx, entity.KindPlayer, toPlayerModel(item))
}

func (t *Tx) UpdatePlayer(ctx context.Context, item player.Player) error {
	if err := item.Validate(); err != nil {
		return err
	}
	return t.update(ctx, entity.KindPlayer, item.ID, toPlayerModel(item))
}

func (t *Tx) InsertRoster(ctx context.Context, item roster.Roster) (bool, error) {
	if err := item.Validate(); err != nil {
		return false, err
	}
	inserted, err := t.insert(ctx, entity.KindRoster, toRosterModel(item))
	if err != nil || !inserted {
		return inserted, err
	}
	if err := t.replaceRows(ctx, "roster_members", "roster_id", item.ID, toMembershipModels(item)); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tx) UpdateRoster(ctx context.Context, item roster.Roster) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if err := t.update(ctx, entity.KindRoster, item.ID, toRosterModel(item)); err != nil {
		return err
	}
	return t.replaceRows(ctx, "roster_members", "roster_id", item.ID, toMembershipModels(item))
}

func (t *Tx) RosterIDBySiteID(ctx context.Context, id source.SiteID) (int64, bool, error) {
	col, err := tables[entity.KindRoster].site(id.Source)
	if err != nil {
		return 0, false, err
	}
	query, args, err := qb.Select("roster_id").From("rosters").Where(qb.Eq(col, id.ID)).ToSQL()
	if err != nil {
		return 0, false, fmt.Errorf("build roster id query: %w", err)
	}

	var rosterID int64
	if err := t.tx.GetContext(ctx, &rosterID, query, args...); err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get roster id by site id: %w", err)
	}
	return rosterID, true, nil
}

func (t *Tx) InsertMatch(ctx context.Context, item match.Match) (bool, error) {
	if err := item.Validate(); err != nil {
		return false, err
	}
	model, err := toMatchModel(item)
	if err != nil {
		return false, err
	}
	inserted, err := t.insert(ctx, entity.KindMatch, model)
	if err != nil || !inserted {
		return inserted, err
	}
	if err := t.replaceRows(ctx, "match_results", "match_id", item.ID, toResultModels(item)); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tx) UpdateMatch(ctx context.Context, item match.Match) error {
	if err := item.Validate(); err != nil {
		return err
	}
	model, err := toMatchModel(item)
	if err != nil {
		return err
	}
	if err := t.update(ctx, entity.KindMatch, item.ID, model); err != nil {
		return err
	}
	return t.replaceRows(ctx, "match_results", "match_id", item.ID, toResultModels(item))
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func (t *Tx) insert(ctx context.Context, kind entity.Kind, model any) (bool, error) {
	tbl, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	query, args, err := qb.InsertModel(tbl.name, model, onConflict+tbl.id)
	if err != nil {
		return false, fmt.Errorf("build insert %s query: %w", kind, err)
	}

	var id int64
	if err := t.tx.GetContext(ctx, &id, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert %s: %w", kind, err)
	}
	return true, nil
}

func (t *Tx) update(ctx context.Context, kind entity.Kind, id int64, model any) error {
	tbl, err := tableFor(kind)
	if err != nil {
		return err
	}
	query, args, err := qb.UpdateModel(tbl.name, model, tbl.id)
	if err != nil {
		return fmt.Errorf("build update %s query: %w", kind, err)
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update %s %d: site id belongs to another row: %w", kind, id, err)
		}
		return fmt.Errorf("update %s %d: %w", kind, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %d rows affected: %w", kind, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update %s %d: not found", kind, id)
	}
	return nil
}

// replaceRows swaps the child rows owned by parent for rows.
func (t *Tx) replaceRows(ctx context.Context, tableName, parentColumn string, parent int64, rows []any) error {
	query, args, err := qb.DeleteFrom(tableName).Where(qb.Eq(parentColumn, parent)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete %s query: %w", tableName, err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", tableName, err)
	}
	if len(rows) == 0 {
		return nil
	}

	query, args, err = qb.InsertModels(tableName, rows, "")
	if err != nil {
		return fmt.Errorf("build insert %s query: %w", tableName, err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", tableName, err)
	}
	return nil
}
