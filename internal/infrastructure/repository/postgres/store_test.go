package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestMaxSurrogateIDAndCount(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(match_id), 0) FROM matches")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(7)))
	maxID, err := store.MaxSurrogateID(ctx, entity.KindMatch)
	require.NoError(t, err)
	require.Equal(t, int64(7), maxID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM rosters WHERE etf2l_team_id IS NOT NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	count, err := store.CountDurable(ctx, entity.KindRoster, source.ETF2L)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM players")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	count, err = store.CountDurable(ctx, entity.KindPlayer, source.RGL)
	require.NoError(t, err)
	require.Equal(t, 12, count)

	_, err = store.CountDurable(ctx, entity.KindMatch, source.Internal)
	require.Error(t, err)
}

func TestExistsBySiteIDMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM matches WHERE rgl_match_id = $1 LIMIT 1")).
		WithArgs(int64(32)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}))
	exists, err := store.ExistsBySiteID(context.Background(), entity.KindMatch, source.New(source.RGL, 32))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestIncompleteRostersPagesBySiteColumn(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT rgl_team_id FROM rosters WHERE is_complete = $1 AND rgl_team_id > $2 ORDER BY rgl_team_id LIMIT 2")).
		WithArgs(false, int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"rgl_team_id"}).AddRow(int64(41)).AddRow(int64(54)))
	ids, err := store.IncompleteRosters(context.Background(), source.RGL, 40, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{41, 54}, ids)
}

func TestIncompletePlayersJoinsSourceRosters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT steam_id FROM players WHERE is_complete = $1 AND steam_id > $2 AND " +
		"EXISTS (SELECT 1 FROM roster_members rm JOIN rosters r ON r.roster_id = rm.roster_id " +
		"WHERE rm.player_id = players.steam_id AND r.etf2l_team_id IS NOT NULL) ORDER BY steam_id LIMIT 5")).
		WithArgs(false, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"steam_id"}).AddRow(int64(76561198000000001)))
	ids, err := store.IncompletePlayers(context.Background(), source.ETF2L, 0, 5)
	require.NoError(t, err)
	require.Equal(t, []int64{76561198000000001}, ids)
}

func TestMatchBySiteIDDecodesRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE etf2l_match_id = $1 LIMIT 1")).
		WithArgs(int64(900)).
		WillReturnRows(sqlmock.NewRows(matchColumns).AddRow(
			int64(4), nil, nil, int64(900), "Week 1", 1497490200.0,
			false, "ETF2L:12", int64(3), nil, "ETF2L:5", "ETF2L:6",
			`[{"name":"cp_process_final","played":true,"home_score":5,"away_score":2}]`, true,
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM match_results WHERE match_id = $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"match_id", "roster_id", "map_name", "score"}).
			AddRow(int64(4), int64(1), "cp_process_final", 5).
			AddRow(int64(4), int64(2), "cp_process_final", 2))

	got, ok, err := store.MatchBySiteID(context.Background(), source.New(source.ETF2L, 900))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, source.NewSiteIDs(source.New(source.ETF2L, 900)), got.SiteIDs)
	require.Equal(t, source.New(source.ETF2L, 12), *got.Event)
	require.Equal(t, source.New(source.ETF2L, 5), *got.HomeTeam)
	require.Nil(t, got.Region)
	require.Equal(t, []match.Map{{Name: "cp_process_final", Played: true, HomeScore: 5, AwayScore: 2}}, got.Maps)
	require.Len(t, got.Results, 2)
	require.True(t, got.Complete)
}

func TestRosterBySiteIDDecodesMembers(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rosters WHERE rgl_team_id = $1 LIMIT 1")).
		WithArgs(int64(54)).
		WillReturnRows(sqlmock.NewRows(rosterColumns).AddRow(
			int64(2), int64(1), int64(54), nil, nil, "froyotech", "FROYO", nil, nil, "{ETF2L:9}", true,
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM roster_members WHERE roster_id = $1")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"roster_id", "player_id", "joined_at", "left_at"}).
			AddRow(int64(2), int64(76561198000000001), 1493596800.0, nil))

	got, ok, err := store.RosterBySiteID(context.Background(), source.New(source.RGL, 54))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), *got.TeamID)
	require.Equal(t, []source.SiteID{source.New(source.ETF2L, 9)}, got.LinkedTeams)
	require.Equal(t, []roster.Membership{{PlayerID: 76561198000000001, Joined: 1493596800}}, got.Members)
}

func TestInsertRosterReportsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO rosters (roster_id, team_id, rgl_team_id")).
		WillReturnRows(sqlmock.NewRows([]string{"roster_id"}))
	mock.ExpectRollback()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	inserted, err := tx.InsertRoster(ctx, roster.Roster{
		ID:      3,
		SiteIDs: source.NewSiteIDs(source.New(source.RGL, 54)),
		Members: []roster.Membership{{PlayerID: 76561198000000001}},
	})
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, tx.Rollback())
}

func TestDeleteTeam(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teams WHERE team_id = $1")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteTeam(ctx, 4))
	require.NoError(t, tx.Commit())
}

func TestInsertMatchWritesResults(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT DO NOTHING RETURNING match_id")).
		WillReturnRows(sqlmock.NewRows([]string{"match_id"}).AddRow(int64(1)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM match_results WHERE match_id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO match_results (match_id, roster_id, map_name, score) VALUES ($1, $2, $3, $4), ($5, $6, $7, $8)")).
		WithArgs(int64(1), int64(1), "koth_product", 3, int64(1), int64(2), "koth_product", 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	item := match.Match{
		ID:      1,
		SiteIDs: source.NewSiteIDs(source.New(source.RGL, 32)),
		Maps:    []match.Map{{Name: "koth_product", Played: true, HomeScore: 3, AwayScore: 1}},
	}
	item.Results = item.BuildResults(1, 2)
	inserted, err := tx.InsertMatch(ctx, item)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, tx.Commit())
}

func TestUpdateErrors(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE players SET display_name = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE matches SET rgl_match_id = $1")).
		WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	err = tx.UpdatePlayer(ctx, player.Stub(76561198000000001))
	require.ErrorContains(t, err, "not found")

	err = tx.UpdateMatch(ctx, match.Match{ID: 2, SiteIDs: source.NewSiteIDs(source.New(source.RGL, 1))})
	require.ErrorContains(t, err, "belongs to another row")
	require.True(t, isUniqueViolation(err))
	require.NoError(t, tx.Rollback())
}

func TestParseSiteID(t *testing.T) {
	id, err := parseSiteID("ETF2L:42")
	require.NoError(t, err)
	require.Equal(t, source.New(source.ETF2L, 42), id)

	for _, raw := range []string{"ETF2L", "ESEA:1", "RGL:x"} {
		_, err := parseSiteID(raw)
		require.Error(t, err, raw)
	}
}
