package postgres

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/lib/pq"

	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/domain/team"
)

type teamTableModel struct {
	ID int64 `db:"team_id"`
}

type playerTableModel struct {
	SteamID     int64          `db:"steam_id"`
	DisplayName sql.NullString `db:"display_name"`
	Forename    sql.NullString `db:"forename"`
	Surname     sql.NullString `db:"surname"`
	Avatar      sql.NullString `db:"avatar"`
	Banned      bool           `db:"is_banned"`
	Verified    bool           `db:"is_verified"`
	Complete    bool           `db:"is_complete"`
}

var playerColumns = []string{"steam_id", "display_name", "forename", "surname", "avatar", "is_banned", "is_verified", "is_complete"}

type rosterTableModel struct {
	ID          int64           `db:"roster_id"`
	TeamID      sql.NullInt64   `db:"team_id"`
	RGLTeamID   sql.NullInt64   `db:"rgl_team_id"`
	UGCTeamID   sql.NullInt64   `db:"ugc_team_id"`
	ETF2LTeamID sql.NullInt64   `db:"etf2l_team_id"`
	Name        sql.NullString  `db:"roster_name"`
	Tag         sql.NullString  `db:"roster_tag"`
	CreatedAt   sql.NullFloat64 `db:"created_at"`
	UpdatedAt   sql.NullFloat64 `db:"updated_at"`
	LinkedTeams pq.StringArray  `db:"linked_teams"`
	Complete    bool            `db:"is_complete"`
}

var rosterColumns = []string{
	"roster_id", "team_id", "rgl_team_id", "ugc_team_id", "etf2l_team_id",
	"roster_name", "roster_tag", "created_at", "updated_at", "linked_teams", "is_complete",
}

type membershipTableModel struct {
	RosterID int64           `db:"roster_id"`
	PlayerID int64           `db:"player_id"`
	JoinedAt float64         `db:"joined_at"`
	LeftAt   sql.NullFloat64 `db:"left_at"`
}

// matchTableModel keeps maps as a jsonb document. Event and team references are
// stored in their "SOURCE:id" text form.
type matchTableModel struct {
	ID           int64           `db:"match_id"`
	RGLMatchID   sql.NullInt64   `db:"rgl_match_id"`
	UGCMatchID   sql.NullInt64   `db:"ugc_match_id"`
	ETF2LMatchID sql.NullInt64   `db:"etf2l_match_id"`
	Name         sql.NullString  `db:"match_name"`
	Epoch        sql.NullFloat64 `db:"match_epoch"`
	Forfeit      sql.NullBool    `db:"was_forfeit"`
	Event        sql.NullString  `db:"event_ref"`
	Division     sql.NullInt64   `db:"division_id"`
	Region       sql.NullInt64   `db:"region_id"`
	HomeTeam     sql.NullString  `db:"home_team_ref"`
	AwayTeam     sql.NullString  `db:"away_team_ref"`
	Maps         string          `db:"maps"`
	Complete     bool            `db:"is_complete"`
}

var matchColumns = []string{
	"match_id", "rgl_match_id", "ugc_match_id", "etf2l_match_id", "match_name", "match_epoch",
	"was_forfeit", "event_ref", "division_id", "region_id", "home_team_ref", "away_team_ref", "maps", "is_complete",
}

type resultTableModel struct {
	MatchID  int64  `db:"match_id"`
	RosterID int64  `db:"roster_id"`
	MapName  string `db:"map_name"`
	Score    int    `db:"score"`
}

type mapDocument struct {
	Name      string `json:"name"`
	Played    bool   `json:"played"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
}

func toTeamModel(item team.Team) teamTableModel {
	return teamTableModel{ID: item.ID}
}

func toPlayerModel(item player.Player) playerTableModel {
	return playerTableModel{
		SteamID:     item.ID,
		DisplayName: nullString(item.DisplayName),
		Forename:    nullString(item.Forename),
		Surname:     nullString(item.Surname),
		Avatar:      nullString(item.Avatar),
		Banned:      item.Banned,
		Verified:    item.Verified,
		Complete:    item.Complete,
	}
}

func (m playerTableModel) toDomain() player.Player {
	return player.Player{
		ID:          m.SteamID,
		DisplayName: optionalString(m.DisplayName),
		Forename:    optionalString(m.Forename),
		Surname:     optionalString(m.Surname),
		Avatar:      optionalString(m.Avatar),
		Banned:      m.Banned,
		Verified:    m.Verified,
		Complete:    m.Complete,
	}
}

func toRosterModel(item roster.Roster) rosterTableModel {
	linked := make(pq.StringArray, 0, len(item.LinkedTeams))
	for _, id := range item.LinkedTeams {
		linked = append(linked, id.String())
	}
	return rosterTableModel{
		ID:          item.ID,
		TeamID:      nullInt64(item.TeamID),
		RGLTeamID:   siteColumn(item.SiteIDs, source.RGL),
		UGCTeamID:   siteColumn(item.SiteIDs, source.UGC),
		ETF2LTeamID: siteColumn(item.SiteIDs, source.ETF2L),
		Name:        nullString(item.Name),
		Tag:         nullString(item.Tag),
		CreatedAt:   nullFloat64(item.CreatedAt),
		UpdatedAt:   nullFloat64(item.UpdatedAt),
		LinkedTeams: linked,
		Complete:    item.Complete,
	}
}

func (m rosterTableModel) toDomain(members []membershipTableModel) (roster.Roster, error) {
	linked := make([]source.SiteID, 0, len(m.LinkedTeams))
	for _, raw := range m.LinkedTeams {
		id, err := parseSiteID(raw)
		if err != nil {
			return roster.Roster{}, fmt.Errorf("roster %d linked team: %w", m.ID, err)
		}
		linked = append(linked, id)
	}

	out := roster.Roster{
		ID:          m.ID,
		TeamID:      optionalInt64(m.TeamID),
		SiteIDs:     siteIDs(m.RGLTeamID, m.UGCTeamID, m.ETF2LTeamID),
		Name:        optionalString(m.Name),
		Tag:         optionalString(m.Tag),
		CreatedAt:   optionalFloat64(m.CreatedAt),
		UpdatedAt:   optionalFloat64(m.UpdatedAt),
		LinkedTeams: linked,
		Complete:    m.Complete,
	}
	for _, member := range members {
		out.Members = append(out.Members, roster.Membership{
			PlayerID: member.PlayerID,
			Joined:   member.JoinedAt,
			Left:     optionalFloat64(member.LeftAt),
		})
	}
	return out, nil
}

func toMembershipModels(item roster.Roster) []any {
	out := make([]any, 0, len(item.Members))
	for _, member := range item.Members {
		out = append(out, membershipTableModel{
			RosterID: item.ID,
			PlayerID: member.PlayerID,
			JoinedAt: member.Joined,
			LeftAt:   nullFloat64(member.Left),
		})
	}
	return out
}

func toMatchModel(item match.Match) (matchTableModel, error) {
	docs := make([]mapDocument, 0, len(item.Maps))
	for _, mp := range item.Maps {
		docs = append(docs, mapDocument{Name: mp.Name, Played: mp.Played, HomeScore: mp.HomeScore, AwayScore: mp.AwayScore})
	}
	maps, err := sonic.MarshalString(docs)
	if err != nil {
		return matchTableModel{}, fmt.Errorf("encode match %d maps: %w", item.ID, err)
	}

	return matchTableModel{
		ID:           item.ID,
		RGLMatchID:   siteColumn(item.SiteIDs, source.RGL),
		UGCMatchID:   siteColumn(item.SiteIDs, source.UGC),
		ETF2LMatchID: siteColumn(item.SiteIDs, source.ETF2L),
		Name:         nullString(item.Name),
		Epoch:        nullFloat64(item.Epoch),
		Forfeit:      nullBool(item.Forfeit),
		Event:        siteRef(item.Event),
		Division:     nullInt64(item.Division),
		Region:       nullInt64(item.Region),
		HomeTeam:     siteRef(item.HomeTeam),
		AwayTeam:     siteRef(item.AwayTeam),
		Maps:         maps,
		Complete:     item.Complete,
	}, nil
}

func (m matchTableModel) toDomain(results []resultTableModel) (match.Match, error) {
	var docs []mapDocument
	if m.Maps != "" {
		if err := sonic.UnmarshalString(m.Maps, &docs); err != nil {
			return match.Match{}, fmt.Errorf("decode match %d maps: %w", m.ID, err)
		}
	}
	event, err := optionalSiteID(m.Event)
	if err != nil {
		return match.Match{}, fmt.Errorf("match %d event: %w", m.ID, err)
	}
	home, err := optionalSiteID(m.HomeTeam)
	if err != nil {
		return match.Match{}, fmt.Errorf("match %d home team: %w", m.ID, err)
	}
	away, err := optionalSiteID(m.AwayTeam)
	if err != nil {
		return match.Match{}, fmt.Errorf("match %d away team: %w", m.ID, err)
	}

	out := match.Match{
		ID:       m.ID,
		SiteIDs:  siteIDs(m.RGLMatchID, m.UGCMatchID, m.ETF2LMatchID),
		Name:     optionalString(m.Name),
		Epoch:    optionalFloat64(m.Epoch),
		Forfeit:  optionalBool(m.Forfeit),
		Event:    event,
		Division: optionalInt64(m.Division),
		Region:   optionalInt64(m.Region),
		HomeTeam: home,
		AwayTeam: away,
		Complete: m.Complete,
	}
	for _, doc := range docs {
		out.Maps = append(out.Maps, match.Map{Name: doc.Name, Played: doc.Played, HomeScore: doc.HomeScore, AwayScore: doc.AwayScore})
	}
	for _, result := range results {
		out.Results = append(out.Results, match.Result{
			MatchID:  result.MatchID,
			RosterID: result.RosterID,
			MapName:  result.MapName,
			Score:    result.Score,
		})
	}
	return out, nil
}

func toResultModels(item match.Match) []any {
	out := make([]any, 0, len(item.Results))
	for _, result := range item.Results {
		out = append(out, resultTableModel{
			MatchID:  item.ID,
			RosterID: result.RosterID,
			MapName:  result.MapName,
			Score:    result.Score,
		})
	}
	return out
}

func siteColumn(ids source.SiteIDs, src source.Source) sql.NullInt64 {
	id, ok := ids.Get(src)
	if !ok {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id.ID, Valid: true}
}

func siteIDs(rgl, ugc, etf2l sql.NullInt64) source.SiteIDs {
	var out source.SiteIDs
	for src, col := range map[source.Source]sql.NullInt64{source.RGL: rgl, source.UGC: ugc, source.ETF2L: etf2l} {
		if col.Valid {
			out.Set(source.New(src, col.Int64))
		}
	}
	return out
}

func siteRef(id *source.SiteID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func optionalSiteID(value sql.NullString) (*source.SiteID, error) {
	if !value.Valid {
		return nil, nil
	}
	id, err := parseSiteID(value.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseSiteID(raw string) (source.SiteID, error) {
	name, local, ok := strings.Cut(raw, ":")
	if !ok {
		return source.SiteID{}, fmt.Errorf("malformed site id %q", raw)
	}
	src, err := source.Parse(name)
	if err != nil {
		return source.SiteID{}, err
	}
	id, err := strconv.ParseInt(local, 10, 64)
	if err != nil {
		return source.SiteID{}, fmt.Errorf("malformed site id %q: %w", raw, err)
	}
	return source.New(src, id), nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func nullFloat64(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullBool(value *bool) sql.NullBool {
	if value == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *value, Valid: true}
}

func optionalString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func optionalInt64(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	return &value.Int64
}

func optionalFloat64(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	return &value.Float64
}

func optionalBool(value sql.NullBool) *bool {
	if !value.Valid {
		return nil
	}
	return &value.Bool
}
