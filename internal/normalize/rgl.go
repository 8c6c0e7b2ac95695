package normalize

import (
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

type rglMatchPayload struct {
	MatchID    *int64         `json:"matchId"`
	MatchName  *string        `json:"matchName"`
	MatchDate  *string        `json:"matchDate"`
	IsForfeit  *bool          `json:"isForfeit"`
	SeasonID   *int64         `json:"seasonId"`
	DivisionID *int64         `json:"divisionId"`
	RegionID   *int64         `json:"regionId"`
	Winner     *int64         `json:"winner"`
	Teams      []rglMatchTeam `json:"teams"`
	Maps       []rglMap       `json:"maps"`
}

type rglMatchTeam struct {
	TeamID *int64 `json:"teamId"`
	IsHome *bool  `json:"isHome"`
}

type rglMap struct {
	MapName   *string `json:"mapName"`
	HomeScore *int    `json:"homeScore"`
	AwayScore *int    `json:"awayScore"`
}

type rglTeamPayload struct {
	TeamID      *int64          `json:"teamId"`
	Name        *string         `json:"name"`
	Tag         *string         `json:"tag"`
	CreatedAt   *string         `json:"createdAt"`
	UpdatedAt   *string         `json:"updatedAt"`
	LinkedTeams []int64         `json:"linkedTeams"`
	Players     []rglTeamPlayer `json:"players"`
}

type rglTeamPlayer struct {
	SteamID  flexInt `json:"steamId"`
	JoinedAt *string `json:"joinedAt"`
	LeftAt   *string `json:"leftAt"`
}

type rglProfilePayload struct {
	SteamID flexInt `json:"steamId"`
	Name    *string `json:"name"`
	Avatar  *string `json:"avatar"`
	Status  struct {
		IsBanned   bool `json:"isBanned"`
		IsVerified bool `json:"isVerified"`
	} `json:"status"`
}

func decodeRGLMatch(raw []byte) (match.Match, error) {
	var payload rglMatchPayload
	if err := unmarshal(raw, &payload); err != nil {
		return match.Match{}, err
	}
	if payload.MatchID == nil {
		return match.Match{}, missing("matchId")
	}

	epoch, err := epochFromTimestamp(payload.MatchDate)
	if err != nil {
		return match.Match{}, err
	}

	out := match.Match{
		SiteIDs:  source.NewSiteIDs(source.New(source.RGL, *payload.MatchID)),
		Name:     optionalString(payload.MatchName),
		Epoch:    epoch,
		Forfeit:  payload.IsForfeit,
		Event:    optionalSiteID(source.RGL, payload.SeasonID),
		Division: payload.DivisionID,
		Region:   payload.RegionID,
	}
	out.HomeTeam, out.AwayTeam = resolveRGLHomeAway(payload.Teams, payload.Winner)

	for _, mp := range payload.Maps {
		decoded, err := decodeRGLMap(mp)
		if err != nil {
			return match.Match{}, err
		}
		out.Maps = append(out.Maps, decoded)
	}

	return out, nil
}

// resolveRGLHomeAway picks the home roster from the isHome flag, falling back to the
// declared winner. Both stay unset when neither resolves.
func resolveRGLHomeAway(teams []rglMatchTeam, winner *int64) (*source.SiteID, *source.SiteID) {
	home := -1
	for i, team := range teams {
		if team.TeamID != nil && team.IsHome != nil && *team.IsHome {
			home = i
			break
		}
	}
	if home < 0 && winner != nil {
		for i, team := range teams {
			if team.TeamID != nil && *team.TeamID == *winner {
				home = i
				break
			}
		}
	}
	if home < 0 {
		return nil, nil
	}

	homeID := *teams[home].TeamID
	var away *source.SiteID
	for i, team := range teams {
		if i == home || team.TeamID == nil || *team.TeamID == homeID {
			continue
		}
		away = optionalSiteID(source.RGL, team.TeamID)
		break
	}
	return optionalSiteID(source.RGL, &homeID), away
}

func decodeRGLMap(payload rglMap) (match.Map, error) {
	if payload.MapName == nil {
		return match.Map{}, missing("maps.mapName")
	}
	out := match.Map{
		Name:   *payload.MapName,
		Played: payload.HomeScore != nil && payload.AwayScore != nil,
	}
	if payload.HomeScore != nil {
		out.HomeScore = *payload.HomeScore
	}
	if payload.AwayScore != nil {
		out.AwayScore = *payload.AwayScore
	}
	return out, nil
}

func decodeRGLRoster(raw []byte) (roster.Roster, error) {
	var payload rglTeamPayload
	if err := unmarshal(raw, &payload); err != nil {
		return roster.Roster{}, err
	}
	if payload.TeamID == nil {
		return roster.Roster{}, missing("teamId")
	}

	createdAt, err := epochFromTimestamp(payload.CreatedAt)
	if err != nil {
		return roster.Roster{}, err
	}
	updatedAt, err := epochFromTimestamp(payload.UpdatedAt)
	if err != nil {
		return roster.Roster{}, err
	}

	out := roster.Roster{
		SiteIDs:   source.NewSiteIDs(source.New(source.RGL, *payload.TeamID)),
		Name:      optionalString(payload.Name),
		Tag:       optionalString(payload.Tag),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	for _, linked := range payload.LinkedTeams {
		out.LinkedTeams = append(out.LinkedTeams, source.New(source.RGL, linked))
	}
	for _, p := range payload.Players {
		if !p.SteamID.Set {
			return roster.Roster{}, missing("players.steamId")
		}
		joined, err := epochFromTimestamp(p.JoinedAt)
		if err != nil {
			return roster.Roster{}, err
		}
		left, err := epochFromTimestamp(p.LeftAt)
		if err != nil {
			return roster.Roster{}, err
		}
		member := roster.Membership{PlayerID: p.SteamID.Value, Left: left}
		if joined != nil {
			member.Joined = *joined
		}
		out.Members = append(out.Members, member)
	}
	out.Members = roster.DedupeMembers(out.Members)

	return out, nil
}

func decodeRGLPlayer(raw []byte) (player.Player, error) {
	var payload rglProfilePayload
	if err := unmarshal(raw, &payload); err != nil {
		return player.Player{}, err
	}
	if !payload.SteamID.Set {
		return player.Player{}, missing("steamId")
	}
	return player.Player{
		ID:          payload.SteamID.Value,
		DisplayName: optionalString(payload.Name),
		Avatar:      optionalString(payload.Avatar),
		Banned:      payload.Status.IsBanned,
		Verified:    payload.Status.IsVerified,
	}, nil
}
