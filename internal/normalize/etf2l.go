package normalize

import (
	"strings"

	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

type etf2lMatchPayload struct {
	ID          *int64            `json:"id"`
	Round       *string           `json:"round"`
	Time        *float64          `json:"time"`
	DefaultWin  *bool             `json:"defaultwin"`
	Competition *etf2lCompetition `json:"competition"`
	Clan1       *etf2lClanRef     `json:"clan1"`
	Clan2       *etf2lClanRef     `json:"clan2"`
	MapResults  []etf2lMap        `json:"map_results"`
}

type etf2lCompetition struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
}

type etf2lClanRef struct {
	ID *int64 `json:"id"`
}

type etf2lMap struct {
	Map   *string `json:"map"`
	Clan1 *int    `json:"clan1"`
	Clan2 *int    `json:"clan2"`
}

type etf2lTeamPayload struct {
	ID      *int64            `json:"id"`
	Name    *string           `json:"name"`
	Tag     *string           `json:"tag"`
	Players []etf2lTeamPlayer `json:"players"`
}

type etf2lTeamPlayer struct {
	Steam struct {
		ID64 flexInt `json:"id64"`
	} `json:"steam"`
}

type etf2lPlayerPayload struct {
	Name  *string `json:"name"`
	Steam struct {
		ID64   flexInt `json:"id64"`
		Avatar *string `json:"avatar"`
	} `json:"steam"`
	Bans []struct {
		Reason *string `json:"reason"`
	} `json:"bans"`
}

func decodeETF2LMatch(raw []byte) (match.Match, error) {
	var payload etf2lMatchPayload
	if err := unmarshal(raw, &payload); err != nil {
		return match.Match{}, err
	}
	if payload.ID == nil {
		return match.Match{}, missing("id")
	}

	out := match.Match{
		SiteIDs: source.NewSiteIDs(source.New(source.ETF2L, *payload.ID)),
		Name:    etf2lMatchName(payload.Competition, payload.Round),
		Epoch:   nonZeroEpoch(payload.Time),
		Forfeit: payload.DefaultWin,
	}
	if payload.Competition != nil {
		out.Event = optionalSiteID(source.ETF2L, payload.Competition.ID)
	}
	if payload.Clan1 != nil {
		out.HomeTeam = optionalSiteID(source.ETF2L, payload.Clan1.ID)
	}
	if payload.Clan2 != nil {
		out.AwayTeam = optionalSiteID(source.ETF2L, payload.Clan2.ID)
	}

	for _, mp := range payload.MapResults {
		if mp.Map == nil {
			return match.Match{}, missing("map_results.map")
		}
		if mp.Clan1 == nil || mp.Clan2 == nil {
			return match.Match{}, missing("map_results.clan1")
		}
		out.Maps = append(out.Maps, match.Map{
			Name:      *mp.Map,
			Played:    true,
			HomeScore: *mp.Clan1,
			AwayScore: *mp.Clan2,
		})
	}

	return out, nil
}

func etf2lMatchName(competition *etf2lCompetition, round *string) *string {
	var parts []string
	if competition != nil && competition.Name != nil {
		parts = append(parts, *competition.Name)
	}
	if round != nil {
		parts = append(parts, *round)
	}
	name := strings.TrimSpace(strings.Join(parts, " "))
	if name == "" {
		return nil
	}
	return &name
}

func decodeETF2LRoster(raw []byte) (roster.Roster, error) {
	var payload etf2lTeamPayload
	if err := unmarshal(raw, &payload); err != nil {
		return roster.Roster{}, err
	}
	if payload.ID == nil {
		return roster.Roster{}, missing("id")
	}

	out := roster.Roster{
		SiteIDs: source.NewSiteIDs(source.New(source.ETF2L, *payload.ID)),
		Name:    optionalString(payload.Name),
		Tag:     optionalString(payload.Tag),
	}
	for _, p := range payload.Players {
		if !p.Steam.ID64.Set {
			return roster.Roster{}, missing("players.steam.id64")
		}
		out.Members = append(out.Members, roster.Membership{PlayerID: p.Steam.ID64.Value})
	}
	out.Members = roster.DedupeMembers(out.Members)

	return out, nil
}

func decodeETF2LPlayer(raw []byte) (player.Player, error) {
	var payload etf2lPlayerPayload
	if err := unmarshal(raw, &payload); err != nil {
		return player.Player{}, err
	}
	if !payload.Steam.ID64.Set {
		return player.Player{}, missing("steam.id64")
	}
	return player.Player{
		ID:          payload.Steam.ID64.Value,
		DisplayName: optionalString(payload.Name),
		Avatar:      optionalString(payload.Steam.Avatar),
		Banned:      len(payload.Bans) > 0,
	}, nil
}
