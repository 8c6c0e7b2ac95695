package normalize

import (
	"encoding/json"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

// Document tags of the checkpoint format. A roster is tagged "team".
const (
	tagMatch  = "match"
	tagRoster = "team"
	tagPlayer = "player"
)

type wireSiteID struct {
	Source wireSite `json:"source"`
}

type wireSite struct {
	Site string `json:"site"`
	ID   int64  `json:"id"`
}

type wireMapDoc struct {
	Map *wireMap `json:"map"`
}

type wireMap struct {
	MapName   string `json:"mapName"`
	WasPlayed bool   `json:"wasPlayed"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
}

type wireMatch struct {
	MatchID    *wireSiteID  `json:"matchId"`
	AltIDs     []wireSiteID `json:"altIds,omitempty"`
	MatchName  *string      `json:"matchName"`
	MatchTime  *float64     `json:"matchTime"`
	WasForfeit *bool        `json:"wasForfeit"`
	Event      *wireSiteID  `json:"event"`
	Division   *int64       `json:"division,omitempty"`
	Region     *int64       `json:"region,omitempty"`
	HomeTeam   *wireSiteID  `json:"homeTeam"`
	AwayTeam   *wireSiteID  `json:"awayTeam"`
	Maps       []wireMapDoc `json:"maps"`
	IsComplete bool         `json:"isComplete"`
}

type wireMember struct {
	SteamID  int64    `json:"steamId"`
	JoinedAt float64  `json:"joinedAt"`
	LeftAt   *float64 `json:"leftAt"`
}

type wireRoster struct {
	TeamID      *wireSiteID  `json:"teamId"`
	AltIDs      []wireSiteID `json:"altIds,omitempty"`
	TeamName    *string      `json:"teamName"`
	TeamTag     *string      `json:"teamTag"`
	CreatedAt   *float64     `json:"createdAt"`
	UpdatedAt   *float64     `json:"updatedAt"`
	Players     []wireMember `json:"players"`
	LinkedTeams []wireSiteID `json:"linkedTeams"`
	IsComplete  bool         `json:"isComplete"`
}

type wirePlayer struct {
	SteamID     int64   `json:"steamId"`
	DisplayName *string `json:"displayName"`
	Avatar      *string `json:"avatar"`
	Forename    *string `json:"forename"`
	Surname     *string `json:"surname"`
	IsBanned    bool    `json:"isBanned"`
	IsVerified  bool    `json:"isVerified"`
	IsComplete  bool    `json:"isComplete"`
}

type matchDoc struct {
	Match *wireMatch `json:"match"`
}

type rosterDoc struct {
	Team *wireRoster `json:"team"`
}

type playerDoc struct {
	Player *wirePlayer `json:"player"`
}

func toWireSiteID(id source.SiteID) wireSiteID {
	return wireSiteID{Source: wireSite{Site: id.Source.String(), ID: id.ID}}
}

func toWireRef(id *source.SiteID) *wireSiteID {
	if id == nil {
		return nil
	}
	out := toWireSiteID(*id)
	return &out
}

func (w wireSiteID) siteID() (source.SiteID, error) {
	src, err := source.Parse(w.Source.Site)
	if err != nil {
		return source.SiteID{}, crerr.Mark(crerr.Wrap(err, "decode site id"), ErrMalformedPayload)
	}
	return source.New(src, w.Source.ID), nil
}

func fromWireRef(w *wireSiteID) (*source.SiteID, error) {
	if w == nil {
		return nil, nil
	}
	id, err := w.siteID()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// splitSiteIDs returns the primary id and the remaining ones.
func splitSiteIDs(ids source.SiteIDs) (*wireSiteID, []wireSiteID) {
	all := ids.All()
	if len(all) == 0 {
		return nil, nil
	}
	primary := toWireSiteID(all[0])
	var alts []wireSiteID
	for _, id := range all[1:] {
		alts = append(alts, toWireSiteID(id))
	}
	return &primary, alts
}

func joinSiteIDs(primary *wireSiteID, alts []wireSiteID, field string) (source.SiteIDs, error) {
	if primary == nil {
		return source.SiteIDs{}, missing(field)
	}
	first, err := primary.siteID()
	if err != nil {
		return source.SiteIDs{}, err
	}
	ids := source.NewSiteIDs(first)
	for _, alt := range alts {
		id, err := alt.siteID()
		if err != nil {
			return source.SiteIDs{}, err
		}
		ids.Set(id)
	}
	return ids, nil
}

func EncodeMatch(m match.Match) ([]byte, error) {
	primary, alts := splitSiteIDs(m.SiteIDs)
	wire := &wireMatch{
		MatchID:    primary,
		AltIDs:     alts,
		MatchName:  m.Name,
		MatchTime:  m.Epoch,
		WasForfeit: m.Forfeit,
		Event:      toWireRef(m.Event),
		Division:   m.Division,
		Region:     m.Region,
		HomeTeam:   toWireRef(m.HomeTeam),
		AwayTeam:   toWireRef(m.AwayTeam),
		Maps:       make([]wireMapDoc, 0, len(m.Maps)),
		IsComplete: m.Complete,
	}
	for _, mp := range m.Maps {
		wire.Maps = append(wire.Maps, wireMapDoc{Map: &wireMap{
			MapName:   mp.Name,
			WasPlayed: mp.Played,
			HomeScore: mp.HomeScore,
			AwayScore: mp.AwayScore,
		}})
	}
	return marshal(matchDoc{Match: wire})
}

func decodeInternalMatch(raw []byte) (match.Match, error) {
	var doc matchDoc
	if err := unmarshal(raw, &doc); err != nil {
		return match.Match{}, err
	}
	if doc.Match == nil {
		return match.Match{}, missing(tagMatch)
	}
	wire := doc.Match

	ids, err := joinSiteIDs(wire.MatchID, wire.AltIDs, "match.matchId")
	if err != nil {
		return match.Match{}, err
	}
	out := match.Match{
		SiteIDs:  ids,
		Name:     optionalString(wire.MatchName),
		Epoch:    nonZeroEpoch(wire.MatchTime),
		Forfeit:  wire.WasForfeit,
		Division: wire.Division,
		Region:   wire.Region,
		Complete: wire.IsComplete,
	}
	if out.Event, err = fromWireRef(wire.Event); err != nil {
		return match.Match{}, err
	}
	if out.HomeTeam, err = fromWireRef(wire.HomeTeam); err != nil {
		return match.Match{}, err
	}
	if out.AwayTeam, err = fromWireRef(wire.AwayTeam); err != nil {
		return match.Match{}, err
	}
	for _, entry := range wire.Maps {
		if entry.Map == nil {
			return match.Match{}, missing("match.maps.map")
		}
		out.Maps = append(out.Maps, match.Map{
			Name:      entry.Map.MapName,
			Played:    entry.Map.WasPlayed,
			HomeScore: entry.Map.HomeScore,
			AwayScore: entry.Map.AwayScore,
		})
	}
	return out, nil
}

func EncodeRoster(r roster.Roster) ([]byte, error) {
	primary, alts := splitSiteIDs(r.SiteIDs)
	wire := &wireRoster{
		TeamID:      primary,
		AltIDs:      alts,
		TeamName:    r.Name,
		TeamTag:     r.Tag,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Players:     make([]wireMember, 0, len(r.Members)),
		LinkedTeams: make([]wireSiteID, 0, len(r.LinkedTeams)),
		IsComplete:  r.Complete,
	}
	for _, member := range r.Members {
		wire.Players = append(wire.Players, wireMember{
			SteamID:  member.PlayerID,
			JoinedAt: member.Joined,
			LeftAt:   member.Left,
		})
	}
	for _, linked := range r.LinkedTeams {
		wire.LinkedTeams = append(wire.LinkedTeams, toWireSiteID(linked))
	}
	return marshal(rosterDoc{Team: wire})
}

func decodeInternalRoster(raw []byte) (roster.Roster, error) {
	var doc rosterDoc
	if err := unmarshal(raw, &doc); err != nil {
		return roster.Roster{}, err
	}
	if doc.Team == nil {
		return roster.Roster{}, missing(tagRoster)
	}
	wire := doc.Team

	ids, err := joinSiteIDs(wire.TeamID, wire.AltIDs, "team.teamId")
	if err != nil {
		return roster.Roster{}, err
	}
	out := roster.Roster{
		SiteIDs:   ids,
		Name:      optionalString(wire.TeamName),
		Tag:       optionalString(wire.TeamTag),
		CreatedAt: nonZeroEpoch(wire.CreatedAt),
		UpdatedAt: nonZeroEpoch(wire.UpdatedAt),
		Complete:  wire.IsComplete,
	}
	for _, member := range wire.Players {
		out.Members = append(out.Members, roster.Membership{
			PlayerID: member.SteamID,
			Joined:   member.JoinedAt,
			Left:     member.LeftAt,
		})
	}
	for _, linked := range wire.LinkedTeams {
		id, err := linked.siteID()
		if err != nil {
			return roster.Roster{}, err
		}
		out.LinkedTeams = append(out.LinkedTeams, id)
	}
	out.Members = roster.DedupeMembers(out.Members)
	return out, nil
}

func EncodePlayer(p player.Player) ([]byte, error) {
	return marshal(playerDoc{Player: &wirePlayer{
		SteamID:     p.ID,
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
		Forename:    p.Forename,
		Surname:     p.Surname,
		IsBanned:    p.Banned,
		IsVerified:  p.Verified,
		IsComplete:  p.Complete,
	}})
}

func decodeInternalPlayer(raw []byte) (player.Player, error) {
	var doc playerDoc
	if err := unmarshal(raw, &doc); err != nil {
		return player.Player{}, err
	}
	if doc.Player == nil {
		return player.Player{}, missing(tagPlayer)
	}
	wire := doc.Player
	if wire.SteamID == 0 {
		return player.Player{}, missing("player.steamId")
	}
	return player.Player{
		ID:          wire.SteamID,
		DisplayName: optionalString(wire.DisplayName),
		Avatar:      optionalString(wire.Avatar),
		Forename:    optionalString(wire.Forename),
		Surname:     optionalString(wire.Surname),
		Banned:      wire.IsBanned,
		Verified:    wire.IsVerified,
		Complete:    wire.IsComplete,
	}, nil
}

// Encode serializes a canonical entity under its document tag.
func Encode(v any) ([]byte, error) {
	switch e := v.(type) {
	case match.Match:
		return EncodeMatch(e)
	case *match.Match:
		return EncodeMatch(*e)
	case roster.Roster:
		return EncodeRoster(e)
	case *roster.Roster:
		return EncodeRoster(*e)
	case player.Player:
		return EncodePlayer(e)
	case *player.Player:
		return EncodePlayer(*e)
	default:
		return nil, crerr.Newf("cannot encode %T", v)
	}
}

// DocumentKind reports which entity a checkpoint document carries.
func DocumentKind(raw []byte) (entity.Kind, error) {
	var keys map[string]json.RawMessage
	if err := unmarshal(raw, &keys); err != nil {
		return "", err
	}
	switch {
	case keys[tagMatch] != nil:
		return entity.KindMatch, nil
	case keys[tagRoster] != nil:
		return entity.KindRoster, nil
	case keys[tagPlayer] != nil:
		return entity.KindPlayer, nil
	default:
		return "", crerr.Mark(crerr.New("document has no entity tag"), ErrMalformedPayload)
	}
}

func marshal(v any) ([]byte, error) {
	out, err := sonic.Marshal(v)
	if err != nil {
		return nil, crerr.Wrap(err, "encode checkpoint document")
	}
	return out, nil
}
