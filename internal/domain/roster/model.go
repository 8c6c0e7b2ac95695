package roster

import (
	"fmt"

	"github.com/riskibarqy/league-sync/internal/domain/source"
)

// Membership is one stint of a player on a roster. Left is nil while the player is current.
type Membership struct {
	PlayerID int64
	Joined   float64
	Left     *float64
}

type MembershipKey struct {
	PlayerID int64
	Joined   float64
}

func (m Membership) Key() MembershipKey {
	return MembershipKey{PlayerID: m.PlayerID, Joined: m.Joined}
}

// Roster is one per-source instance of a team.
type Roster struct {
	ID          int64
	TeamID      *int64
	SiteIDs     source.SiteIDs
	Name        *string
	Tag         *string
	CreatedAt   *float64
	UpdatedAt   *float64
	LinkedTeams []source.SiteID
	Members     []Membership
	Complete    bool
}

func (r Roster) Validate() error {
	if r.SiteIDs.IsEmpty() {
		return fmt.Errorf("roster site id is required")
	}
	seen := make(map[MembershipKey]struct{}, len(r.Members))
	for _, member := range r.Members {
		if _, ok := seen[member.Key()]; ok {
			return fmt.Errorf("duplicate membership player=%d joined=%v", member.PlayerID, member.Joined)
		}
		seen[member.Key()] = struct{}{}
	}
	return nil
}

// Overwrite copies the mutable fields of other onto r. Team link and surrogate id are kept.
func (r *Roster) Overwrite(other Roster) {
	r.SiteIDs.Merge(other.SiteIDs)
	r.Name = other.Name
	r.Tag = other.Tag
	r.CreatedAt = other.CreatedAt
	r.UpdatedAt = other.UpdatedAt
	r.LinkedTeams = other.LinkedTeams
	r.Members = DedupeMembers(other.Members)
	r.Complete = other.Complete
	if other.TeamID != nil {
		r.TeamID = other.TeamID
	}
}

// DedupeMembers drops repeated (player, joined) entries, keeping the first.
func DedupeMembers(members []Membership) []Membership {
	if members == nil {
		return nil
	}
	out := make([]Membership, 0, len(members))
	seen := make(map[MembershipKey]struct{}, len(members))
	for _, member := range members {
		if _, ok := seen[member.Key()]; ok {
			continue
		}
		seen[member.Key()] = struct{}{}
		out = append(out, member)
	}
	return out
}

// PlayerIDs returns the distinct player ids across memberships in first-seen order.
func (r Roster) PlayerIDs() []int64 {
	out := make([]int64, 0, len(r.Members))
	seen := make(map[int64]struct{}, len(r.Members))
	for _, member := range r.Members {
		if _, ok := seen[member.PlayerID]; ok {
			continue
		}
		seen[member.PlayerID] = struct{}{}
		out = append(out, member.PlayerID)
	}
	return out
}
