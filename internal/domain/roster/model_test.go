package roster

import (
	"testing"

	"github.com/riskibarqy/league-sync/internal/domain/source"
)

func TestDedupeMembersByPlayerAndJoined(t *testing.T) {
	t.Parallel()

	left := 200.0
	members := DedupeMembers([]Membership{
		{PlayerID: 1, Joined: 100},
		{PlayerID: 1, Joined: 100, Left: &left},
		{PlayerID: 1, Joined: 300},
		{PlayerID: 2, Joined: 100},
	})
	if len(members) != 3 {
		t.Fatalf("expected 3 memberships, got %d", len(members))
	}
	if members[0].Left != nil {
		t.Fatalf("expected first membership to be kept")
	}
}

func TestPlayerIDsDistinct(t *testing.T) {
	t.Parallel()

	r := Roster{Members: []Membership{{PlayerID: 5, Joined: 1}, {PlayerID: 5, Joined: 2}, {PlayerID: 6}}}
	ids := r.PlayerIDs()
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 6 {
		t.Fatalf("unexpected player ids: %+v", ids)
	}
}

func TestOverwriteKeepsTeamLinkWhenIncomingHasNone(t *testing.T) {
	t.Parallel()

	teamID := int64(4)
	name := "froyotech"
	existing := Roster{ID: 2, TeamID: &teamID, SiteIDs: source.NewSiteIDs(source.New(source.RGL, 54))}
	existing.Overwrite(Roster{Name: &name, Complete: true, Members: []Membership{{PlayerID: 1}, {PlayerID: 1}}})

	if existing.TeamID == nil || *existing.TeamID != 4 {
		t.Fatalf("expected team link kept, got %+v", existing.TeamID)
	}
	if existing.ID != 2 || !existing.Complete || *existing.Name != name {
		t.Fatalf("unexpected roster: %+v", existing)
	}
	if len(existing.Members) != 1 {
		t.Fatalf("expected members deduped, got %d", len(existing.Members))
	}
	if err := existing.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
