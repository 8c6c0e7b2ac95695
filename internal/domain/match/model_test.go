package match

import (
	"testing"

	"github.com/riskibarqy/league-sync/internal/domain/source"
)

func TestBuildResultsTwoPerMap(t *testing.T) {
	t.Parallel()

	m := Match{ID: 3, Maps: []Map{
		{Name: "pl_badwater_pro_v9", Played: true, HomeScore: 2, AwayScore: 0},
		{Name: "cp_process_final", Played: true, HomeScore: 5, AwayScore: 4},
	}}

	results := m.BuildResults(10, 11)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0] != (Result{MatchID: 3, RosterID: 10, MapName: "pl_badwater_pro_v9", Score: 2}) {
		t.Fatalf("unexpected home result: %+v", results[0])
	}
	if results[1] != (Result{MatchID: 3, RosterID: 11, MapName: "pl_badwater_pro_v9", Score: 0}) {
		t.Fatalf("unexpected away result: %+v", results[1])
	}
}

func TestBuildResultsDedupesRepeatedMaps(t *testing.T) {
	t.Parallel()

	m := Match{ID: 1, Maps: []Map{
		{Name: "koth_product_final", HomeScore: 1},
		{Name: "koth_product_final", HomeScore: 3},
	}}
	results := m.BuildResults(1, 2)
	if len(results) != 2 {
		t.Fatalf("expected duplicate keys to collapse, got %d results", len(results))
	}
	if results[0].Score != 1 {
		t.Fatalf("expected first occurrence to win, got %d", results[0].Score)
	}
}

func TestOverwriteKeepsIdentity(t *testing.T) {
	t.Parallel()

	name := "Week 1"
	existing := Match{ID: 9, SiteIDs: source.NewSiteIDs(source.New(source.RGL, 32))}
	incoming := Match{
		SiteIDs:  source.NewSiteIDs(source.New(source.RGL, 99), source.New(source.ETF2L, 5)),
		Name:     &name,
		Complete: true,
		Results: []Result{
			{RosterID: 1, MapName: "a", Score: 1},
			{RosterID: 1, MapName: "a", Score: 2},
		},
	}

	existing.Overwrite(incoming)

	if existing.ID != 9 {
		t.Fatalf("surrogate id changed to %d", existing.ID)
	}
	if id, _ := existing.SiteIDs.Get(source.RGL); id.ID != 32 {
		t.Fatalf("expected original RGL id kept, got %d", id.ID)
	}
	if id, _ := existing.SiteIDs.Get(source.ETF2L); id.ID != 5 {
		t.Fatalf("expected ETF2L id merged, got %d", id.ID)
	}
	if !existing.Complete || existing.Name == nil || *existing.Name != name {
		t.Fatalf("mutable fields not overwritten: %+v", existing)
	}
	if len(existing.Results) != 1 || existing.Results[0].MatchID != 9 {
		t.Fatalf("unexpected results: %+v", existing.Results)
	}
	if err := existing.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsDuplicateResults(t *testing.T) {
	t.Parallel()

	m := Match{
		SiteIDs: source.NewSiteIDs(source.New(source.RGL, 1)),
		Results: []Result{{RosterID: 1, MapName: "a"}, {RosterID: 1, MapName: "a"}},
	}
	if err := m.Validate(); err == nil {
		t.Fatalf("expected duplicate result error")
	}
	if err := (Match{}).Validate(); err == nil {
		t.Fatalf("expected missing site id error")
	}
}
