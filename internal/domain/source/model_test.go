package source

import "testing"

func TestParseRoundTripsNames(t *testing.T) {
	t.Parallel()

	for _, src := range []Source{RGL, UGC, ETF2L, Internal} {
		got, err := Parse(src.String())
		if err != nil {
			t.Fatalf("parse %s: %v", src, err)
		}
		if got != src {
			t.Fatalf("expected %s, got %s", src, got)
		}
	}

	if _, err := Parse("esea"); err == nil {
		t.Fatalf("expected error for unknown source")
	}
	if got, _ := Parse(" etf2l "); got != ETF2L {
		t.Fatalf("expected case-insensitive parse, got %s", got)
	}
}

func TestSiteIDsHoldsOneIDPerSource(t *testing.T) {
	t.Parallel()

	ids := NewSiteIDs(New(RGL, 54), New(ETF2L, 9))
	ids.Set(New(RGL, 55))
	ids.Set(New(Internal, 1))

	rgl, ok := ids.Get(RGL)
	if !ok || rgl.ID != 55 {
		t.Fatalf("expected RGL id 55, got %+v ok=%t", rgl, ok)
	}
	if _, ok := ids.Get(UGC); ok {
		t.Fatalf("expected UGC unset")
	}
	if all := ids.All(); len(all) != 2 || all[0].Source != RGL || all[1].Source != ETF2L {
		t.Fatalf("unexpected ids: %+v", all)
	}
	primary, ok := ids.Primary()
	if !ok || primary != New(RGL, 55) {
		t.Fatalf("unexpected primary: %+v", primary)
	}
}

func TestSiteIDsMergeKeepsExisting(t *testing.T) {
	t.Parallel()

	ids := NewSiteIDs(New(RGL, 1))
	ids.Merge(NewSiteIDs(New(RGL, 2), New(UGC, 3)))

	if got, _ := ids.Get(RGL); got.ID != 1 {
		t.Fatalf("expected RGL id preserved, got %d", got.ID)
	}
	if got, _ := ids.Get(UGC); got.ID != 3 {
		t.Fatalf("expected UGC id merged, got %d", got.ID)
	}
	if (SiteIDs{}).IsEmpty() != true || ids.IsEmpty() {
		t.Fatalf("unexpected emptiness")
	}
}

func TestSiteIDRef(t *testing.T) {
	t.Parallel()

	if (SiteID{}).Ref() != nil {
		t.Fatalf("expected nil ref for zero id")
	}
	ref := New(RGL, 7).Ref()
	if ref == nil || *ref != New(RGL, 7) {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	if New(ETF2L, 12).String() != "ETF2L:12" {
		t.Fatalf("unexpected string: %s", New(ETF2L, 12))
	}
}
