package identity

import (
	"context"
	"testing"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
)

type fakeDurable map[int64]bool

func (f fakeDurable) check(_ context.Context, id int64) (bool, error) {
	return f[id], nil
}

func TestStageTwiceWritesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := fakeDurable{}
	staging := NewStaging[roster.Roster](entity.KindRoster, store.check)

	first, err := staging.Stage(ctx, 7, roster.Roster{ID: 7})
	if err != nil || !first {
		t.Fatalf("expected first stage to queue, got %t err=%v", first, err)
	}
	second, err := staging.Stage(ctx, 7, roster.Roster{ID: 7})
	if err != nil || second {
		t.Fatalf("expected second stage to be a no-op, got %t err=%v", second, err)
	}

	if items := staging.Items(); len(items) != 1 || items[0].ID != 7 {
		t.Fatalf("expected exactly one staged roster, got %+v", items)
	}
}

func TestStageSkipsDurableIDs(t *testing.T) {
	t.Parallel()

	staging := NewStaging[roster.Roster](entity.KindRoster, fakeDurable{3: true}.check)
	ok, err := staging.Stage(context.Background(), 3, roster.Roster{ID: 3})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if ok || staging.Len() != 0 {
		t.Fatalf("expected durable id not to be staged")
	}
}

func TestFlushSplitsDurableAndDropped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := fakeDurable{}
	staging := NewStaging[roster.Roster](entity.KindRoster, store.check)
	for _, id := range []int64{1, 2, 3} {
		if _, err := staging.Stage(ctx, id, roster.Roster{ID: id}); err != nil {
			t.Fatalf("stage %d: %v", id, err)
		}
	}

	store[1] = true
	store[3] = true
	durable, dropped, err := staging.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(durable) != 2 || durable[0] != 1 || durable[1] != 3 {
		t.Fatalf("unexpected durable ids: %+v", durable)
	}
	if len(dropped) != 1 || dropped[0] != 2 {
		t.Fatalf("unexpected dropped ids: %+v", dropped)
	}
	if staging.Len() != 0 {
		t.Fatalf("expected staging cleared after flush")
	}

	ok, _ := staging.Stage(ctx, 2, roster.Roster{ID: 2})
	if !ok {
		t.Fatalf("expected id to be stageable again after flush")
	}
}

func TestReplaceAndGet(t *testing.T) {
	t.Parallel()

	staging := NewStaging[roster.Roster](entity.KindRoster, nil)
	if staging.Replace(1, roster.Roster{}) {
		t.Fatalf("replace of unstaged id should fail")
	}
	_, _ = staging.Stage(context.Background(), 1, roster.Roster{ID: 1})
	name := "updated"
	if !staging.Replace(1, roster.Roster{ID: 1, Name: &name}) {
		t.Fatalf("replace of staged id should succeed")
	}
	got, ok := staging.Get(1)
	if !ok || got.Name == nil || *got.Name != name {
		t.Fatalf("unexpected staged roster: %+v", got)
	}
	staging.Discard()
	if staging.IsStaged(1) {
		t.Fatalf("expected discard to clear staging")
	}
}
