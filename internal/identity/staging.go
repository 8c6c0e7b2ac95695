package identity

import (
	"context"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/league-sync/internal/domain/entity"
)

// DurableFunc reports whether a record with the surrogate id is already committed.
type DurableFunc func(ctx context.Context, id int64) (bool, error)

// Staging queues records for the in-flight transaction, at most once per surrogate id.
type Staging[T any] struct {
	kind    entity.Kind
	durable DurableFunc
	items   map[int64]T
	order   []int64
}

func NewStaging[T any](kind entity.Kind, durable DurableFunc) *Staging[T] {
	return &Staging[T]{
		kind:    kind,
		durable: durable,
		items:   make(map[int64]T),
	}
}

func (s *Staging[T]) Kind() entity.Kind {
	return s.kind
}

// Stage queues item under id. It reports false without queueing when id is already
// staged or already durable.
func (s *Staging[T]) Stage(ctx context.Context, id int64, item T) (bool, error) {
	if _, ok := s.items[id]; ok {
		return false, nil
	}
	if s.durable != nil {
		ok, err := s.durable(ctx, id)
		if err != nil {
			return false, crerr.Wrapf(err, "check durable %s %d", s.kind, id)
		}
		if ok {
			return false, nil
		}
	}
	s.items[id] = item
	s.order = append(s.order, id)
	return true, nil
}

// Replace swaps the queued value for an already staged id.
func (s *Staging[T]) Replace(id int64, item T) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	s.items[id] = item
	return true
}

func (s *Staging[T]) Get(id int64) (T, bool) {
	item, ok := s.items[id]
	return item, ok
}

func (s *Staging[T]) IsStaged(id int64) bool {
	_, ok := s.items[id]
	return ok
}

func (s *Staging[T]) Len() int {
	return len(s.order)
}

// IDs returns staged ids in staging order.
func (s *Staging[T]) IDs() []int64 {
	return append([]int64(nil), s.order...)
}

// Items returns staged records in staging order.
func (s *Staging[T]) Items() []T {
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Flush clears the pending set after a commit. Ids that are now durable are returned in
// durable; staged ids the store does not hold are returned in dropped. Both are cleared.
func (s *Staging[T]) Flush(ctx context.Context) (durable, dropped []int64, err error) {
	for _, id := range s.order {
		ok := true
		if s.durable != nil {
			ok, err = s.durable(ctx, id)
			if err != nil {
				return nil, nil, crerr.Wrapf(err, "check durable %s %d", s.kind, id)
			}
		}
		if ok {
			durable = append(durable, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	s.Discard()
	return durable, dropped, nil
}

// Discard empties the pending set without checking durability.
func (s *Staging[T]) Discard() {
	clear(s.items)
	s.order = s.order[:0]
}
