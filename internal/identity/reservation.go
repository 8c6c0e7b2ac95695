// Package identity allocates surrogate ids for records that are not yet durable and
// de-duplicates records staged for the current transaction.
//
// Registries here are single-writer: one synchronization pass per entity kind may use them
// at a time. They hold no locks.
package identity

import (
	"context"
	"slices"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/league-sync/internal/domain/entity"
)

// MaxFunc reports the greatest surrogate id currently committed for an entity kind.
type MaxFunc func(ctx context.Context) (int64, error)

// Reservation hands out surrogate ids for T ahead of commit.
type Reservation[T any] struct {
	kind         entity.Kind
	persistedMax MaxFunc
	pending      map[int64]struct{}
	floor        int64
}

func NewReservation[T any](kind entity.Kind, persistedMax MaxFunc) *Reservation[T] {
	return &Reservation[T]{
		kind:         kind,
		persistedMax: persistedMax,
		pending:      make(map[int64]struct{}),
	}
}

func (r *Reservation[T]) Kind() entity.Kind {
	return r.kind
}

// Reserve returns max(pending)+1, or persistedMax+1 when nothing is pending.
// Ids already released as durable are never handed out again.
func (r *Reservation[T]) Reserve(ctx context.Context) (int64, error) {
	next := r.floor
	if len(r.pending) == 0 {
		if r.persistedMax != nil {
			stored, err := r.persistedMax(ctx)
			if err != nil {
				return 0, crerr.Wrapf(err, "read max %s id", r.kind)
			}
			next = max(next, stored)
		}
	} else {
		for id := range r.pending {
			next = max(next, id)
		}
	}
	next++
	r.pending[next] = struct{}{}
	return next, nil
}

// Release discards a reservation that will never be committed. The id may be handed out again.
func (r *Reservation[T]) Release(ids ...int64) {
	for _, id := range ids {
		delete(r.pending, id)
	}
}

// ReleaseDurable drops ids the store has confirmed as committed.
func (r *Reservation[T]) ReleaseDurable(ids ...int64) {
	for _, id := range ids {
		if _, ok := r.pending[id]; !ok {
			continue
		}
		delete(r.pending, id)
		r.floor = max(r.floor, id)
	}
}

// ReleaseAll discards every pending reservation.
func (r *Reservation[T]) ReleaseAll() {
	clear(r.pending)
}

func (r *Reservation[T]) IsPending(id int64) bool {
	_, ok := r.pending[id]
	return ok
}

func (r *Reservation[T]) Len() int {
	return len(r.pending)
}

// Pending returns the reserved ids in ascending order.
func (r *Reservation[T]) Pending() []int64 {
	out := make([]int64, 0, len(r.pending))
	for id := range r.pending {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
