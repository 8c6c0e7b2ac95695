package fetch

import (
	"net/http"
	"time"
)

// Profile is the rate-limit shape of a source: how many requests run per round and how
// they are staggered inside it.
type Profile struct {
	BatchSize         int           `validate:"gte=1,lte=64"`
	DelayStep         time.Duration `validate:"gte=0"`
	DelaySize         int           `validate:"gte=1"`
	EmptyRoundBackoff time.Duration `validate:"gte=0"`
}

// DelayFor returns the stagger for the request at index within a round. Every size
// consecutive requests share one tier.
func DelayFor(index int, step time.Duration, size int) time.Duration {
	if size <= 0 {
		size = 1
	}
	return step * time.Duration(index/size)
}

// Delays computes the tier delay of each of n requests under the profile.
func (p Profile) Delays(n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = DelayFor(i, p.DelayStep, p.DelaySize)
	}
	return out
}

// StatusPolicy decides what happens to a URL after a response.
type StatusPolicy struct {
	permanent map[int]struct{}
}

// DefaultPermanentStatuses lists the statuses dropped when Config.PermanentStatuses is nil.
var DefaultPermanentStatuses = []int{http.StatusInternalServerError}

func NewStatusPolicy(permanent []int) StatusPolicy {
	set := make(map[int]struct{}, len(permanent))
	for _, status := range permanent {
		set[status] = struct{}{}
	}
	return StatusPolicy{permanent: set}
}

func (p StatusPolicy) Success(status int) bool {
	return status >= 200 && status < 300
}

func (p StatusPolicy) Permanent(status int) bool {
	_, ok := p.permanent[status]
	return ok
}

// Resolved reports whether the URL leaves the outstanding set.
func (p StatusPolicy) Resolved(status int) bool {
	return p.Success(status) || p.Permanent(status)
}
