package fetch

import (
	"context"
	"time"

	crerr "github.com/cockroachdb/errors"
)

// Grid is the parameter space searched by Calibrate.
type Grid struct {
	BatchSize  int
	Samples    int
	DelaySizes []int
	DelaySteps []time.Duration
}

// DefaultGrid covers tiers of 1 through 5 requests and steps of 100ms through 1s.
func DefaultGrid() Grid {
	steps := make([]time.Duration, 0, 10)
	for step := 100 * time.Millisecond; step <= time.Second; step += 100 * time.Millisecond {
		steps = append(steps, step)
	}
	return Grid{
		BatchSize:  9,
		Samples:    9,
		DelaySizes: []int{1, 2, 3, 4, 5},
		DelaySteps: steps,
	}
}

// Trial is the measured cost of one profile.
type Trial struct {
	Profile Profile
	Elapsed time.Duration
	Fetched int
}

// Calibrate fully scrapes Samples copies of testURL under every profile in the grid and
// returns the fastest one along with every trial in search order.
func (s *Scheduler) Calibrate(ctx context.Context, testURL string, grid Grid) (Profile, []Trial, error) {
	if len(grid.DelaySizes) == 0 || len(grid.DelaySteps) == 0 {
		return Profile{}, nil, crerr.New("calibration grid is empty")
	}
	batch := grid.BatchSize
	if batch <= 0 {
		batch = s.profile.BatchSize
	}
	samples := grid.Samples
	if samples <= 0 {
		samples = batch
	}
	urls := make([]string, samples)
	for i := range urls {
		urls[i] = testURL
	}

	trials := make([]Trial, 0, len(grid.DelaySizes)*len(grid.DelaySteps))
	best := -1
	for _, size := range grid.DelaySizes {
		for _, step := range grid.DelaySteps {
			profile := Profile{BatchSize: batch, DelayStep: step, DelaySize: size}
			start := time.Now()
			responses, err := s.WithProfile(profile).Collect(ctx, urls)
			if err != nil {
				return Profile{}, trials, crerr.Wrapf(err, "calibrate size=%d step=%s", size, step)
			}
			trial := Trial{Profile: profile, Elapsed: time.Since(start), Fetched: len(responses)}
			trials = append(trials, trial)
			if best < 0 || trial.Elapsed < trials[best].Elapsed {
				best = len(trials) - 1
			}
			s.logger.DebugContext(ctx, "calibration trial",
				"delay_size", size,
				"delay_step", step,
				"elapsed", trial.Elapsed,
			)
		}
	}

	return trials[best].Profile, trials, nil
}
