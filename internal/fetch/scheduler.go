// Package fetch runs rate-limited concurrent HTTP fetch rounds over a list of URLs.
package fetch

import (
	"context"
	"io"
	"iter"
	"net/http"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/league-sync/internal/platform/logging"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxBodyBytes = 6 << 20

// ErrTransport marks a connection-level failure. It aborts the whole scrape.
var ErrTransport = crerr.New("fetch transport failure")

// ErrBodyTooLarge marks a successful response whose body exceeds Config.MaxBodyBytes. It
// aborts the whole scrape.
var ErrBodyTooLarge = crerr.New("fetch body exceeds limit")

// Doer sends one HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	Profile
	Method string
	// PermanentStatuses are dropped after one attempt. Nil means DefaultPermanentStatuses.
	PermanentStatuses []int
	Timeout           time.Duration
	MaxBodyBytes      int64
	UserAgent         string
	Client            Doer
	Logger            *logging.Logger
}

// Response is one successful fetch.
type Response struct {
	URL    string
	Status int
	Body   []byte
}

type Scheduler struct {
	profile   Profile
	method    string
	policy    StatusPolicy
	maxBody   int64
	userAgent string
	client    Doer
	logger    *logging.Logger
}

func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	permanent := cfg.PermanentStatuses
	if permanent == nil {
		permanent = DefaultPermanentStatuses
	}

	profile := cfg.Profile
	if profile.BatchSize <= 0 {
		profile.BatchSize = 1
	}
	if profile.DelaySize <= 0 {
		profile.DelaySize = 1
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	return &Scheduler{
		profile:   profile,
		method:    method,
		policy:    NewStatusPolicy(permanent),
		maxBody:   maxBody,
		userAgent: cfg.UserAgent,
		client:    client,
		logger:    logger,
	}
}

// WithMethod returns a scheduler sharing this one's client and profile that sends method.
func (s *Scheduler) WithMethod(method string) *Scheduler {
	out := *s
	out.method = strings.ToUpper(strings.TrimSpace(method))
	return &out
}

// WithProfile returns a scheduler sharing this one's client that uses profile.
func (s *Scheduler) WithProfile(profile Profile) *Scheduler {
	out := *s
	out.profile = profile
	if out.profile.BatchSize <= 0 {
		out.profile.BatchSize = 1
	}
	return &out
}

func (s *Scheduler) Profile() Profile {
	return s.profile
}

type outcome struct {
	status int
	body   []byte
	err    error
}

// Scrape fetches urls in rounds of at most BatchSize concurrent requests. Each element of
// the sequence is the set of successful responses of one round. URLs with a retryable
// status stay outstanding for the next round; URLs with a permanent status are dropped.
// The sequence ends when nothing is outstanding, when the consumer stops, or after
// yielding a transport error.
func (s *Scheduler) Scrape(ctx context.Context, urls []string) iter.Seq2[[]Response, error] {
	return func(yield func([]Response, error) bool) {
		outstanding := append([]string(nil), urls...)
		if len(outstanding) == 0 {
			return
		}

		pool, err := ants.NewPool(s.profile.BatchSize)
		if err != nil {
			yield(nil, crerr.Wrap(err, "create fetch worker pool"))
			return
		}
		defer pool.Release()

		for round := 1; len(outstanding) > 0; round++ {
			n := min(s.profile.BatchSize, len(outstanding))
			batch := outstanding[:n]
			outcomes, err := s.runRound(ctx, pool, batch)
			if err != nil {
				yield(nil, err)
				return
			}

			responses := make([]Response, 0, n)
			retry := make([]string, 0, n)
			dropped := 0
			for i, out := range outcomes {
				switch {
				case s.policy.Success(out.status):
					responses = append(responses, Response{URL: batch[i], Status: out.status, Body: out.body})
				case s.policy.Permanent(out.status):
					dropped++
					s.logger.WarnContext(ctx, "fetch dropped url with permanent status",
						"url", batch[i],
						"status", out.status,
					)
				default:
					retry = append(retry, batch[i])
				}
			}
			outstanding = append(retry, outstanding[n:]...)

			s.logger.DebugContext(ctx, "fetch round finished",
				"round", round,
				"requested", n,
				"succeeded", len(responses),
				"dropped", dropped,
				"outstanding", len(outstanding),
			)

			if !yield(responses, nil) {
				return
			}

			if len(responses) == 0 && len(outstanding) > 0 && s.profile.EmptyRoundBackoff > 0 {
				s.logger.WarnContext(ctx, "fetch round returned nothing, backing off",
					"round", round,
					"backoff", s.profile.EmptyRoundBackoff,
				)
				if err := sleep(ctx, s.profile.EmptyRoundBackoff); err != nil {
					yield(nil, crerr.Wrap(err, "fetch backoff"))
					return
				}
			}
		}
	}
}

// Collect drains Scrape into one slice.
func (s *Scheduler) Collect(ctx context.Context, urls []string) ([]Response, error) {
	var out []Response
	for batch, err := range s.Scrape(ctx, urls) {
		if err != nil {
			return out, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (s *Scheduler) runRound(ctx context.Context, pool *ants.Pool, batch []string) ([]outcome, error) {
	outcomes := make([]outcome, len(batch))
	delays := s.profile.Delays(len(batch))

	var workers sync.WaitGroup
	for i, target := range batch {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			outcomes[i] = s.fetchOne(ctx, target, delays[i])
		}); err != nil {
			workers.Done()
			workers.Wait()
			return nil, crerr.Wrap(err, "submit fetch to worker pool")
		}
	}
	workers.Wait()

	for _, out := range outcomes {
		if out.err != nil {
			return nil, out.err
		}
	}
	return outcomes, nil
}

func (s *Scheduler) fetchOne(ctx context.Context, target string, delay time.Duration) outcome {
	if err := sleep(ctx, delay); err != nil {
		return outcome{err: crerr.Wrap(err, "fetch delay")}
	}

	req, err := http.NewRequestWithContext(ctx, s.method, target, nil)
	if err != nil {
		return outcome{err: crerr.Wrapf(err, "build request %s", target)}
	}
	req.Header.Set("accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("user-agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return outcome{err: crerr.Mark(crerr.Wrapf(err, "%s %s", s.method, target), ErrTransport)}
	}
	defer resp.Body.Close()

	if !s.policy.Success(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, s.maxBody))
		return outcome{status: resp.StatusCode}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, s.maxBody+1)); err != nil {
		return outcome{err: crerr.Mark(crerr.Wrapf(err, "read body %s", target), ErrTransport)}
	}
	if int64(buf.Len()) > s.maxBody {
		return outcome{err: crerr.Wrapf(ErrBodyTooLarge, "%s: body exceeds limit of %d bytes", target, s.maxBody)}
	}

	return outcome{status: resp.StatusCode, body: append([]byte(nil), buf.B...)}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
