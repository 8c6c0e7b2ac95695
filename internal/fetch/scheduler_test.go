package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"
)

type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) inc(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hits == nil {
		h.hits = make(map[string]int)
	}
	h.hits[path]++
	return h.hits[path]
}

func (h *hitCounter) get(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func newScriptedServer(t *testing.T, script func(path string, attempt int) int) (*httptest.Server, *hitCounter) {
	t.Helper()
	counter := &hitCounter{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := counter.inc(r.URL.Path)
		status := script(r.URL.Path, attempt)
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, counter
}

func urlsFor(base string, paths ...string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, base+p)
	}
	return out
}

func bodies(responses []Response) []string {
	out := make([]string, 0, len(responses))
	for _, r := range responses {
		out = append(out, string(r.Body))
	}
	slices.Sort(out)
	return out
}

func TestDelayFor(t *testing.T) {
	t.Parallel()

	step := 200 * time.Millisecond
	cases := []struct {
		index int
		size  int
		want  time.Duration
	}{
		{0, 1, 0},
		{1, 1, step},
		{4, 1, 4 * step},
		{0, 5, 0},
		{4, 5, 0},
		{5, 5, step},
		{9, 5, step},
		{3, 0, 3 * step},
	}
	for _, tc := range cases {
		if got := DelayFor(tc.index, step, tc.size); got != tc.want {
			t.Fatalf("DelayFor(%d, size=%d): want %s got %s", tc.index, tc.size, tc.want, got)
		}
	}
}

func TestScrapeBatchLargerThanInput(t *testing.T) {
	t.Parallel()

	srv, _ := newScriptedServer(t, func(string, int) int { return http.StatusOK })
	s := NewScheduler(Config{Profile: Profile{BatchSize: 10, DelaySize: 1}})

	rounds := 0
	var all []Response
	for batch, err := range s.Scrape(context.Background(), urlsFor(srv.URL, "/a", "/b", "/c")) {
		if err != nil {
			t.Fatalf("scrape: %v", err)
		}
		rounds++
		all = append(all, batch...)
	}

	if rounds != 1 {
		t.Fatalf("expected one round, got %d", rounds)
	}
	want := []string{`{"path":"/a"}`, `{"path":"/b"}`, `{"path":"/c"}`}
	if got := bodies(all); !slices.Equal(got, want) {
		t.Fatalf("unexpected bodies: %v", got)
	}
}

func TestScrapeRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	srv, counter := newScriptedServer(t, func(path string, attempt int) int {
		if path == "/b" && attempt < 3 {
			return http.StatusTooManyRequests
		}
		return http.StatusOK
	})
	s := NewScheduler(Config{Profile: Profile{BatchSize: 2, DelaySize: 1}})

	var rounds [][]string
	for batch, err := range s.Scrape(context.Background(), urlsFor(srv.URL, "/a", "/b", "/c")) {
		if err != nil {
			t.Fatalf("scrape: %v", err)
		}
		rounds = append(rounds, bodies(batch))
	}

	// round 1: a ok, b 429. round 2: b 429, c ok. round 3: b ok.
	if len(rounds) != 3 {
		t.Fatalf("expected 3 rounds, got %d: %v", len(rounds), rounds)
	}
	if !slices.Equal(rounds[2], []string{`{"path":"/b"}`}) {
		t.Fatalf("unexpected final round: %v", rounds[2])
	}
	if counter.get("/a") != 1 || counter.get("/c") != 1 || counter.get("/b") != 3 {
		t.Fatalf("unexpected hit counts: a=%d b=%d c=%d", counter.get("/a"), counter.get("/b"), counter.get("/c"))
	}
}

func TestScrapeDropsPermanentStatus(t *testing.T) {
	t.Parallel()

	srv, counter := newScriptedServer(t, func(path string, _ int) int {
		if path == "/broken" {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	})
	s := NewScheduler(Config{Profile: Profile{BatchSize: 4, DelaySize: 1}})

	all, err := s.Collect(context.Background(), urlsFor(srv.URL, "/ok", "/broken"))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(all) != 1 || all[0].URL != srv.URL+"/ok" {
		t.Fatalf("unexpected responses: %+v", all)
	}
	if counter.get("/broken") != 1 {
		t.Fatalf("expected permanent failure to be requested once, got %d", counter.get("/broken"))
	}
}

func TestScrapeRetriesServerErrorWhenNotPermanent(t *testing.T) {
	t.Parallel()

	srv, counter := newScriptedServer(t, func(_ string, attempt int) int {
		if attempt < 3 {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	})
	s := NewScheduler(Config{Profile: Profile{BatchSize: 1, DelaySize: 1}, PermanentStatuses: []int{}})

	all, err := s.Collect(context.Background(), urlsFor(srv.URL, "/flaky"))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(all) != 1 || counter.get("/flaky") != 3 {
		t.Fatalf("expected success on third attempt, got %d responses after %d hits", len(all), counter.get("/flaky"))
	}
}

func TestScrapeYieldsEveryDuplicateURL(t *testing.T) {
	t.Parallel()

	srv, _ := newScriptedServer(t, func(string, int) int { return http.StatusOK })
	s := NewScheduler(Config{Profile: Profile{BatchSize: 2, DelayStep: time.Millisecond, DelaySize: 1}})

	all, err := s.Collect(context.Background(), urlsFor(srv.URL, "/x", "/x", "/x"))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(all))
	}
}

type failingDoer struct{ err error }

func (d failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, d.err
}

func TestScrapeTransportErrorIsFatal(t *testing.T) {
	t.Parallel()

	refused := crerr.New("connection refused")
	s := NewScheduler(Config{Profile: Profile{BatchSize: 3, DelaySize: 1}, Client: failingDoer{err: refused}})

	var gotErr error
	rounds := 0
	for _, err := range s.Scrape(context.Background(), []string{"http://a", "http://b"}) {
		rounds++
		gotErr = err
	}
	if rounds != 1 {
		t.Fatalf("expected scrape to stop after the error, got %d elements", rounds)
	}
	if !crerr.Is(gotErr, ErrTransport) || !crerr.Is(gotErr, refused) {
		t.Fatalf("expected transport error, got %v", gotErr)
	}
}

func TestScrapeRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fits" {
			_, _ = w.Write([]byte(`[1,2]`))
			return
		}
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	t.Cleanup(srv.Close)

	s := NewScheduler(Config{Profile: Profile{BatchSize: 1}, MaxBodyBytes: 5})
	fits, err := s.Collect(context.Background(), []string{srv.URL + "/fits"})
	if err != nil {
		t.Fatalf("collect body at limit: %v", err)
	}
	if len(fits) != 1 || string(fits[0].Body) != `[1,2]` {
		t.Fatalf("expected the full body at the limit, got %+v", fits)
	}

	_, err = s.Collect(context.Background(), []string{srv.URL + "/large"})
	if !crerr.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected body limit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds limit of 5 bytes") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestScrapeStopsWhenConsumerStops(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	s := NewScheduler(Config{Profile: Profile{BatchSize: 2, DelaySize: 1}})
	for _, err := range s.Scrape(context.Background(), urlsFor(srv.URL, "/1", "/2", "/3", "/4", "/5")) {
		if err != nil {
			t.Fatalf("scrape: %v", err)
		}
		break
	}

	if got := requests.Load(); got != 2 {
		t.Fatalf("expected only the first round to be issued, got %d requests", got)
	}
}

func TestScrapeCancelledDuringDelay(t *testing.T) {
	t.Parallel()

	srv, _ := newScriptedServer(t, func(string, int) int { return http.StatusOK })
	s := NewScheduler(Config{Profile: Profile{BatchSize: 2, DelayStep: time.Hour, DelaySize: 1}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Collect(ctx, urlsFor(srv.URL, "/a", "/b"))
	if !crerr.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestScrapeBacksOffAfterEmptyRound(t *testing.T) {
	t.Parallel()

	srv, _ := newScriptedServer(t, func(_ string, attempt int) int {
		if attempt == 1 {
			return http.StatusTooManyRequests
		}
		return http.StatusOK
	})
	backoff := 30 * time.Millisecond
	s := NewScheduler(Config{Profile: Profile{BatchSize: 1, DelaySize: 1, EmptyRoundBackoff: backoff}})

	start := time.Now()
	all, err := s.Collect(context.Background(), urlsFor(srv.URL, "/limited"))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one response, got %d", len(all))
	}
	if elapsed := time.Since(start); elapsed < backoff {
		t.Fatalf("expected backoff of at least %s, took %s", backoff, elapsed)
	}
}

func TestWithMethodSendsPost(t *testing.T) {
	t.Parallel()

	var method atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	s := NewScheduler(Config{Profile: Profile{BatchSize: 1}}).WithMethod(http.MethodPost)
	if _, err := s.Collect(context.Background(), []string{srv.URL + "/matches/paged?take=10&skip=0"}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got, _ := method.Load().(string); got != http.MethodPost {
		t.Fatalf("expected POST, got %q", got)
	}
}

func TestCalibratePicksFastestTrial(t *testing.T) {
	t.Parallel()

	srv, _ := newScriptedServer(t, func(string, int) int { return http.StatusOK })
	s := NewScheduler(Config{Profile: Profile{BatchSize: 3, DelaySize: 1}})

	grid := Grid{
		BatchSize:  3,
		Samples:    3,
		DelaySizes: []int{1, 3},
		DelaySteps: []time.Duration{time.Millisecond, 20 * time.Millisecond},
	}
	best, trials, err := s.Calibrate(context.Background(), srv.URL+"/calibrate", grid)
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if len(trials) != 4 {
		t.Fatalf("expected 4 trials, got %d", len(trials))
	}
	for _, trial := range trials {
		if trial.Fetched != 3 {
			t.Fatalf("trial %+v fetched %d", trial.Profile, trial.Fetched)
		}
	}
	var fastest Trial
	for i, trial := range trials {
		if i == 0 || trial.Elapsed < fastest.Elapsed {
			fastest = trial
		}
	}
	if fastest.Profile != best {
		t.Fatalf("expected best %+v, got %+v", fastest.Profile, best)
	}

	if _, _, err := s.Calibrate(context.Background(), srv.URL, Grid{}); err == nil {
		t.Fatalf("expected error for empty grid")
	}
}
