package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/fetch"
	"github.com/riskibarqy/league-sync/internal/infrastructure/provider/etf2l"
	"github.com/riskibarqy/league-sync/internal/infrastructure/provider/rgl"
	"github.com/riskibarqy/league-sync/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/league-sync/internal/platform/logging"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

const (
	steamA int64 = 76561198000000001
	steamB int64 = 76561198000000002
	steamC int64 = 76561198000000003
)

// fakeLeague serves the subset of the RGL and ETF2L APIs the reconciler uses.
type fakeLeague struct {
	mu        sync.Mutex
	matches   []string
	details   map[int64]string
	teams     map[int64]string
	profiles  map[int64]string
	etf2lList []string
	hits      map[string]int
}

func newFakeLeague() *fakeLeague {
	return &fakeLeague{
		details:  make(map[int64]string),
		teams:    make(map[int64]string),
		profiles: make(map[int64]string),
		hits:     make(map[string]int),
	}
}

func (f *fakeLeague) addMatch(payload string) {
	var head struct {
		MatchID int64 `json:"matchId"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, payload)
	f.details[head.MatchID] = payload
}

func (f *fakeLeague) hit(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func (f *fakeLeague) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rgl/matches/paged", func(w http.ResponseWriter, r *http.Request) {
		take, _ := strconv.Atoi(r.URL.Query().Get("take"))
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

		f.mu.Lock()
		f.hits["paged"]++
		items := []json.RawMessage{}
		for i := skip; i < len(f.matches) && i < skip+take; i++ {
			items = append(items, json.RawMessage(f.matches[i]))
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(items)
	})
	mux.HandleFunc("GET /rgl/matches/{id}", f.serveDetail("match", func() map[int64]string { return f.details }))
	mux.HandleFunc("GET /rgl/teams/{id}", f.serveDetail("team", func() map[int64]string { return f.teams }))
	mux.HandleFunc("GET /rgl/profile/{id}", f.serveDetail("profile", func() map[int64]string { return f.profiles }))
	mux.HandleFunc("GET /etf2l/teams", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

		f.mu.Lock()
		f.hits["etf2l-teams"]++
		items := []json.RawMessage{}
		for i := (page - 1) * perPage; i >= 0 && i < len(f.etf2lList) && i < page*perPage; i++ {
			items = append(items, json.RawMessage(f.etf2lList[i]))
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": map[string]any{"data": items, "total": len(f.etf2lList)},
		})
	})
	return mux
}

func (f *fakeLeague) serveDetail(key string, table func() map[int64]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.hits[fmt.Sprintf("%s/%d", key, id)]++
		body, ok := table()[id]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}
}

type harness struct {
	league *fakeLeague
	server *httptest.Server
	store  *memory.Store
	logs   *observer.ObservedLogs
	logger *logging.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	league := newFakeLeague()
	server := httptest.NewServer(league.handler())
	t.Cleanup(server.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	return &harness{
		league: league,
		server: server,
		store:  memory.NewStore(),
		logs:   logs,
		logger: logging.FromZap(zap.New(core)),
	}
}

func (h *harness) scheduler() *fetch.Scheduler {
	return fetch.NewScheduler(fetch.Config{
		Profile: fetch.Profile{BatchSize: 4, DelaySize: 4},
		Client:  h.server.Client(),
		Logger:  h.logger,
	})
}

func (h *harness) feeds() []usecase.Feed {
	sched := h.scheduler()
	rglEndpoints := rgl.NewEndpoints(h.server.URL + "/rgl")
	etf2lEndpoints := etf2l.NewEndpoints(h.server.URL + "/etf2l")
	return []usecase.Feed{
		{Endpoints: rglEndpoints, Lister: sched.WithMethod(rglEndpoints.ListMethod()), Fetcher: sched},
		{Endpoints: etf2lEndpoints, Fetcher: sched},
	}
}

func (h *harness) reconciler(store usecase.Store, cfg usecase.ReconcilerConfig) *usecase.Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = h.logger
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 2
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = 3
	}
	return usecase.NewReconciler(store, h.feeds(), cfg)
}

func rglMatch(id, home, away int64, maps string) string {
	return fmt.Sprintf(`{"matchId":%d,"matchName":"Week %d","matchDate":"2017-06-15T01:30:00.000Z","seasonId":1,"divisionId":7,"regionId":1,"teams":[{"teamId":%d,"isHome":true},{"teamId":%d,"isHome":false}],"maps":%s}`,
		id, id, home, away, maps)
}

func rglTeam(id int64, name string, linked []int64, players ...int64) string {
	members := make([]string, 0, len(players))
	for _, p := range players {
		members = append(members, fmt.Sprintf(`{"steamId":"%d","joinedAt":"2017-05-01T00:00:00Z"}`, p))
	}
	linkedJSON, _ := json.Marshal(linked)
	if linked == nil {
		linkedJSON = []byte("[]")
	}
	return fmt.Sprintf(`{"teamId":%d,"name":%q,"tag":"T%d","linkedTeams":%s,"players":[%s]}`,
		id, name, id, linkedJSON, joinJSON(members))
}

func rglProfile(id int64, name string) string {
	return fmt.Sprintf(`{"steamId":"%d","name":%q,"avatar":"https://avatars.test/%d.jpg","status":{"isBanned":false,"isVerified":true}}`, id, name, id)
}

func joinJSON(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}

func matchBySite(t *testing.T, store *memory.Store, site source.SiteID) match.Match {
	t.Helper()
	m, ok, err := store.MatchBySiteID(context.Background(), site)
	if err != nil || !ok {
		t.Fatalf("match %s not stored: ok=%v err=%v", site, ok, err)
	}
	return m
}

func rosterBySite(t *testing.T, store *memory.Store, site source.SiteID) roster.Roster {
	t.Helper()
	r, ok, err := store.RosterBySiteID(context.Background(), site)
	if err != nil || !ok {
		t.Fatalf("roster %s not stored: ok=%v err=%v", site, ok, err)
	}
	return r
}

// recordingSink keeps checkpoint documents in memory.
type recordingSink struct {
	mu   sync.Mutex
	docs map[entity.Kind][][]byte
}

func newRecordingSink() *recordingSink {
	return &recordingSink{docs: make(map[entity.Kind][][]byte)}
}

func (s *recordingSink) Append(_ context.Context, kind entity.Kind, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[kind] = append(s.docs[kind], append([]byte(nil), doc...))
	return nil
}

func (s *recordingSink) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]byte
	for _, kind := range []entity.Kind{entity.KindPlayer, entity.KindRoster, entity.KindMatch} {
		out = append(out, s.docs[kind]...)
	}
	return out
}
