package usecase

import (
	"context"
	"sync"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/platform/logging"
)

const (
	defaultPageSize      = 1000
	defaultPagesPerRound = 1
	defaultMaxRounds     = 50
	defaultDetailBatch   = 200
)

type ReconcilerConfig struct {
	PageSize      int
	PagesPerRound int
	// MaxRounds bounds the scheduler rounds consumed per fetch. Zero means the default.
	MaxRounds   int
	DetailBatch int
	Checkpoint  CheckpointSink
	Logger      *logging.Logger
}

// Reconciler synchronizes one entity kind from one source at a time. A second operation
// started while one is running fails with ErrSyncInProgress.
type Reconciler struct {
	store  Store
	feeds  map[source.Source]Feed
	cfg    ReconcilerConfig
	logger *logging.Logger
	mu     sync.Mutex
}

func NewReconciler(store Store, feeds []Feed, cfg ReconcilerConfig) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PagesPerRound <= 0 {
		cfg.PagesPerRound = defaultPagesPerRound
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.DetailBatch <= 0 {
		cfg.DetailBatch = defaultDetailBatch
	}

	byID := make(map[source.Source]Feed, len(feeds))
	for _, feed := range feeds {
		if feed.Endpoints == nil {
			continue
		}
		if feed.Lister == nil {
			feed.Lister = feed.Fetcher
		}
		byID[feed.Endpoints.Source()] = feed
	}

	return &Reconciler{
		store:  store,
		feeds:  byID,
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

func (r *Reconciler) acquire() (func(), error) {
	if !r.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	return r.mu.Unlock, nil
}

func (r *Reconciler) feed(src source.Source) (Feed, error) {
	feed, ok := r.feeds[src]
	if !ok || feed.Fetcher == nil {
		return Feed{}, crerr.Wrapf(ErrDependencyUnavailable, "no feed configured for source %s", src)
	}
	return feed, nil
}

// Tally counts outcomes for one entity kind.
type Tally struct {
	Added     int
	Updated   int
	Skipped   int
	Completed int
}

func (t *Tally) add(other Tally) {
	t.Added += other.Added
	t.Updated += other.Updated
	t.Skipped += other.Skipped
	t.Completed += other.Completed
}

// Report summarizes one synchronization operation. Related counts entities written as a
// side effect, such as roster stubs created from match details.
type Report struct {
	Source  source.Source
	Kind    entity.Kind
	Batches int
	Tally
	Related map[entity.Kind]Tally
}

func newReport(src source.Source, kind entity.Kind) Report {
	return Report{Source: src, Kind: kind, Related: make(map[entity.Kind]Tally)}
}

func (rep *Report) absorb(result commitResult) {
	if len(result) == 0 {
		return
	}
	rep.Batches++
	for kind, tally := range result {
		if kind == rep.Kind {
			rep.Tally.add(tally)
			continue
		}
		related := rep.Related[kind]
		related.add(tally)
		rep.Related[kind] = related
	}
}

func (rep Report) logArgs() []any {
	return []any{
		"source", rep.Source.String(),
		"kind", rep.Kind.String(),
		"batches", rep.Batches,
		"added", rep.Added,
		"updated", rep.Updated,
		"skipped", rep.Skipped,
		"completed", rep.Completed,
		"related", rep.Related,
	}
}

// commitResult is the per-kind outcome of one committed batch.
type commitResult map[entity.Kind]Tally

func (c commitResult) bump(kind entity.Kind, fn func(*Tally)) {
	tally := c[kind]
	fn(&tally)
	c[kind] = tally
}

func (r *Reconciler) finish(ctx context.Context, msg string, rep Report, err error) (Report, error) {
	annotateSpan(ctx, rep, err)
	if crerr.Is(err, ErrListingUnsupported) {
		r.logger.DebugContext(ctx, msg+" unsupported", append(rep.logArgs(), "error", err)...)
		return rep, err
	}
	if err != nil {
		r.logger.ErrorContext(ctx, msg+" failed", append(rep.logArgs(), "error", err)...)
		return rep, err
	}
	r.logger.InfoContext(ctx, msg+" finished", rep.logArgs()...)
	return rep, nil
}
