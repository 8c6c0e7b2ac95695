// Package app wires configuration into a ready reconciler.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskibarqy/league-sync/internal/config"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/fetch"
	"github.com/riskibarqy/league-sync/internal/infrastructure/checkpoint"
	"github.com/riskibarqy/league-sync/internal/infrastructure/provider/etf2l"
	"github.com/riskibarqy/league-sync/internal/infrastructure/provider/rgl"
	"github.com/riskibarqy/league-sync/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/league-sync/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/league-sync/internal/platform/logging"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

type App struct {
	Config     config.Config
	Logger     *logging.Logger
	Store      usecase.Store
	Reconciler *usecase.Reconciler
	// Schedulers holds the detail scheduler of every configured source.
	Schedulers map[source.Source]*fetch.Scheduler

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	logger = logging.Or(logger)
	a := &App{Config: cfg, Logger: logger, Schedulers: make(map[source.Source]*fetch.Scheduler)}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = store

	var sink usecase.CheckpointSink
	if cfg.CheckpointDir != "" {
		writer, err := checkpoint.NewWriter(cfg.CheckpointDir)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, writer.Close)
		sink = writer
		logger.Info("checkpoints enabled", "dir", cfg.CheckpointDir)
	}

	a.Reconciler = usecase.NewReconciler(store, a.feeds(), usecase.ReconcilerConfig{
		PageSize:      cfg.ListPageSize,
		PagesPerRound: cfg.ListPagesPerRound,
		MaxRounds:     cfg.DetailMaxRounds,
		DetailBatch:   cfg.DetailBatch,
		Checkpoint:    sink,
		Logger:        logger.Named("reconciler"),
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context) (usecase.Store, error) {
	switch a.Config.StoreDriver {
	case config.StoreMemory:
		a.Logger.Warn("using memory store, nothing will persist past this process")
		return memory.NewStore(), nil
	case config.StorePostgres:
		db, err := openDB(ctx, a.Config)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return postgres.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
	}
}

func (a *App) feeds() []usecase.Feed {
	endpoints := []usecase.Endpoints{
		rgl.NewEndpoints(a.Config.RGLBaseURL),
		etf2l.NewEndpoints(a.Config.ETF2LBaseURL),
	}

	feeds := make([]usecase.Feed, 0, len(endpoints))
	for _, ep := range endpoints {
		src := ep.Source()
		sched := a.Scheduler(src)
		a.Schedulers[src] = sched
		feeds = append(feeds, usecase.Feed{
			Endpoints: ep,
			Lister:    sched.WithMethod(ep.ListMethod()),
			Fetcher:   sched,
		})
	}
	return feeds
}

// Scheduler builds a GET scheduler using the configured profile of src.
func (a *App) Scheduler(src source.Source) *fetch.Scheduler {
	return fetch.NewScheduler(fetch.Config{
		Profile:           a.Config.Profile(src),
		PermanentStatuses: a.Config.FetchPermanentStatuses,
		Timeout:           a.Config.FetchTimeout,
		UserAgent:         a.Config.ServiceName + "/" + a.Config.ServiceVersion,
		Logger:            a.Logger.Named("fetch").With("source", src.String()),
	})
}

// Close releases the store connection and checkpoint files.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
