package usecase_test

import (
	"context"
	"testing"

	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

func TestSynchronizeAllCompletesEveryStub(t *testing.T) {
	h := newHarness(t)
	seedTwoMatches(h)
	h.league.teams[54] = rglTeam(54, "Froyotech", nil, steamA)
	h.league.teams[41] = rglTeam(41, "Froyo Academy", nil, steamB)
	h.league.teams[12] = rglTeam(12, "Ascent", nil, steamC)
	h.league.profiles[steamA] = rglProfile(steamA, "b4nny")
	h.league.profiles[steamB] = rglProfile(steamB, "habib")
	h.league.profiles[steamC] = rglProfile(steamC, "blaze")
	rec := h.reconciler(h.store, usecase.ReconcilerConfig{})

	reports, err := rec.SynchronizeAll(context.Background(), source.RGL)
	require.NoError(t, err)

	kinds := make([]entity.Kind, 0, len(reports))
	for _, rep := range reports {
		kinds = append(kinds, rep.Kind)
	}
	require.Equal(t, []entity.Kind{entity.KindMatch, entity.KindMatch, entity.KindRoster, entity.KindPlayer}, kinds)
	require.Equal(t, 2, reports[0].Added)
	require.Equal(t, 2, reports[1].Completed)
	require.Equal(t, 3, reports[2].Completed)
	require.Equal(t, 3, reports[3].Completed)

	for _, m := range h.store.Matches() {
		require.True(t, m.Complete, "match %d", m.ID)
	}
	for _, p := range h.store.Players() {
		require.True(t, p.Complete, "player %d", p.ID)
	}
	require.Len(t, h.store.Teams(), 3)
	require.Zero(t, h.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	require.Equal(t, 1, h.logs.FilterMessage("listing sync unsupported").Len())
}

func TestSynchronizeAllStopsAtFirstFailure(t *testing.T) {
	h := newHarness(t)
	rec := h.reconciler(h.store, usecase.ReconcilerConfig{})

	reports, err := rec.SynchronizeAll(context.Background(), source.UGC)
	require.True(t, crerr.Is(err, usecase.ErrDependencyUnavailable), "unexpected error: %v", err)
	require.Empty(t, reports)
}
