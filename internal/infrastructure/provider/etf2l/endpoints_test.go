package etf2l

import (
	"testing"

	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/normalize"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

func TestListPagesSplitsCursor(t *testing.T) {
	e := NewEndpoints("https://etf2l.test")

	pages, err := e.ListPages(entity.KindMatch, 25, 10, 2)
	require.NoError(t, err)
	require.Equal(t, []usecase.PageRequest{
		{URL: "https://etf2l.test/matches?page=3&per_page=10", Skip: 5},
		{URL: "https://etf2l.test/matches?page=4&per_page=10"},
	}, pages)

	pages, err = e.ListPages(entity.KindRoster, 0, 100, 1)
	require.NoError(t, err)
	require.Equal(t, "https://etf2l.test/teams?page=1&per_page=100", pages[0].URL)
	require.Zero(t, pages[0].Skip)
}

func TestListPagesRejectsPlayers(t *testing.T) {
	_, err := NewEndpoints("").ListPages(entity.KindPlayer, 0, 10, 1)
	if !crerr.Is(err, usecase.ErrListingUnsupported) {
		t.Fatalf("expected ErrListingUnsupported, got %v", err)
	}
}

func TestParseListEnvelope(t *testing.T) {
	e := NewEndpoints("")

	records, err := e.ParseList(entity.KindMatch, []byte(`{"results":{"data":[{"id":7},{"id":8}],"total":2}}`))
	require.NoError(t, err)
	require.Len(t, records, 2)

	_, err = e.ParseList(entity.KindMatch, []byte(`{"status":{"code":429}}`))
	if !crerr.Is(err, normalize.ErrMalformedPayload) {
		t.Fatalf("expected malformed payload, got %v", err)
	}
}

func TestParseDetailUnwraps(t *testing.T) {
	e := NewEndpoints("")

	raw, err := e.ParseDetail(entity.KindRoster, []byte(`{"status":{"code":200},"team":{"id":5,"name":"Froyotech"}}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"id":5,"name":"Froyotech"}`, string(raw))

	_, err = e.ParseDetail(entity.KindMatch, []byte(`{"team":{"id":5}}`))
	if !crerr.Is(err, normalize.ErrMalformedPayload) {
		t.Fatalf("expected malformed payload, got %v", err)
	}
}

func TestDetailURL(t *testing.T) {
	e := NewEndpoints("")
	got, err := e.DetailURL(entity.KindRoster, 5)
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL+"/team/5", got)

	got, err = e.DetailURL(entity.KindPlayer, 76561197960287930)
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL+"/player/76561197960287930", got)
}
