package usecase

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/domain/team"
	"github.com/riskibarqy/league-sync/internal/fetch"
)

// Store is the persistence boundary of the reconciler.
type Store interface {
	MaxSurrogateID(ctx context.Context, kind entity.Kind) (int64, error)
	CountDurable(ctx context.Context, kind entity.Kind, src source.Source) (int, error)
	ExistsBySiteID(ctx context.Context, kind entity.Kind, id source.SiteID) (bool, error)
	ExistsByID(ctx context.Context, kind entity.Kind, id int64) (bool, error)

	MatchBySiteID(ctx context.Context, id source.SiteID) (match.Match, bool, error)
	RosterBySiteID(ctx context.Context, id source.SiteID) (roster.Roster, bool, error)
	PlayerByID(ctx context.Context, id int64) (player.Player, bool, error)

	// Incomplete* page stub ids in ascending order, strictly after afterID.
	IncompleteMatches(ctx context.Context, src source.Source, afterID int64, limit int) ([]int64, error)
	IncompleteRosters(ctx context.Context, src source.Source, afterID int64, limit int) ([]int64, error)
	// IncompletePlayers only returns players on at least one roster carrying a src site id.
	IncompletePlayers(ctx context.Context, src source.Source, afterID int64, limit int) ([]int64, error)

	Begin(ctx context.Context) (Tx, error)
}

// Tx applies one batch atomically. Insert methods report false when a uniqueness
// constraint rejects the row.
type Tx interface {
	InsertTeam(ctx context.Context, t team.Team) (bool, error)
	DeleteTeam(ctx context.Context, id int64) error
	InsertPlayer(ctx context.Context, p player.Player) (bool, error)
	UpdatePlayer(ctx context.Context, p player.Player) error
	InsertRoster(ctx context.Context, r roster.Roster) (bool, error)
	UpdateRoster(ctx context.Context, r roster.Roster) error
	RosterIDBySiteID(ctx context.Context, id source.SiteID) (int64, bool, error)
	InsertMatch(ctx context.Context, m match.Match) (bool, error)
	UpdateMatch(ctx context.Context, m match.Match) error
	Commit() error
	Rollback() error
}

// PageRequest is one listing page to fetch. Skip drops leading records already counted.
type PageRequest struct {
	URL  string
	Skip int
}

// Endpoints is the URL layout and envelope format of one source.
type Endpoints interface {
	Source() source.Source
	ListMethod() string
	ListPages(kind entity.Kind, cursor, pageSize, pages int) ([]PageRequest, error)
	ParseList(kind entity.Kind, body []byte) ([]json.RawMessage, error)
	DetailURL(kind entity.Kind, id int64) (string, error)
	ParseDetail(kind entity.Kind, body []byte) ([]byte, error)
}

// Fetcher turns URLs into rounds of successful responses.
type Fetcher interface {
	Scrape(ctx context.Context, urls []string) iter.Seq2[[]fetch.Response, error]
}

// Feed binds a source's endpoints to the fetchers used for listings and details.
type Feed struct {
	Endpoints Endpoints
	Lister    Fetcher
	Fetcher   Fetcher
}

// CheckpointSink receives one tagged document per committed entity.
type CheckpointSink interface {
	Append(ctx context.Context, kind entity.Kind, doc []byte) error
}
