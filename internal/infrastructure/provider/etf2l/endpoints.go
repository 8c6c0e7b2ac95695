package etf2l

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/normalize"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

const DefaultBaseURL = "https://api-v2.etf2l.org"

// Endpoints is the ETF2L v2 API layout. Listings are page numbered, so an offset cursor is
// split into a page number plus a skip inside the first page.
type Endpoints struct {
	baseURL string
}

func NewEndpoints(baseURL string) *Endpoints {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Endpoints{baseURL: baseURL}
}

var _ usecase.Endpoints = (*Endpoints)(nil)

type listEnvelope struct {
	Results *struct {
		Data  []json.RawMessage `json:"data"`
		Total int               `json:"total"`
	} `json:"results"`
}

func (e *Endpoints) Source() source.Source {
	return source.ETF2L
}

func (e *Endpoints) ListMethod() string {
	return http.MethodGet
}

func (e *Endpoints) ListPages(kind entity.Kind, cursor, pageSize, pages int) ([]usecase.PageRequest, error) {
	var path string
	switch kind {
	case entity.KindMatch:
		path = "/matches"
	case entity.KindRoster:
		path = "/teams"
	default:
		return nil, crerr.Wrapf(usecase.ErrListingUnsupported, "etf2l %s", kind)
	}
	if pageSize <= 0 || pages <= 0 {
		return nil, crerr.Wrapf(usecase.ErrInvalidInput, "page size %d pages %d", pageSize, pages)
	}

	first := cursor/pageSize + 1
	skip := cursor % pageSize
	out := make([]usecase.PageRequest, 0, pages)
	for i := range pages {
		query := url.Values{}
		query.Set("page", strconv.Itoa(first+i))
		query.Set("per_page", strconv.Itoa(pageSize))
		page := usecase.PageRequest{URL: e.baseURL + path + "?" + query.Encode()}
		if i == 0 {
			page.Skip = skip
		}
		out = append(out, page)
	}
	return out, nil
}

func (e *Endpoints) ParseList(kind entity.Kind, body []byte) ([]json.RawMessage, error) {
	var envelope listEnvelope
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return nil, crerr.Mark(crerr.Wrapf(err, "decode etf2l %s listing", kind), normalize.ErrMalformedPayload)
	}
	if envelope.Results == nil {
		return nil, crerr.Mark(crerr.Newf("etf2l %s listing has no results", kind), normalize.ErrMalformedPayload)
	}
	return envelope.Results.Data, nil
}

func (e *Endpoints) DetailURL(kind entity.Kind, id int64) (string, error) {
	switch kind {
	case entity.KindMatch:
		return fmt.Sprintf("%s/matches/%d", e.baseURL, id), nil
	case entity.KindRoster:
		return fmt.Sprintf("%s/team/%d", e.baseURL, id), nil
	case entity.KindPlayer:
		return fmt.Sprintf("%s/player/%d", e.baseURL, id), nil
	default:
		return "", crerr.Wrapf(usecase.ErrInvalidInput, "etf2l has no %s detail", kind)
	}
}

// ParseDetail unwraps the record from its {"match"|"team"|"player": {...}} envelope.
func (e *Endpoints) ParseDetail(kind entity.Kind, body []byte) ([]byte, error) {
	key, ok := detailKeys[kind]
	if !ok {
		return nil, crerr.Wrapf(usecase.ErrInvalidInput, "etf2l has no %s detail", kind)
	}
	var envelope map[string]json.RawMessage
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return nil, crerr.Mark(crerr.Wrapf(err, "decode etf2l %s detail", kind), normalize.ErrMalformedPayload)
	}
	raw, ok := envelope[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, crerr.Mark(crerr.Newf("etf2l %s detail has no %q", kind, key), normalize.ErrMalformedPayload)
	}
	return raw, nil
}

var detailKeys = map[entity.Kind]string{
	entity.KindMatch:  "match",
	entity.KindRoster: "team",
	entity.KindPlayer: "player",
}
