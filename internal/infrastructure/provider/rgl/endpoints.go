package rgl

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

const DefaultBaseURL = "https://api.rgl.gg/v0"

// Endpoints is the RGL public API layout. Matches are listed through the paged search
// endpoint, which takes an offset directly; teams and profiles have detail endpoints only.
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

func (e *Endpoints) Source() source.Source {
	return source.RGL
}

func (e *Endpoints) ListMethod() string {
	return http.MethodPost
}

func (e *Endpoints) ListPages(kind entity.Kind, cursor, pageSize, pages int) ([]usecase.PageRequest, error) {
	if kind != entity.KindMatch {
		return nil, crerr.Wrapf(usecase.ErrListingUnsupported, "rgl %s", kind)
	}
	if pageSize <= 0 || pages <= 0 {
		return nil, crerr.Wrapf(usecase.ErrInvalidInput, "page size %d pages %d", pageSize, pages)
	}

	out := make([]usecase.PageRequest, 0, pages)
	for i := range pages {
		query := url.Values{}
		query.Set("take", strconv.Itoa(pageSize))
		query.Set("skip", strconv.Itoa(cursor+i*pageSize))
		out = append(out, usecase.PageRequest{URL: e.baseURL + "/matches/paged?" + query.Encode()})
	}
	return out, nil
}

// ParseList accepts the bare array the paged endpoint returns.
func (e *Endpoints) ParseList(kind entity.Kind, body []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := sonic.Unmarshal(body, &records); err != nil {
		return nil, crerr.Mark(crerr.Wrapf(err, "decode rgl %s listing", kind), normalize.ErrMalformedPayload)
	}
	return records, nil
}

func (e *Endpoints) DetailURL(kind entity.Kind, id int64) (string, error) {
	switch kind {
	case entity.KindMatch:
		return fmt.Sprintf("%s/matches/%d", e.baseURL, id), nil
	case entity.KindRoster:
		return fmt.Sprintf("%s/teams/%d", e.baseURL, id), nil
	case entity.KindPlayer:
		return fmt.Sprintf("%s/profile/%d", e.baseURL, id), nil
	default:
		return "", crerr.Wrapf(usecase.ErrInvalidInput, "rgl has no %s detail", kind)
	}
}

// ParseDetail returns the body unchanged: RGL detail records are not enveloped.
func (e *Endpoints) ParseDetail(_ entity.Kind, body []byte) ([]byte, error) {
	return body, nil
}
