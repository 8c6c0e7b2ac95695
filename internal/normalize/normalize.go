// Package normalize maps source payloads onto the canonical model and back.
package normalize

import (
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/match"
	"github.com/riskibarqy/league-sync/internal/domain/player"
	"github.com/riskibarqy/league-sync/internal/domain/roster"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

var (
	ErrUnsupportedDecoder = crerr.New("no decoder for source and entity kind")
	ErrMalformedPayload   = crerr.New("malformed source payload")
)

// Decoder converts one raw record into a canonical entity.
type Decoder[T any] func(raw []byte) (T, error)

var matchDecoders = map[source.Source]Decoder[match.Match]{
	source.RGL:      decodeRGLMatch,
	source.ETF2L:    decodeETF2LMatch,
	source.Internal: decodeInternalMatch,
}

var rosterDecoders = map[source.Source]Decoder[roster.Roster]{
	source.RGL:      decodeRGLRoster,
	source.ETF2L:    decodeETF2LRoster,
	source.Internal: decodeInternalRoster,
}

var playerDecoders = map[source.Source]Decoder[player.Player]{
	source.RGL:      decodeRGLPlayer,
	source.ETF2L:    decodeETF2LPlayer,
	source.Internal: decodeInternalPlayer,
}

func DecodeMatch(src source.Source, raw []byte) (match.Match, error) {
	return decode(matchDecoders, entity.KindMatch, src, raw)
}

func DecodeRoster(src source.Source, raw []byte) (roster.Roster, error) {
	return decode(rosterDecoders, entity.KindRoster, src, raw)
}

func DecodePlayer(src source.Source, raw []byte) (player.Player, error) {
	return decode(playerDecoders, entity.KindPlayer, src, raw)
}

// Supports reports whether a decoder exists for the pair.
func Supports(src source.Source, kind entity.Kind) bool {
	switch kind {
	case entity.KindMatch:
		_, ok := matchDecoders[src]
		return ok
	case entity.KindRoster:
		_, ok := rosterDecoders[src]
		return ok
	case entity.KindPlayer:
		_, ok := playerDecoders[src]
		return ok
	default:
		return false
	}
}

func decode[T any](table map[source.Source]Decoder[T], kind entity.Kind, src source.Source, raw []byte) (T, error) {
	fn, ok := table[src]
	if !ok {
		var zero T
		return zero, crerr.Wrapf(ErrUnsupportedDecoder, "%s %s", src, kind)
	}
	out, err := fn(raw)
	if err != nil {
		var zero T
		return zero, crerr.Wrapf(err, "decode %s %s", src, kind)
	}
	return out, nil
}

func unmarshal(raw []byte, target any) error {
	if err := sonic.Unmarshal(raw, target); err != nil {
		return crerr.Mark(crerr.Wrap(err, "parse payload"), ErrMalformedPayload)
	}
	return nil
}

func missing(field string) error {
	return crerr.Mark(crerr.Newf("required field %q is missing", field), ErrMalformedPayload)
}

// epochFromTimestamp converts an RFC 3339 timestamp to Unix seconds. Empty or zero
// timestamps yield nil.
func epochFromTimestamp(raw *string) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" || value == "0" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, crerr.Mark(crerr.Wrapf(err, "parse timestamp %q", value), ErrMalformedPayload)
	}
	epoch := float64(parsed.Unix()) + float64(parsed.Nanosecond())/1e9
	return nonZeroEpoch(&epoch), nil
}

func nonZeroEpoch(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	out := *v
	return &out
}

// flexInt accepts a JSON number or a numeric string.
type flexInt struct {
	Value int64
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	value := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if value == "" || value == "null" {
		*f = flexInt{}
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return crerr.Wrapf(err, "parse integer %q", value)
	}
	*f = flexInt{Value: parsed, Set: true}
	return nil
}

func optionalString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func optionalSiteID(src source.Source, id *int64) *source.SiteID {
	if id == nil || *id == 0 {
		return nil
	}
	return source.New(src, *id).Ref()
}
