package source

import (
	"fmt"
	"strconv"
	"strings"
)

// Source identifies an external league system, or the internal checkpoint format.
type Source int

const (
	RGL Source = iota + 1
	UGC
	ETF2L
	Internal
)

var names = map[Source]string{
	RGL:      "RGL",
	UGC:      "UGC",
	ETF2L:    "ETF2L",
	Internal: "INTERNAL",
}

// Sites lists the sources that own external identifiers, in column order.
var Sites = []Source{RGL, UGC, ETF2L}

func (s Source) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return "Source(" + strconv.Itoa(int(s)) + ")"
}

func (s Source) Valid() bool {
	_, ok := names[s]
	return ok
}

// IsSite reports whether records from s carry a SiteID.
func (s Source) IsSite() bool {
	return s >= RGL && s <= ETF2L
}

func Parse(raw string) (Source, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for src, name := range names {
		if name == value {
			return src, nil
		}
	}
	return 0, fmt.Errorf("unknown source %q", raw)
}

// SiteID is the natural key of a record within one external system.
type SiteID struct {
	Source Source
	ID     int64
}

func New(src Source, id int64) SiteID {
	return SiteID{Source: src, ID: id}
}

func (id SiteID) IsZero() bool {
	return id.Source == 0 && id.ID == 0
}

func (id SiteID) String() string {
	return id.Source.String() + ":" + strconv.FormatInt(id.ID, 10)
}

// Ref returns a pointer to a copy of id, or nil for a zero id.
func (id SiteID) Ref() *SiteID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// SiteIDs holds at most one local id per site source. A zero local id means unset.
type SiteIDs [3]int64

func NewSiteIDs(ids ...SiteID) SiteIDs {
	var out SiteIDs
	for _, id := range ids {
		out.Set(id)
	}
	return out
}

func slot(src Source) (int, bool) {
	if !src.IsSite() {
		return 0, false
	}
	return int(src - RGL), true
}

// Set records id for its source. Ids from non-site sources are ignored.
func (s *SiteIDs) Set(id SiteID) {
	if i, ok := slot(id.Source); ok {
		s[i] = id.ID
	}
}

func (s SiteIDs) Get(src Source) (SiteID, bool) {
	i, ok := slot(src)
	if !ok || s[i] == 0 {
		return SiteID{}, false
	}
	return SiteID{Source: src, ID: s[i]}, true
}

// All returns the populated ids in site order.
func (s SiteIDs) All() []SiteID {
	out := make([]SiteID, 0, len(s))
	for _, src := range Sites {
		if id, ok := s.Get(src); ok {
			out = append(out, id)
		}
	}
	return out
}

// Primary returns the first populated id in site order.
func (s SiteIDs) Primary() (SiteID, bool) {
	for _, src := range Sites {
		if id, ok := s.Get(src); ok {
			return id, true
		}
	}
	return SiteID{}, false
}

func (s SiteIDs) IsEmpty() bool {
	return s == SiteIDs{}
}

// Merge copies every id populated in other that is unset in s.
func (s *SiteIDs) Merge(other SiteIDs) {
	for i := range s {
		if s[i] == 0 {
			s[i] = other[i]
		}
	}
}
