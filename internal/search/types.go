package search

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

// Mode selects how direct matches are expanded.
type Mode int

const (
	ModeDirect Mode = iota
	ModeNeighbourhood
	ModeTemporal
	ModeCooccurrence
	ModeFull
)

var modeNames = map[Mode]string{
	ModeDirect:        "direct",
	ModeNeighbourhood: "neighbourhood",
	ModeTemporal:      "temporal",
	ModeCooccurrence:  "cooccurrence",
	ModeFull:          "full",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ModeNames lists the textual modes accepted by ParseMode.
func ModeNames() []string {
	return []string{"direct", "neighbourhood", "temporal", "cooccurrence", "full"}
}

// ParseMode maps a textual mode to a Mode. "neighborhood" is accepted too.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return ModeDirect, nil
	case "neighbourhood", "neighborhood", "graph":
		return ModeNeighbourhood, nil
	case "temporal":
		return ModeTemporal, nil
	case "cooccurrence", "co-occurrence":
		return ModeCooccurrence, nil
	case "full":
		return ModeFull, nil
	}
	return ModeDirect, apperr.Invalid("search: parse mode", "unknown mode %q (want one of %s)",
		s, strings.Join(ModeNames(), ", "))
}

// Defaults used by Full and by NewExpansion when a parameter is unset.
const (
	DefaultHops      = 2
	DefaultDays      = 30
	DefaultMinShared = 2
)

// Expansion is a mode plus its parameters. Only the parameter belonging
// to Mode is read.
type Expansion struct {
	Mode      Mode
	Hops      int
	Days      int
	MinShared int
}

// Direct performs no expansion.
func Direct() Expansion { return Expansion{Mode: ModeDirect} }

// Neighbourhood walks the link graph up to hops edges away.
func Neighbourhood(hops int) Expansion { return Expansion{Mode: ModeNeighbourhood, Hops: hops} }

// Temporal adds daily notes that reference a match. days is carried but
// not applied as a filter.
func Temporal(days int) Expansion { return Expansion{Mode: ModeTemporal, Days: days} }

// Cooccurrence adds notes sharing at least minShared daily references.
func Cooccurrence(minShared int) Expansion {
	return Expansion{Mode: ModeCooccurrence, MinShared: minShared}
}

// Full combines Neighbourhood(2), Temporal(30) and Cooccurrence(2).
func Full() Expansion { return Expansion{Mode: ModeFull} }

// NewExpansion builds an expansion for m, substituting defaults for
// non-positive parameters.
func NewExpansion(m Mode, hops, days, minShared int) Expansion {
	if hops <= 0 {
		hops = DefaultHops
	}
	if days <= 0 {
		days = DefaultDays
	}
	if minShared <= 0 {
		minShared = DefaultMinShared
	}
	switch m {
	case ModeNeighbourhood:
		return Neighbourhood(hops)
	case ModeTemporal:
		return Temporal(days)
	case ModeCooccurrence:
		return Cooccurrence(minShared)
	case ModeFull:
		return Full()
	}
	return Direct()
}

// Validate implements validation.Validatable.
func (e Expansion) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Mode, validation.In(ModeDirect, ModeNeighbourhood, ModeTemporal, ModeCooccurrence, ModeFull)),
		validation.Field(&e.Hops, validation.When(e.Mode == ModeNeighbourhood, validation.Required, validation.Min(1))),
		validation.Field(&e.Days, validation.Min(0)),
		validation.Field(&e.MinShared, validation.Min(0)),
	)
}

// Query describes one search.
type Query struct {
	// Text is matched case-insensitively against title and path. Empty
	// matches every note that passes the filters.
	Text          string
	Type          models.NoteType
	PathPrefix    string
	Expansion     Expansion
	Limit         int
	TemporalBoost bool
}

// Validate implements validation.Validatable.
func (q Query) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Expansion),
		validation.Field(&q.Limit, validation.Min(0)),
	)
}

// SourceKind names how a result entered the result set.
type SourceKind string

const (
	SourceDirect        SourceKind = "direct"
	SourceNeighbourhood SourceKind = "neighbourhood"
	SourceTemporal      SourceKind = "temporal"
	SourceCooccurrence  SourceKind = "cooccurrence"
)

// MatchSource explains a result. Hops is set for neighbourhood results,
// DailyPath for temporal ones and SharedCount for co-occurrence.
type MatchSource struct {
	Kind        SourceKind `json:"kind"`
	Hops        int        `json:"hops,omitempty"`
	DailyPath   string     `json:"daily_path,omitempty"`
	SharedCount int        `json:"shared_count,omitempty"`
}

func (m MatchSource) String() string {
	switch m.Kind {
	case SourceNeighbourhood:
		return fmt.Sprintf("neighbourhood(%d)", m.Hops)
	case SourceTemporal:
		return fmt.Sprintf("temporal(%s)", m.DailyPath)
	case SourceCooccurrence:
		return fmt.Sprintf("cooccurrence(%d)", m.SharedCount)
	}
	return string(m.Kind)
}

// Result is one ranked note. Staleness is nil when no activity summary
// exists for the note.
type Result struct {
	Note      models.Note `json:"note"`
	Score     float64     `json:"score"`
	Source    MatchSource `json:"match_source"`
	Staleness *float64    `json:"staleness,omitempty"`
}
