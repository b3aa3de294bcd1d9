// Package tier classifies per-capita metrics into discrete tiers and smooths the
// growth multiplier across tier boundaries.
package tier

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/talgya/econsim/internal/guard"
)

var (
	// ErrUnknownTier is returned when a value or tier id has no entry in the table.
	ErrUnknownTier = errors.New("unknown tier")
	// ErrInvalidTable is returned for tables with gaps, overlaps or bad multipliers.
	ErrInvalidTable = errors.New("invalid tier table")
)

// ID names a tier, e.g. "developed" or "t3".
type ID string

// Range is one row of a boundary table. It covers [Lower, Upper).
type Range struct {
	Lower      float64 `yaml:"lower" json:"lower"`
	Upper      float64 `yaml:"upper" json:"upper"`
	ID         ID      `yaml:"id" json:"id"`
	Label      string  `yaml:"label" json:"label"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// Table is an ordered, contiguous set of ranges covering the whole real line.
type Table struct {
	Name   string
	ranges []Range
	index  map[ID]int
}

// NewTable validates ranges and builds a lookup table. Ranges must be sorted,
// start at -Inf, end at +Inf, and each upper bound must equal the next lower bound.
func NewTable(name string, ranges []Range) (Table, error) {
	if len(ranges) == 0 {
		return Table{}, fmt.Errorf("%w %s: no ranges", ErrInvalidTable, name)
	}
	if !math.IsInf(ranges[0].Lower, -1) {
		return Table{}, fmt.Errorf("%w %s: first range must start at -inf, got %v", ErrInvalidTable, name, ranges[0].Lower)
	}
	if last := ranges[len(ranges)-1]; !math.IsInf(last.Upper, 1) {
		return Table{}, fmt.Errorf("%w %s: last range must end at +inf, got %v", ErrInvalidTable, name, last.Upper)
	}

	index := make(map[ID]int, len(ranges))
	for i, r := range ranges {
		if r.ID == "" {
			return Table{}, fmt.Errorf("%w %s: range %d has no id", ErrInvalidTable, name, i)
		}
		if _, dup := index[r.ID]; dup {
			return Table{}, fmt.Errorf("%w %s: duplicate tier id %q", ErrInvalidTable, name, r.ID)
		}
		if math.IsNaN(r.Lower) || math.IsNaN(r.Upper) || r.Lower >= r.Upper {
			return Table{}, fmt.Errorf("%w %s: range %q has bounds [%v, %v)", ErrInvalidTable, name, r.ID, r.Lower, r.Upper)
		}
		if !guard.Finite(r.Multiplier) {
			return Table{}, fmt.Errorf("%w %s: range %q has non-finite multiplier", ErrInvalidTable, name, r.ID)
		}
		if i > 0 && ranges[i-1].Upper != r.Lower {
			return Table{}, fmt.Errorf("%w %s: gap or overlap between %q and %q", ErrInvalidTable, name, ranges[i-1].ID, r.ID)
		}
		index[r.ID] = i
	}

	cp := make([]Range, len(ranges))
	copy(cp, ranges)
	return Table{Name: name, ranges: cp, index: index}, nil
}

// Lookup returns the range containing v.
func (t Table) Lookup(v float64) (Range, error) {
	if len(t.ranges) == 0 {
		return Range{}, fmt.Errorf("%w: table %q is empty", ErrUnknownTier, t.Name)
	}
	if math.IsNaN(v) {
		return Range{}, fmt.Errorf("%w: NaN has no %s tier", ErrUnknownTier, t.Name)
	}
	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].Upper > v })
	if i == len(t.ranges) {
		return Range{}, fmt.Errorf("%w: %v has no %s tier", ErrUnknownTier, v, t.Name)
	}
	return t.ranges[i], nil
}

// Get returns the range for a tier id.
func (t Table) Get(id ID) (Range, error) {
	i, ok := t.index[id]
	if !ok {
		return Range{}, fmt.Errorf("%w: %q not in %s table", ErrUnknownTier, id, t.Name)
	}
	return t.ranges[i], nil
}

// Ranges returns a copy of the table rows in order.
func (t Table) Ranges() []Range {
	cp := make([]Range, len(t.ranges))
	copy(cp, t.ranges)
	return cp
}

// Len returns the number of tiers.
func (t Table) Len() int {
	return len(t.ranges)
}
