// Package effectiveness scores a country's active components and the pairwise
// synergies and conflicts between them.
package effectiveness

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/guard"
)

// ErrInvalidCatalog is returned for catalogs with unknown types or inconsistent rules.
var ErrInvalidCatalog = errors.New("invalid component catalog")

// Kind distinguishes a synergy from a conflict.
type Kind string

const (
	KindSynergy  Kind = "synergy"
	KindConflict Kind = "conflict"
)

// ComponentDef is one catalog entry.
type ComponentDef struct {
	Type        economy.ComponentType `yaml:"type" json:"type"`
	Category    economy.Category      `yaml:"category" json:"category"`
	Description string                `yaml:"description" json:"description"`
}

// Rule is a static pairwise interaction. Multiplier is in percentage points:
// positive for synergies, negative for conflicts.
type Rule struct {
	A          economy.ComponentType `yaml:"a" json:"a"`
	B          economy.ComponentType `yaml:"b" json:"b"`
	Kind       Kind                  `yaml:"kind" json:"kind"`
	Multiplier float64               `yaml:"multiplier" json:"multiplier"`
}

type pairKey struct {
	lo, hi economy.ComponentType
}

func makePair(a, b economy.ComponentType) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Catalog maps component types to categories and unordered type pairs to rules.
// It is read-only once built.
type Catalog struct {
	Version    string
	defs       map[economy.ComponentType]ComponentDef
	rules      map[pairKey]Rule
	orderedDef []ComponentDef
}

// NewCatalog validates definitions and rules and builds the lookup tables.
func NewCatalog(defs []ComponentDef, rules []Rule) (*Catalog, error) {
	c := &Catalog{
		defs:  make(map[economy.ComponentType]ComponentDef, len(defs)),
		rules: make(map[pairKey]Rule, len(rules)),
	}
	for _, d := range defs {
		if d.Type == "" {
			return nil, fmt.Errorf("%w: component with empty type", ErrInvalidCatalog)
		}
		if !d.Category.Valid() {
			return nil, fmt.Errorf("%w: %s has unknown category %q", ErrInvalidCatalog, d.Type, d.Category)
		}
		if _, dup := c.defs[d.Type]; dup {
			return nil, fmt.Errorf("%w: duplicate component %s", ErrInvalidCatalog, d.Type)
		}
		c.defs[d.Type] = d
	}

	for _, r := range rules {
		if _, ok := c.defs[r.A]; !ok {
			return nil, fmt.Errorf("%w: rule references unknown component %s", ErrInvalidCatalog, r.A)
		}
		if _, ok := c.defs[r.B]; !ok {
			return nil, fmt.Errorf("%w: rule references unknown component %s", ErrInvalidCatalog, r.B)
		}
		if r.A == r.B {
			return nil, fmt.Errorf("%w: rule pairs %s with itself", ErrInvalidCatalog, r.A)
		}
		if !guard.Finite(r.Multiplier) || r.Multiplier == 0 {
			return nil, fmt.Errorf("%w: rule %s/%s needs a non-zero multiplier", ErrInvalidCatalog, r.A, r.B)
		}
		switch r.Kind {
		case KindSynergy:
			if r.Multiplier < 0 {
				return nil, fmt.Errorf("%w: synergy %s/%s has negative multiplier", ErrInvalidCatalog, r.A, r.B)
			}
		case KindConflict:
			if r.Multiplier > 0 {
				return nil, fmt.Errorf("%w: conflict %s/%s has positive multiplier", ErrInvalidCatalog, r.A, r.B)
			}
		default:
			return nil, fmt.Errorf("%w: rule %s/%s has unknown kind %q", ErrInvalidCatalog, r.A, r.B, r.Kind)
		}
		key := makePair(r.A, r.B)
		if _, dup := c.rules[key]; dup {
			return nil, fmt.Errorf("%w: duplicate rule for %s/%s", ErrInvalidCatalog, key.lo, key.hi)
		}
		c.rules[key] = r
	}

	c.orderedDef = make([]ComponentDef, 0, len(c.defs))
	for _, d := range c.defs {
		c.orderedDef = append(c.orderedDef, d)
	}
	sort.Slice(c.orderedDef, func(i, j int) bool { return c.orderedDef[i].Type < c.orderedDef[j].Type })
	c.Version = c.digest()
	return c, nil
}

// Category returns the category for a component type.
func (c *Catalog) Category(t economy.ComponentType) (economy.Category, bool) {
	d, ok := c.defs[t]
	return d.Category, ok
}

// Rule returns the rule for an unordered pair of types.
func (c *Catalog) Rule(a, b economy.ComponentType) (Rule, bool) {
	r, ok := c.rules[makePair(a, b)]
	return r, ok
}

// Components returns all definitions sorted by type.
func (c *Catalog) Components() []ComponentDef {
	cp := make([]ComponentDef, len(c.orderedDef))
	copy(cp, c.orderedDef)
	return cp
}

// RuleCount returns the number of pair rules.
func (c *Catalog) RuleCount() int {
	return len(c.rules)
}

// digest hashes the canonical catalog so deployments can tell versions apart.
func (c *Catalog) digest() string {
	var b strings.Builder
	for _, d := range c.orderedDef {
		fmt.Fprintf(&b, "c|%s|%s\n", d.Type, d.Category)
	}
	keys := make([]pairKey, 0, len(c.rules))
	for k := range c.rules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lo != keys[j].lo {
			return keys[i].lo < keys[j].lo
		}
		return keys[i].hi < keys[j].hi
	})
	for _, k := range keys {
		r := c.rules[k]
		fmt.Fprintf(&b, "r|%s|%s|%s|%g\n", k.lo, k.hi, r.Kind, r.Multiplier)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
