package effectiveness

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/talgya/econsim/internal/economy"
)

// SynergyCache memoizes pairwise rule lookups. Keys include both components'
// ids, types and active flags, so toggling a component never serves a stale pair.
type SynergyCache struct {
	cache *lru.Cache
}

type cacheKey struct {
	a, b             economy.ComponentID
	typeA, typeB     economy.ComponentType
	activeA, activeB bool
}

type cacheEntry struct {
	syn ComponentSynergy
	ok  bool
}

// NewSynergyCache creates a cache holding up to size pairs.
func NewSynergyCache(size int) (*SynergyCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &SynergyCache{cache: c}, nil
}

func keyFor(a, b economy.Component) cacheKey {
	if b.ID < a.ID {
		a, b = b, a
	}
	return cacheKey{
		a: a.ID, b: b.ID,
		typeA: a.Type, typeB: b.Type,
		activeA: a.Active, activeB: b.Active,
	}
}

func (c *SynergyCache) get(a, b economy.Component) (ComponentSynergy, bool, bool) {
	v, hit := c.cache.Get(keyFor(a, b))
	if !hit {
		return ComponentSynergy{}, false, false
	}
	e := v.(cacheEntry)
	syn := e.syn
	// Entries are stored in id order; restore the caller's orientation.
	if e.ok && syn.Primary != a.ID {
		syn.Primary, syn.Secondary = syn.Secondary, syn.Primary
		syn.PrimaryType, syn.SecondaryType = syn.SecondaryType, syn.PrimaryType
	}
	return syn, e.ok, true
}

func (c *SynergyCache) put(a, b economy.Component, syn ComponentSynergy, ok bool) {
	c.cache.Add(keyFor(a, b), cacheEntry{syn: syn, ok: ok})
}

// Invalidate drops every cached pair involving the component.
func (c *SynergyCache) Invalidate(id economy.ComponentID) int {
	removed := 0
	for _, k := range c.cache.Keys() {
		key := k.(cacheKey)
		if key.a == id || key.b == id {
			c.cache.Remove(k)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached pairs.
func (c *SynergyCache) Len() int {
	return c.cache.Len()
}
