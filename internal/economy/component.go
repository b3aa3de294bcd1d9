package economy

import "github.com/talgya/econsim/internal/simtime"

// ComponentID identifies one attached component.
type ComponentID string

// ComponentType names an entry in the component catalog, e.g. "RULE_OF_LAW".
type ComponentType string

// Category is the structural family a component type belongs to.
type Category string

const (
	CategoryGovernment Category = "government"
	CategoryEconomic   Category = "economic"
	CategoryFiscal     Category = "fiscal"
)

// Categories lists every category in a fixed order.
var Categories = []Category{CategoryGovernment, CategoryEconomic, CategoryFiscal}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGovernment, CategoryEconomic, CategoryFiscal:
		return true
	}
	return false
}

// Component is an atomic policy building block attached to a country.
// Effectiveness is authored outside the core and only ever read here.
type Component struct {
	ID            ComponentID   `json:"id" db:"id"`
	CountryID     CountryID     `json:"country_id" db:"country_id"`
	Type          ComponentType `json:"type" db:"type"`
	Effectiveness float64       `json:"effectiveness" db:"effectiveness"` // 0–100
	Active        bool          `json:"active" db:"active"`
	ImplementedAt simtime.Tick  `json:"implemented_at" db:"implemented_at"`
}
