package effectiveness

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/guard"
)

// Metric is one of the per-country sub-scores.
type Metric string

const (
	MetricTax            Metric = "tax"
	MetricEconomicPolicy Metric = "economic_policy"
	MetricStability      Metric = "stability"
	MetricLegitimacy     Metric = "legitimacy"
)

// Metrics lists every metric in a fixed order.
var Metrics = []Metric{MetricTax, MetricEconomicPolicy, MetricStability, MetricLegitimacy}

// Config controls how component scores and synergies combine.
type Config struct {
	NeutralBaseline   float64 `yaml:"neutral_baseline"`
	SynergyThreshold  float64 `yaml:"synergy_threshold"`  // percentage points before damping
	DiminishingFactor float64 `yaml:"diminishing_factor"` // excess scaled by 1/(1+excess×factor)
	SynergyCap        float64 `yaml:"synergy_cap"`        // absolute ceiling, percentage points
	ConflictCap       float64 `yaml:"conflict_cap"`

	GrowthSensitivity float64 `yaml:"growth_sensitivity"`
	MinGrowthModifier float64 `yaml:"min_growth_modifier"`
	MaxGrowthModifier float64 `yaml:"max_growth_modifier"`

	MetricWeights  map[Metric]map[economy.Category]float64 `yaml:"metric_weights"`
	OverallWeights map[Metric]float64                      `yaml:"overall_weights"`
}

// DefaultConfig returns the stock scoring parameters.
func DefaultConfig() Config {
	return Config{
		NeutralBaseline:   50,
		SynergyThreshold:  10,
		DiminishingFactor: 0.1,
		SynergyCap:        25,
		ConflictCap:       30,
		GrowthSensitivity: 1.0,
		MinGrowthModifier: 0.5,
		MaxGrowthModifier: 1.5,
		MetricWeights: map[Metric]map[economy.Category]float64{
			MetricTax: {
				economy.CategoryFiscal:     0.6,
				economy.CategoryGovernment: 0.4,
			},
			MetricEconomicPolicy: {
				economy.CategoryEconomic: 0.7,
				economy.CategoryFiscal:   0.3,
			},
			MetricStability: {
				economy.CategoryGovernment: 0.6,
				economy.CategoryEconomic:   0.2,
				economy.CategoryFiscal:     0.2,
			},
			MetricLegitimacy: {
				economy.CategoryGovernment: 0.8,
				economy.CategoryEconomic:   0.2,
			},
		},
		OverallWeights: map[Metric]float64{
			MetricTax:            0.25,
			MetricEconomicPolicy: 0.30,
			MetricStability:      0.25,
			MetricLegitimacy:     0.20,
		},
	}
}

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid scoring config")

// Validate checks ranges and that every metric has some positive weight.
func (cfg Config) Validate() error {
	for name, v := range map[string]float64{
		"neutral_baseline":    cfg.NeutralBaseline,
		"synergy_threshold":   cfg.SynergyThreshold,
		"diminishing_factor":  cfg.DiminishingFactor,
		"synergy_cap":         cfg.SynergyCap,
		"conflict_cap":        cfg.ConflictCap,
		"growth_sensitivity":  cfg.GrowthSensitivity,
		"min_growth_modifier": cfg.MinGrowthModifier,
		"max_growth_modifier": cfg.MaxGrowthModifier,
	} {
		if !guard.Finite(v) || v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidConfig, name, v)
		}
	}
	if cfg.NeutralBaseline > 100 {
		return fmt.Errorf("%w: neutral_baseline must be within [0, 100]", ErrInvalidConfig)
	}
	if cfg.MinGrowthModifier > 1 || cfg.MaxGrowthModifier < 1 {
		return fmt.Errorf("%w: growth modifier bounds [%v, %v] must contain 1", ErrInvalidConfig, cfg.MinGrowthModifier, cfg.MaxGrowthModifier)
	}
	var overall float64
	for _, m := range Metrics {
		var sum float64
		for cat, w := range cfg.MetricWeights[m] {
			if !cat.Valid() {
				return fmt.Errorf("%w: metric %s weights unknown category %q", ErrInvalidConfig, m, cat)
			}
			if !guard.Finite(w) || w < 0 {
				return fmt.Errorf("%w: metric %s has bad weight %v for %s", ErrInvalidConfig, m, w, cat)
			}
			sum += w
		}
		if sum <= 0 {
			return fmt.Errorf("%w: metric %s has no positive weights", ErrInvalidConfig, m)
		}
		w := cfg.OverallWeights[m]
		if !guard.Finite(w) || w < 0 {
			return fmt.Errorf("%w: overall weight for %s is %v", ErrInvalidConfig, m, w)
		}
		overall += w
	}
	if overall <= 0 {
		return fmt.Errorf("%w: overall weights sum to zero", ErrInvalidConfig)
	}
	return nil
}

// ComponentSynergy is a discovered interaction between two active components.
type ComponentSynergy struct {
	Primary       economy.ComponentID   `json:"primary"`
	Secondary     economy.ComponentID   `json:"secondary"`
	PrimaryType   economy.ComponentType `json:"primary_type"`
	SecondaryType economy.ComponentType `json:"secondary_type"`
	Kind          Kind                  `json:"kind"`
	Multiplier    float64               `json:"multiplier"`
}

// Snapshot is the scorer output for one country at one instant.
type Snapshot struct {
	Overall        float64 `json:"overall"`
	Tax            float64 `json:"tax"`
	EconomicPolicy float64 `json:"economic_policy"`
	Stability      float64 `json:"stability"`
	Legitimacy     float64 `json:"legitimacy"`

	SynergyBonus    float64 `json:"synergy_bonus"`    // applied, after damping and cap
	ConflictPenalty float64 `json:"conflict_penalty"` // applied magnitude, after cap
	RawSynergy      float64 `json:"raw_synergy"`
	RawConflict     float64 `json:"raw_conflict"`

	ComponentCount int     `json:"component_count"`
	UnknownCount   int     `json:"unknown_count"` // active components whose type is not in the catalog
	GrowthModifier float64 `json:"growth_modifier"`

	Synergies []ComponentSynergy `json:"synergies,omitempty"`
}

// Neutral returns the snapshot for a country with no active components.
func Neutral(cfg Config) Snapshot {
	return Snapshot{
		Overall:        cfg.NeutralBaseline,
		Tax:            cfg.NeutralBaseline,
		EconomicPolicy: cfg.NeutralBaseline,
		Stability:      cfg.NeutralBaseline,
		Legitimacy:     cfg.NeutralBaseline,
		GrowthModifier: 1.0,
	}
}

// Metric returns the sub-score for m.
func (s Snapshot) Metric(m Metric) float64 {
	switch m {
	case MetricTax:
		return s.Tax
	case MetricEconomicPolicy:
		return s.EconomicPolicy
	case MetricStability:
		return s.Stability
	case MetricLegitimacy:
		return s.Legitimacy
	}
	return 0
}

// Scorer computes effectiveness snapshots. A Scorer is safe for concurrent use
// as long as its Cache (if any) is.
type Scorer struct {
	Catalog *Catalog
	Config  Config
	Cache   *SynergyCache // optional
}

// NewScorer returns a scorer without a synergy cache.
func NewScorer(catalog *Catalog, cfg Config) *Scorer {
	return &Scorer{Catalog: catalog, Config: cfg}
}

// DiminishedSynergy damps the part of total above the threshold and applies the
// absolute cap.
func (cfg Config) DiminishedSynergy(total float64) float64 {
	if total <= 0 {
		return 0
	}
	combined := total
	if total > cfg.SynergyThreshold {
		excess := total - cfg.SynergyThreshold
		combined = cfg.SynergyThreshold + excess*guard.SafeDivide(1, 1+excess*cfg.DiminishingFactor, 0)
	}
	return guard.Clamp(combined, 0, cfg.SynergyCap)
}

// Score evaluates the active components of one country. The result depends only
// on the components' types, active flags and effectiveness values, never on
// their order.
func (s *Scorer) Score(components []economy.Component) Snapshot {
	cfg := s.Config
	active, unknown := s.activeSorted(components)
	if len(active) == 0 {
		snap := Neutral(cfg)
		snap.UnknownCount = unknown
		return snap
	}

	// Category means.
	var sums, counts [3]float64
	for _, c := range active {
		cat, _ := s.Catalog.Category(c.Type)
		i := categoryIndex(cat)
		sums[i] += guard.Clamp(c.Effectiveness, 0, 100)
		counts[i]++
	}
	means := make(map[economy.Category]float64, len(economy.Categories))
	for i, cat := range economy.Categories {
		means[cat] = cfg.NeutralBaseline
		if counts[i] > 0 {
			means[cat] = sums[i] / counts[i]
		}
	}

	synergies := s.discover(active)
	var rawSynergy, rawConflict float64
	for _, syn := range synergies {
		if syn.Multiplier > 0 {
			rawSynergy += syn.Multiplier
		} else {
			rawConflict += -syn.Multiplier
		}
	}
	bonus := cfg.DiminishedSynergy(rawSynergy)
	penalty := guard.Clamp(rawConflict, 0, cfg.ConflictCap)
	scale := 1 + (bonus-penalty)/100

	snap := Snapshot{
		SynergyBonus:    bonus,
		ConflictPenalty: penalty,
		RawSynergy:      rawSynergy,
		RawConflict:     rawConflict,
		ComponentCount:  len(active),
		UnknownCount:    unknown,
		Synergies:       synergies,
	}

	var overall, overallWeight float64
	for _, m := range Metrics {
		var base, weight float64
		for _, cat := range economy.Categories {
			w := cfg.MetricWeights[m][cat]
			base += w * means[cat]
			weight += w
		}
		score := guard.Clamp(guard.SafeDivide(base, weight, cfg.NeutralBaseline)*scale, 0, 100)
		switch m {
		case MetricTax:
			snap.Tax = score
		case MetricEconomicPolicy:
			snap.EconomicPolicy = score
		case MetricStability:
			snap.Stability = score
		case MetricLegitimacy:
			snap.Legitimacy = score
		}
		w := cfg.OverallWeights[m]
		overall += w * score
		overallWeight += w
	}
	snap.Overall = guard.Clamp(guard.SafeDivide(overall, overallWeight, cfg.NeutralBaseline), 0, 100)
	snap.GrowthModifier = cfg.growthModifier(snap.EconomicPolicy)
	return snap
}

func (cfg Config) growthModifier(economicPolicy float64) float64 {
	m := 1 + (economicPolicy-cfg.NeutralBaseline)/100*cfg.GrowthSensitivity
	return guard.Clamp(m, cfg.MinGrowthModifier, cfg.MaxGrowthModifier)
}

// Synergies returns the interactions among the active components.
func (s *Scorer) Synergies(components []economy.Component) []ComponentSynergy {
	active, _ := s.activeSorted(components)
	return s.discover(active)
}

// activeSorted filters to active, catalogued components in canonical order.
func (s *Scorer) activeSorted(components []economy.Component) ([]economy.Component, int) {
	active := make([]economy.Component, 0, len(components))
	unknown := 0
	for _, c := range components {
		if !c.Active {
			continue
		}
		if _, ok := s.Catalog.Category(c.Type); !ok {
			unknown++
			continue
		}
		active = append(active, c)
	}
	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Effectiveness != b.Effectiveness {
			return a.Effectiveness < b.Effectiveness
		}
		return a.ID < b.ID
	})
	return active, unknown
}

// discover enumerates every unordered pair of distinct active types. A type
// present more than once is represented by its first component in canonical order.
func (s *Scorer) discover(active []economy.Component) []ComponentSynergy {
	reps := make([]economy.Component, 0, len(active))
	for i, c := range active {
		if i > 0 && active[i-1].Type == c.Type {
			continue
		}
		reps = append(reps, c)
	}

	var out []ComponentSynergy
	for i := 0; i < len(reps); i++ {
		for j := i + 1; j < len(reps); j++ {
			syn, ok := s.lookup(reps[i], reps[j])
			if ok {
				out = append(out, syn)
			}
		}
	}
	return out
}

func (s *Scorer) lookup(a, b economy.Component) (ComponentSynergy, bool) {
	if s.Cache != nil {
		if syn, ok, hit := s.Cache.get(a, b); hit {
			return syn, ok
		}
	}
	var syn ComponentSynergy
	rule, ok := s.Catalog.Rule(a.Type, b.Type)
	if ok {
		syn = ComponentSynergy{
			Primary:       a.ID,
			Secondary:     b.ID,
			PrimaryType:   a.Type,
			SecondaryType: b.Type,
			Kind:          rule.Kind,
			Multiplier:    rule.Multiplier,
		}
	}
	if s.Cache != nil {
		s.Cache.put(a, b, syn, ok)
	}
	return syn, ok
}

func categoryIndex(c economy.Category) int {
	switch c {
	case economy.CategoryGovernment:
		return 0
	case economy.CategoryEconomic:
		return 1
	}
	return 2
}
