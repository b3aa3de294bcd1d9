// Package tuning loads the numbers the growth core runs on: floors and caps,
// period lengths, tier tables and the component catalog.
package tuning

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/econsim/internal/effectiveness"
	"github.com/talgya/econsim/internal/growth"
	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
)

//go:embed default.yaml
var defaultYAML []byte

// Version is the only tuning file version this build understands.
const Version = 1

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid tuning")

type Tuning struct {
	Version int `yaml:"version"`

	Limits        guard.Limits         `yaml:"limits"`
	Time          Time                 `yaml:"time"`
	Population    Population           `yaml:"population"`
	Effectiveness effectiveness.Config `yaml:"effectiveness"`

	EconomicTiers   []tier.Range `yaml:"economic_tiers"`
	PopulationTiers []tier.Range `yaml:"population_tiers"`

	Components []effectiveness.ComponentDef `yaml:"components"`
	Rules      []effectiveness.Rule         `yaml:"rules"`
}

type Time struct {
	GrowthPeriodDays     float64 `yaml:"growth_period_days"`
	TransitionWindowDays float64 `yaml:"transition_window_days"`
}

type Population struct {
	BaseGrowthRate float64 `yaml:"base_growth_rate"`
}

// Model is a validated Tuning with its tables and catalog built.
type Model struct {
	Tuning

	EconomicTable   tier.Table
	PopulationTable tier.Table
	Catalog         *effectiveness.Catalog
}

// Default returns the embedded tuning.
func Default() (*Model, error) {
	t, err := decodeDefault()
	if err != nil {
		return nil, err
	}
	return Build(t)
}

// Load reads a YAML file and overlays it on the embedded defaults, so a file
// only needs the keys it changes. Lists (tiers, components, rules) replace the
// default list wholesale. An empty path returns Default().
func Load(path string) (*Model, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning: %w", err)
	}
	return Parse(raw)
}

// Parse overlays raw YAML on the embedded defaults and builds the model.
func Parse(raw []byte) (*Model, error) {
	t, err := decodeDefault()
	if err != nil {
		return nil, err
	}
	if err := decode(raw, &t); err != nil {
		return nil, fmt.Errorf("tuning.yaml: %w", err)
	}
	return Build(t)
}

func decodeDefault() (Tuning, error) {
	var t Tuning
	if err := decode(defaultYAML, &t); err != nil {
		return t, fmt.Errorf("embedded default.yaml: %w", err)
	}
	return t, nil
}

func decode(raw []byte, t *Tuning) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(t); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Build validates t and constructs its tables and catalog.
func Build(t Tuning) (*Model, error) {
	if t.Version != Version {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrInvalid, t.Version, Version)
	}
	if err := t.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !guard.Finite(t.Time.GrowthPeriodDays) || simtime.Days(t.Time.GrowthPeriodDays) <= 0 {
		return nil, fmt.Errorf("%w: growth_period_days must be positive, got %v", ErrInvalid, t.Time.GrowthPeriodDays)
	}
	if !guard.Finite(t.Time.TransitionWindowDays) || t.Time.TransitionWindowDays < 0 {
		return nil, fmt.Errorf("%w: transition_window_days must not be negative, got %v", ErrInvalid, t.Time.TransitionWindowDays)
	}
	if r := t.Population.BaseGrowthRate; !guard.Finite(r) || r < 0 || r > t.Limits.MaxPeriodRate {
		return nil, fmt.Errorf("%w: base_growth_rate must be within [0, %v], got %v", ErrInvalid, t.Limits.MaxPeriodRate, r)
	}
	if err := t.Effectiveness.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	m := &Model{Tuning: t}
	var err error
	if m.EconomicTable, err = tier.NewTable("economic", t.EconomicTiers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if m.PopulationTable, err = tier.NewTable("population", t.PopulationTiers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if m.Catalog, err = effectiveness.NewCatalog(t.Components, t.Rules); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return m, nil
}

// GrowthPeriod is the length of one compounding period.
func (m *Model) GrowthPeriod() simtime.Duration {
	return simtime.Days(m.Time.GrowthPeriodDays)
}

// TransitionWindow is how long a tier change takes to blend in.
func (m *Model) TransitionWindow() simtime.Duration {
	return simtime.Days(m.Time.TransitionWindowDays)
}

// Classifier returns the economic tier classifier.
func (m *Model) Classifier() tier.Classifier {
	return tier.Classifier{Table: m.EconomicTable, Window: m.TransitionWindow()}
}

// Calculator builds a growth calculator from the model.
func (m *Model) Calculator() (*growth.Calculator, error) {
	return growth.New(growth.Config{
		Limits:             m.Limits,
		Economic:           m.Classifier(),
		Population:         m.PopulationTable,
		Period:             m.GrowthPeriod(),
		BasePopulationRate: m.Population.BaseGrowthRate,
	})
}

// Scorer builds an effectiveness scorer, with a synergy cache when cacheSize > 0.
func (m *Model) Scorer(cacheSize int) (*effectiveness.Scorer, error) {
	s := effectiveness.NewScorer(m.Catalog, m.Effectiveness)
	if cacheSize > 0 {
		cache, err := effectiveness.NewSynergyCache(cacheSize)
		if err != nil {
			return nil, err
		}
		s.Cache = cache
	}
	return s, nil
}
