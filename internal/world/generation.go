// World seeding using layered simplex noise.
// Countries sit on a hex grid; three independent noise layers decide where
// people cluster, how productive they are, and how well their institutions work.
package world

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/effectiveness"
	"github.com/talgya/econsim/internal/growth"
	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
)

// ErrInvalidConfig is returned for seeding parameters that cannot produce a world.
var ErrInvalidConfig = errors.New("invalid world config")

// GenConfig holds world seeding parameters.
type GenConfig struct {
	Countries  int   // Number of countries to seed
	Seed       int64 // Random seed (0 = random)
	Radius     int   // Hex grid radius
	MinSpacing int   // Preferred minimum hex distance between countries

	PopulationMin, PopulationMax     float64
	GDPPerCapitaMin, GDPPerCapitaMax float64

	ComponentsMin, ComponentsMax int     // Components per country, inclusive
	InactiveShare                float64 // Chance a seeded component starts inactive
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Countries:       24,
		Seed:            0,
		Radius:          12,
		MinSpacing:      3,
		PopulationMin:   500_000,
		PopulationMax:   300_000_000,
		GDPPerCapitaMin: 800,
		GDPPerCapitaMax: 90_000,
		ComponentsMin:   4,
		ComponentsMax:   9,
		InactiveShare:   0.15,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Countries = 6
	cfg.Seed = 42
	cfg.Radius = 5
	return cfg
}

func (cfg GenConfig) validate() error {
	switch {
	case cfg.Countries <= 0:
		return fmt.Errorf("%w: countries must be positive", ErrInvalidConfig)
	case cfg.Radius < 0:
		return fmt.Errorf("%w: negative radius", ErrInvalidConfig)
	case cfg.Countries > len(Within(cfg.Radius)):
		return fmt.Errorf("%w: %d countries do not fit a radius %d grid", ErrInvalidConfig, cfg.Countries, cfg.Radius)
	case cfg.Countries > maxNames:
		return fmt.Errorf("%w: at most %d countries", ErrInvalidConfig, maxNames)
	case !(cfg.PopulationMin > 0 && cfg.PopulationMin <= cfg.PopulationMax):
		return fmt.Errorf("%w: population range [%g, %g]", ErrInvalidConfig, cfg.PopulationMin, cfg.PopulationMax)
	case !(cfg.GDPPerCapitaMin > 0 && cfg.GDPPerCapitaMin <= cfg.GDPPerCapitaMax):
		return fmt.Errorf("%w: gdp per capita range [%g, %g]", ErrInvalidConfig, cfg.GDPPerCapitaMin, cfg.GDPPerCapitaMax)
	case cfg.ComponentsMin < 0 || cfg.ComponentsMin > cfg.ComponentsMax:
		return fmt.Errorf("%w: component range [%d, %d]", ErrInvalidConfig, cfg.ComponentsMin, cfg.ComponentsMax)
	case cfg.InactiveShare < 0 || cfg.InactiveShare > 1:
		return fmt.Errorf("%w: inactive share %g", ErrInvalidConfig, cfg.InactiveShare)
	}
	return nil
}

// Country is one seeded country: its starting state, components and grid position.
type Country struct {
	Coord      HexCoord
	State      economy.State
	Components []economy.Component
}

// World is the output of Seed.
type World struct {
	Seed      int64
	Countries []Country
}

// States returns the seeded country states in order.
func (w World) States() []economy.State {
	out := make([]economy.State, len(w.Countries))
	for i, c := range w.Countries {
		out[i] = c.State
	}
	return out
}

// noiseFields are the three independent layers sampled per hex.
type noiseFields struct {
	density      opensimplex.Noise // people
	productivity opensimplex.Noise // output per head
	institutions opensimplex.Noise // how well components work
}

func newNoiseFields(seed int64) noiseFields {
	return noiseFields{
		density:      opensimplex.NewNormalized(seed),
		productivity: opensimplex.NewNormalized(seed + 1),
		institutions: opensimplex.NewNormalized(seed + 2),
	}
}

// Seed generates cfg.Countries countries at tick at. The same seed, config and
// catalog always produce the same world.
func Seed(cfg GenConfig, calc *growth.Calculator, catalog *effectiveness.Catalog, at simtime.Tick) (World, error) {
	if err := cfg.validate(); err != nil {
		return World{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	fields := newNoiseFields(seed)
	rng := rand.New(rand.NewSource(seed + 200))

	coords := placeCountries(fields, cfg)
	names := generateNames(rng, len(coords))
	defs := catalog.Components()

	w := World{Seed: seed, Countries: make([]Country, 0, len(coords))}
	for i, coord := range coords {
		x, y := coord.XY()
		density := octaveNoise(fields.density, x, y, 4, 0.08, 0.5)
		productivity := octaveNoise(fields.productivity, x, y, 3, 0.06, 0.5)
		institutions := octaveNoise(fields.institutions, x, y, 3, 0.05, 0.5)

		pop := logLerp(cfg.PopulationMin, cfg.PopulationMax, density)
		// Productive regions with working institutions pull ahead.
		gdp := logLerp(cfg.GDPPerCapitaMin, cfg.GDPPerCapitaMax, 0.7*productivity+0.3*institutions)

		id := economy.CountryID(strings.ToLower(names[i]))
		st, err := calc.NewCountry(id, names[i], math.Round(pop), math.Round(gdp), at)
		if err != nil {
			return World{}, fmt.Errorf("seed %s: %w", id, err)
		}
		w.Countries = append(w.Countries, Country{
			Coord:      coord,
			State:      st,
			Components: drawComponents(rng, id, defs, institutions, cfg, at),
		})
	}
	return w, nil
}

// placeCountries picks the most habitable hexes, keeping countries apart.
// Spacing relaxes one step at a time when the grid is too crowded.
func placeCountries(fields noiseFields, cfg GenConfig) []HexCoord {
	type scored struct {
		coord HexCoord
		score float64
	}
	var candidates []scored
	for _, c := range Within(cfg.Radius) {
		x, y := c.XY()
		// Habitable land: dense and productive, thinning toward the edge.
		edge := 1.0
		if cfg.Radius > 0 {
			edge = 1 - math.Pow(math.Sqrt(x*x+y*y)/float64(cfg.Radius+1), 3)
		}
		s := (octaveNoise(fields.density, x, y, 2, 0.08, 0.5) + octaveNoise(fields.productivity, x, y, 2, 0.06, 0.5)) * edge
		candidates = append(candidates, scored{c, s})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var placed []HexCoord
	taken := make(map[HexCoord]bool)
	for spacing := cfg.MinSpacing; len(placed) < cfg.Countries; spacing-- {
		for _, c := range candidates {
			if len(placed) >= cfg.Countries {
				break
			}
			if taken[c.coord] || tooClose(c.coord, placed, spacing) {
				continue
			}
			taken[c.coord] = true
			placed = append(placed, c.coord)
		}
	}
	return placed
}

func tooClose(coord HexCoord, existing []HexCoord, minDist int) bool {
	for _, e := range existing {
		if Distance(coord, e) < minDist {
			return true
		}
	}
	return false
}

// drawComponents gives a country a distinct set of component types. Stronger
// institutions mean more effective components.
func drawComponents(rng *rand.Rand, id economy.CountryID, defs []effectiveness.ComponentDef, institutions float64, cfg GenConfig, at simtime.Tick) []economy.Component {
	n := cfg.ComponentsMin + rng.Intn(cfg.ComponentsMax-cfg.ComponentsMin+1)
	n = min(n, len(defs))

	order := rng.Perm(len(defs))[:n]
	sort.Ints(order)

	comps := make([]economy.Component, 0, n)
	for i, idx := range order {
		eff := guard.Clamp(20+60*institutions+rng.NormFloat64()*10, 5, 95)
		comps = append(comps, economy.Component{
			ID:            economy.ComponentID(fmt.Sprintf("%s-%02d", id, i+1)),
			CountryID:     id,
			Type:          defs[idx].Type,
			Effectiveness: math.Round(eff*10) / 10,
			Active:        rng.Float64() >= cfg.InactiveShare,
			ImplementedAt: at,
		})
	}
	return comps
}

// logLerp interpolates between lo and hi on a log scale; t is clamped to [0, 1].
func logLerp(lo, hi, t float64) float64 {
	t = guard.Clamp(t, 0, 1)
	return math.Exp(guard.Lerp(math.Log(lo), math.Log(hi), t))
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

var (
	namePrefixes = []string{
		"Ar", "Bel", "Cor", "Dra", "El", "Fen", "Gal", "Hal", "Ist",
		"Jor", "Kal", "Lor", "Mar", "Nor", "Ost", "Pel", "Qua", "Ros",
		"Sar", "Tal", "Ul", "Val", "Wes", "Zan",
	}
	nameSuffixes = []string{
		"avia", "mark", "land", "oria", "istan", "enia", "ador", "ovia",
		"heim", "gard", "mont", "eria", "una", "ica", "esia", "ara",
	}
	maxNames = len(namePrefixes) * len(nameSuffixes)
)

// generateNames produces distinct country names by combining syllables.
func generateNames(rng *rand.Rand, count int) []string {
	used := make(map[string]bool)
	names := make([]string, 0, count)

	for len(names) < count {
		name := namePrefixes[rng.Intn(len(namePrefixes))] + nameSuffixes[rng.Intn(len(nameSuffixes))]
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}

	return names
}
