package tier

import (
	"errors"
	"fmt"

	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/simtime"
)

// ErrNoPhase is returned when a classifier is handed a nil Phase.
var ErrNoPhase = errors.New("tier phase is missing")

// Phase is the stored tier state of a country: either Stable or Transitioning.
// The interface is sealed; those are the only two implementations.
type Phase interface {
	// Stored is the tier on record. During a transition it is still the departing tier.
	Stored() ID
	isPhase()
}

// Stable means no transition is in progress.
type Stable struct {
	Tier ID `json:"tier"`
}

// Transitioning is an in-progress smoothing window between two tiers.
type Transitioning struct {
	From      ID               `json:"from"`
	To        ID               `json:"to"`
	StartedAt simtime.Tick     `json:"started_at"`
	Window    simtime.Duration `json:"window"`
}

func (s Stable) Stored() ID        { return s.Tier }
func (t Transitioning) Stored() ID { return t.From }
func (Stable) isPhase()            {}
func (Transitioning) isPhase()     {}

// Progress returns how far through the window the transition is at now, in [0, 1].
// A non-positive window counts as complete.
func (t Transitioning) Progress(now simtime.Tick) float64 {
	return guard.Clamp(guard.SafeDivide(float64(now.Sub(t.StartedAt)), float64(t.Window), 1), 0, 1)
}

// Classifier maps a metric to a tier using Table and blends multipliers over Window.
type Classifier struct {
	Table  Table
	Window simtime.Duration
}

// Result is the outcome of one classification.
type Result struct {
	Tier       ID      // effective (stored) tier after this classification
	Classified ID      // tier the metric falls in right now
	Multiplier float64 // effective growth multiplier, interpolated during a transition
	Phase      Phase   // phase to persist
	Progress   float64 // transition progress, 0 when stable
	Started    bool    // a transition began in this call
	Finalized  bool    // a transition completed in this call
}

// Classify classifies value against the stored phase at simulated time now.
//
// A stable country whose value falls in a different tier starts a transition at
// now. An in-progress transition runs to its target even if the value moves
// again; once progress reaches 1 the target becomes the stored tier and, if the
// value now sits elsewhere, a fresh transition starts from there.
func (c Classifier) Classify(value float64, phase Phase, now simtime.Tick) (Result, error) {
	classified, err := c.Table.Lookup(value)
	if err != nil {
		return Result{}, err
	}

	switch p := phase.(type) {
	case Stable:
		return c.fromStable(p, classified, now)
	case Transitioning:
		from, err := c.Table.Get(p.From)
		if err != nil {
			return Result{}, fmt.Errorf("transition origin: %w", err)
		}
		to, err := c.Table.Get(p.To)
		if err != nil {
			return Result{}, fmt.Errorf("transition target: %w", err)
		}

		progress := p.Progress(now)
		if progress >= 1 {
			res, err := c.fromStable(Stable{Tier: p.To}, classified, now)
			if err != nil {
				return Result{}, err
			}
			res.Finalized = true
			return res, nil
		}

		return Result{
			Tier:       p.From,
			Classified: classified.ID,
			Multiplier: guard.Lerp(from.Multiplier, to.Multiplier, progress),
			Phase:      p,
			Progress:   progress,
		}, nil
	case nil:
		return Result{}, ErrNoPhase
	default:
		return Result{}, fmt.Errorf("unsupported tier phase %T", phase)
	}
}

func (c Classifier) fromStable(s Stable, classified Range, now simtime.Tick) (Result, error) {
	stored, err := c.Table.Get(s.Tier)
	if err != nil {
		return Result{}, err
	}
	if classified.ID == s.Tier {
		return Result{
			Tier:       s.Tier,
			Classified: classified.ID,
			Multiplier: stored.Multiplier,
			Phase:      s,
		}, nil
	}

	if c.Window <= 0 {
		return Result{
			Tier:       classified.ID,
			Classified: classified.ID,
			Multiplier: classified.Multiplier,
			Phase:      Stable{Tier: classified.ID},
			Started:    true,
			Finalized:  true,
		}, nil
	}

	return Result{
		Tier:       s.Tier,
		Classified: classified.ID,
		Multiplier: stored.Multiplier,
		Phase: Transitioning{
			From:      s.Tier,
			To:        classified.ID,
			StartedAt: now,
			Window:    c.Window,
		},
		Started: true,
	}, nil
}

// Initial returns the stable phase for a freshly created country.
func (c Classifier) Initial(value float64) (Stable, error) {
	r, err := c.Table.Lookup(value)
	if err != nil {
		return Stable{}, err
	}
	return Stable{Tier: r.ID}, nil
}
