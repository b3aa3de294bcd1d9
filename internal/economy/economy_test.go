package economy

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/econsim/internal/guard"
	"github.com/talgya/econsim/internal/tier"
)

func TestNewStateReconciles(t *testing.T) {
	s := NewState("c1", "Testland", 1_000_000, 20_000, 100, "developing", "t1")
	if s.TotalGDP != 2e10 {
		t.Fatalf("total gdp = %v, want 2e10", s.TotalGDP)
	}
	if s.LocalGrowthScalar != 1.0 {
		t.Fatalf("local growth scalar = %v, want 1.0", s.LocalGrowthScalar)
	}
	if s.EconomicTier() != "developing" {
		t.Fatalf("economic tier = %q", s.EconomicTier())
	}
	if _, ok := s.Transition(); ok {
		t.Fatalf("fresh state should not be transitioning")
	}
	if err := s.Validate(guard.DefaultLimits()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsBrokenInvariants(t *testing.T) {
	l := guard.DefaultLimits()
	base := NewState("c1", "Testland", 1_000_000, 20_000, 0, "developing", "t1")

	cases := map[string]func(s *State){
		"population below floor": func(s *State) { s.Population = 1; s.Reconcile() },
		"gdp per capita NaN":     func(s *State) { s.GDPPerCapita = math.NaN() },
		"total out of sync":      func(s *State) { s.TotalGDP *= 2 },
		"zero scalar":            func(s *State) { s.LocalGrowthScalar = 0 },
		"missing phase":          func(s *State) { s.EconomicPhase = nil },
		"missing id":             func(s *State) { s.CountryID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := base
			mutate(&s)
			if err := s.Validate(l); !errors.Is(err, ErrInvalidState) {
				t.Fatalf("expected ErrInvalidState, got %v", err)
			}
		})
	}
}

func TestTransitionAccessor(t *testing.T) {
	s := NewState("c1", "Testland", 1_000_000, 20_000, 0, "developing", "t1")
	s.EconomicPhase = tier.Transitioning{From: "developing", To: "developed", StartedAt: 10}
	tr, ok := s.Transition()
	if !ok || tr.To != "developed" {
		t.Fatalf("Transition() = %+v, %v", tr, ok)
	}
	if s.EconomicTier() != "developing" {
		t.Fatalf("stored tier during transition = %q, want departing tier", s.EconomicTier())
	}
}

func TestMoney(t *testing.T) {
	if got := Money(20600.004); got != "20600.00" {
		t.Fatalf("Money = %q", got)
	}
	if got := Cents(20599.999); !got.Equal(Cents(20600)) {
		t.Fatalf("Cents = %v", got)
	}
}
