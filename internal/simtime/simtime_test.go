package simtime

import "testing"

func TestDurationConversions(t *testing.T) {
	if got := Days(365).Years(); got != 1 {
		t.Fatalf("365 days = %v years, want 1", got)
	}
	if got := Years(0.5).Days(); got != 182.5 {
		t.Fatalf("half year = %v days, want 182.5", got)
	}
	if got := Tick(100).Sub(Tick(40)); got != 60 {
		t.Fatalf("Sub = %d, want 60", got)
	}
	if got := Tick(100).Add(-40); got != 60 {
		t.Fatalf("Add = %d, want 60", got)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		tick Tick
		want string
	}{
		{0, "Day 1, 0:00 Year 1"},
		{TicksPerDay + 61, "Day 2, 1:01 Year 1"},
		{TicksPerYear, "Day 1, 0:00 Year 2"},
	}
	for _, c := range cases {
		if got := Format(c.tick); got != c.want {
			t.Fatalf("Format(%d) = %q, want %q", c.tick, got, c.want)
		}
	}
}
