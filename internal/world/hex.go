// Package world seeds a demo world: countries placed on a hex grid, with
// baseline figures and institutions drawn from layered simplex noise.
// Uses axial coordinates (q, r) for the hex grid.
package world

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// XY converts axial coordinates to continuous space for noise sampling.
func (h HexCoord) XY() (float64, float64) {
	const sqrt3over2 = 0.8660254037844386
	return float64(h.Q) + float64(h.R)*0.5, float64(h.R) * sqrt3over2
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return max(abs(a.Q-b.Q), abs(a.R-b.R), abs(a.S()-b.S()))
}

// Within lists every coordinate at most radius steps from the origin,
// in a fixed order (q, then r ascending).
func Within(radius int) []HexCoord {
	var out []HexCoord
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			c := HexCoord{Q: q, R: r}
			if Distance(c, HexCoord{}) <= radius {
				out = append(out, c)
			}
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
