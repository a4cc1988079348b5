// Package grid provides the hex lattice geometry for the city map.
// Cells are addressed by (row, col) offset coordinates; adjacency depends
// on row parity.
package grid

import "math"

// Position is a cell address on the hex lattice.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Neighbor offsets for even and odd rows. A hex lattice in offset
// coordinates shifts alternate rows half a cell, so the diagonal
// neighbors differ by parity.
var evenShifts = [6]Position{
	{-1, -1}, // upper left
	{-1, 0},  // upper right
	{0, -1},  // left
	{0, 1},   // right
	{1, -1},  // lower left
	{1, 0},   // lower right
}

var oddShifts = [6]Position{
	{-1, 0},
	{-1, 1},
	{0, -1},
	{0, 1},
	{1, 0},
	{1, 1},
}

// Grid is a bounded hex lattice. It carries no cell state, only dimensions.
type Grid struct {
	rows int
	cols int
}

// New creates a grid with the given dimensions.
func New(rows, cols int) *Grid {
	return &Grid{rows: rows, cols: cols}
}

// Rows returns the row count.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the column count.
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether p lies on the grid.
func (g *Grid) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.rows && p.Col >= 0 && p.Col < g.cols
}

// Adjacent returns the in-bounds neighbors of p. Interior cells have six.
func (g *Grid) Adjacent(p Position) []Position {
	shifts := &evenShifts
	if p.Row%2 != 0 {
		shifts = &oddShifts
	}
	adj := make([]Position, 0, 6)
	for _, s := range shifts {
		n := Position{Row: p.Row + s.Row, Col: p.Col + s.Col}
		if g.InBounds(n) {
			adj = append(adj, n)
		}
	}
	return adj
}

// Radius returns all positions within r hops of p, excluding p itself
// unless a cycle leads back to it. Expansion is breadth-first with
// visited deduplication.
func (g *Grid) Radius(p Position, r int) []Position {
	seen := make(map[Position]bool)
	frontier := []Position{p}
	var out []Position
	for i := 0; i < r; i++ {
		var next []Position
		for _, q := range frontier {
			for _, n := range g.Adjacent(q) {
				if seen[n] {
					continue
				}
				seen[n] = true
				out = append(out, n)
				next = append(next, n)
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return out
}

// Distance is the planar Euclidean distance between two cell addresses.
func Distance(a, b Position) float64 {
	dr := float64(a.Row - b.Row)
	dc := float64(a.Col - b.Col)
	return math.Sqrt(dr*dr + dc*dc)
}
