// Package terrain holds the hex grid geometry shared by terrain generation
// and its validators.
package terrain

import "github.com/louisbranch/hexterrain/internal/terrain/biome"

// Coord is an axial hex coordinate.
type Coord struct {
	X int
	Y int
}

// Tile is a placed hex.
type Tile struct {
	X     int
	Y     int
	Biome biome.Biome
}

// Coord returns the tile position.
func (t Tile) Coord() Coord {
	return Coord{X: t.X, Y: t.Y}
}

var directions = [6]Coord{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
	{X: 0, Y: -1},
	{X: 1, Y: -1},
	{X: -1, Y: 1},
}

// Neighbors returns the six axial neighbors of c in a fixed order.
func Neighbors(c Coord) [6]Coord {
	var out [6]Coord
	for i, d := range directions {
		out[i] = Coord{X: c.X + d.X, Y: c.Y + d.Y}
	}
	return out
}

// Contiguous reports whether every tile can reach every other through
// neighboring tiles. Empty and single-tile sets are contiguous.
func Contiguous(tiles []Tile) bool {
	if len(tiles) <= 1 {
		return true
	}
	present := make(map[Coord]bool, len(tiles))
	for _, t := range tiles {
		present[t.Coord()] = true
	}

	start := tiles[0].Coord()
	seen := map[Coord]bool{start: true}
	stack := []Coord{start}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range Neighbors(c) {
			if present[n] && !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return len(seen) == len(present)
}

// PerimeterLakes returns lake tiles on the border of the width x height
// rectangle anchored at the origin. Callers that require an enclosed
// coastline reject terrain where this is non-empty.
func PerimeterLakes(tiles []Tile, width, height int) []Tile {
	var out []Tile
	for _, t := range tiles {
		if t.Biome != biome.Lake {
			continue
		}
		if t.X == 0 || t.Y == 0 || t.X == width-1 || t.Y == height-1 {
			out = append(out, t)
		}
	}
	return out
}
