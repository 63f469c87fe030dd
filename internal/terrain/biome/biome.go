// Package biome defines the terrain kinds a hex tile can take and the
// adjacency weights that bias which kind grows next to which.
package biome

import (
	"fmt"
	"strings"
)

// Biome is a terrain kind.
type Biome string

const (
	Mountain Biome = "mountain"
	Hills    Biome = "hills"
	Forest   Biome = "forest"
	Plains   Biome = "plains"
	Desert   Biome = "desert"
	Lake     Biome = "lake"
)

// All lists every biome in enumeration order. Weighted draws iterate in this
// order so a seeded source produces the same terrain.
var All = []Biome{Mountain, Hills, Forest, Plains, Desert, Lake}

// Valid reports whether b is part of the enumeration.
func (b Biome) Valid() bool {
	for _, known := range All {
		if b == known {
			return true
		}
	}
	return false
}

// String returns the wire name.
func (b Biome) String() string {
	return string(b)
}

// Parse resolves a wire name, ignoring case and surrounding space.
func Parse(value string) (Biome, error) {
	b := Biome(strings.ToLower(strings.TrimSpace(value)))
	if !b.Valid() {
		return "", fmt.Errorf("unknown terrain type %q", value)
	}
	return b, nil
}
