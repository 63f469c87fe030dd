package biome

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WeightTable maps a placed biome to the weight it lends each candidate
// biome for an adjacent coordinate. Missing entries weigh zero.
type WeightTable map[Biome]map[Biome]float64

// Weight returns the weight neighbor lends candidate.
func (t WeightTable) Weight(neighbor, candidate Biome) float64 {
	return t[neighbor][candidate]
}

// Validate rejects unknown biomes and negative weights.
func (t WeightTable) Validate() error {
	for from, row := range t {
		if !from.Valid() {
			return fmt.Errorf("weights: unknown biome %q", from)
		}
		for to, w := range row {
			if !to.Valid() {
				return fmt.Errorf("weights: unknown biome %q in %s row", to, from)
			}
			if w < 0 {
				return fmt.Errorf("weights: negative weight %s->%s", from, to)
			}
		}
	}
	return nil
}

// DefaultWeights returns the built-in adjacency table. Lakes never seed
// mountains or hills, and deserts never border forests directly.
func DefaultWeights() WeightTable {
	return WeightTable{
		Mountain: {Mountain: 0.4, Hills: 0.3, Forest: 0.1, Plains: 0.1, Desert: 0.1, Lake: 0.0},
		Hills:    {Mountain: 0.3, Hills: 0.3, Forest: 0.2, Plains: 0.1, Desert: 0.1, Lake: 0.0},
		Forest:   {Mountain: 0.1, Hills: 0.2, Forest: 0.4, Plains: 0.2, Desert: 0.0, Lake: 0.1},
		Plains:   {Mountain: 0.1, Hills: 0.1, Forest: 0.2, Plains: 0.4, Desert: 0.1, Lake: 0.1},
		Desert:   {Mountain: 0.1, Hills: 0.1, Forest: 0.0, Plains: 0.1, Desert: 0.6, Lake: 0.1},
		Lake:     {Mountain: 0.0, Hills: 0.0, Forest: 0.1, Plains: 0.1, Desert: 0.1, Lake: 0.7},
	}
}

// LoadWeights reads a YAML weight table from path:
//
//	mountain:
//	  mountain: 0.4
//	  hills: 0.3
//
// An empty path returns DefaultWeights.
func LoadWeights(path string) (WeightTable, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights %s: %w", path, err)
	}
	return ParseWeights(data)
}

// ParseWeights decodes and validates a YAML weight table.
func ParseWeights(data []byte) (WeightTable, error) {
	var table WeightTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("weights: table is empty")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
