// Package grower grows contiguous hex terrain outward from the origin with
// biome choices biased by already placed neighbors.
package grower

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	apperrors "github.com/louisbranch/hexterrain/internal/platform/errors"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	"github.com/louisbranch/hexterrain/internal/random"
	"github.com/louisbranch/hexterrain/internal/terrain"
	"github.com/louisbranch/hexterrain/internal/terrain/biome"
	"github.com/sirupsen/logrus"
)

// DefaultMaxAttempts caps growth retries when no option overrides it.
const DefaultMaxAttempts = 8

// DefaultMaxTiles caps a single request. Larger terrains would not fit a
// default gRPC message once serialized.
const DefaultMaxTiles = 10000

// preallocCap bounds up-front allocation; larger grids grow on demand.
const preallocCap = 4096

// cancelCheckInterval is how many dequeues pass between context checks.
const cancelCheckInterval = 256

// Grower runs breadth-first terrain growth. A Grower is safe for concurrent
// use; each Grow call owns its random source and working state.
type Grower struct {
	weights     biome.WeightTable
	maxAttempts int
	maxTiles    int
	width       int
	height      int
	newRand     func() (*rand.Rand, error)
	log         *logrus.Entry
}

// Option configures a Grower.
type Option func(*Grower)

// WithWeights replaces the default adjacency weights.
func WithWeights(table biome.WeightTable) Option {
	return func(g *Grower) {
		if table != nil {
			g.weights = table
		}
	}
}

// WithMaxAttempts sets the retry cap. Zero retries until the context ends.
func WithMaxAttempts(n int) Option {
	return func(g *Grower) {
		if n >= 0 {
			g.maxAttempts = n
		}
	}
}

// WithMaxTiles sets the largest accepted target. Zero removes the cap.
func WithMaxTiles(n int) Option {
	return func(g *Grower) {
		if n >= 0 {
			g.maxTiles = n
		}
	}
}

// WithBounds restricts placement to 0 <= x < width and 0 <= y < height.
// Non-positive dimensions leave the plane unbounded.
func WithBounds(width, height int) Option {
	return func(g *Grower) {
		if width > 0 && height > 0 {
			g.width, g.height = width, height
		}
	}
}

// WithRandSource overrides how each attempt obtains its generator.
func WithRandSource(newRand func() (*rand.Rand, error)) Option {
	return func(g *Grower) {
		if newRand != nil {
			g.newRand = newRand
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(log *logrus.Entry) Option {
	return func(g *Grower) {
		if log != nil {
			g.log = log
		}
	}
}

// New builds a Grower with the default weights, crypto-seeded attempts, and
// an unbounded plane.
func New(opts ...Option) *Grower {
	g := &Grower{
		weights:     biome.DefaultWeights(),
		maxAttempts: DefaultMaxAttempts,
		maxTiles:    DefaultMaxTiles,
		newRand:     random.NewRand,
		log:         logging.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grow returns exactly target tiles in placement order. The first tile is
// always the origin. Attempts that fall short are discarded and retried
// with a fresh seed.
func (g *Grower) Grow(ctx context.Context, target int) ([]terrain.Tile, error) {
	if target < 1 {
		return nil, apperrors.WithMetadata(apperrors.CodeTerrainSizeInvalid,
			"total_land_hexagons must be greater than 0",
			map[string]string{"Target": strconv.Itoa(target)})
	}
	if g.maxTiles > 0 && target > g.maxTiles {
		return nil, apperrors.WithMetadata(apperrors.CodeTerrainSizeTooLarge,
			fmt.Sprintf("total_land_hexagons must be at most %d", g.maxTiles),
			map[string]string{"Target": strconv.Itoa(target), "Max": strconv.Itoa(g.maxTiles)})
	}

	for attempt := 1; g.maxAttempts == 0 || attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng, err := g.newRand()
		if err != nil {
			return nil, fmt.Errorf("seed growth attempt: %w", err)
		}
		tiles, err := g.growOnce(ctx, rng, target)
		if err != nil {
			return nil, err
		}
		if len(tiles) == target {
			return tiles, nil
		}
		g.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"placed":  len(tiles),
			"target":  target,
		}).Warn("not enough tiles generated, retrying")
	}

	return nil, apperrors.WithMetadata(apperrors.CodeGrowthExhausted,
		fmt.Sprintf("terrain did not reach %d tiles in %d attempts", target, g.maxAttempts),
		map[string]string{"Target": strconv.Itoa(target), "Attempts": strconv.Itoa(g.maxAttempts)})
}

func (g *Grower) growOnce(ctx context.Context, rng *rand.Rand, target int) ([]terrain.Tile, error) {
	size := min(target, preallocCap)
	tiles := make([]terrain.Tile, 0, size)
	placed := make(map[terrain.Coord]biome.Biome, size)
	visited := make(map[terrain.Coord]bool, size)
	queue := []terrain.Coord{{}}

	for steps := 1; len(queue) > 0 && len(tiles) < target; steps++ {
		if steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		c := queue[0]
		queue = queue[1:]
		if visited[c] {
			continue
		}
		visited[c] = true
		if !g.inBounds(c) {
			continue
		}

		b := g.choose(rng, placed, c)
		placed[c] = b
		tiles = append(tiles, terrain.Tile{X: c.X, Y: c.Y, Biome: b})
		neighbors := terrain.Neighbors(c)
		queue = append(queue, neighbors[:]...)
	}
	return tiles, nil
}

func (g *Grower) inBounds(c terrain.Coord) bool {
	if g.width == 0 {
		return true
	}
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// choose draws a biome for c. Each placed neighbor lends its weight row; with
// no neighbors or a zero total the draw is uniform over the enumeration.
func (g *Grower) choose(rng *rand.Rand, placed map[terrain.Coord]biome.Biome, c terrain.Coord) biome.Biome {
	weights := make([]float64, len(biome.All))
	total := 0.0
	for _, n := range terrain.Neighbors(c) {
		neighbor, ok := placed[n]
		if !ok {
			continue
		}
		for i, candidate := range biome.All {
			w := g.weights.Weight(neighbor, candidate)
			weights[i] += w
			total += w
		}
	}
	if total <= 0 {
		return biome.All[rng.IntN(len(biome.All))]
	}

	r := rng.Float64() * total
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if r < w {
			return biome.All[i]
		}
		r -= w
		last = i
	}
	return biome.All[last]
}
