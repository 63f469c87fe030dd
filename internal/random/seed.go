// Package random builds pseudo-random generators for terrain growth.
//
// Production generators are seeded from crypto/rand so every growth attempt
// draws a fresh sequence; tests use Seeded for reproducible output.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// NewRand returns a PCG generator with both state words drawn from crypto/rand.
func NewRand() (*rand.Rand, error) {
	hi, err := NewSeed()
	if err != nil {
		return nil, err
	}
	lo, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(hi, lo)), nil
}

// Seeded returns a deterministic generator for seed.
func Seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
