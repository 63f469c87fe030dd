// Package storage defines the persistence contracts for terrain tiles.
//
// Writers work against a Session. An Engine hands out short sessions, runs
// one-shot writes in their own transaction, and reserves tile ids so work
// staged outside a session can name its rows before they are written.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/hexterrain/internal/terrain/biome"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Tile is a persisted terrain hex.
type Tile struct {
	ID          int64
	X           int
	Y           int
	TerrainType biome.Biome
	GroupID     string
}

// TileWriter is the write surface of a direct tile store call.
type TileWriter interface {
	// InsertTile stores t and returns its ID. A zero t.ID asks the engine
	// to assign one; a non-zero t.ID must come from Engine.NextTileID.
	InsertTile(ctx context.Context, t Tile) (int64, error)
	// UpdateTile overwrites coordinates and terrain type of the row with
	// t.ID and returns the stored row. Missing rows return ErrNotFound.
	UpdateTile(ctx context.Context, t Tile) (Tile, error)
}

// Session is the write surface shared by transactional and one-shot work.
type Session interface {
	TileWriter
	// UpdateTileTerrainAt changes the terrain type of the first row (lowest
	// ID) matching the group and coordinates. It reports whether a row matched.
	UpdateTileTerrainAt(ctx context.Context, groupID string, x, y int, terrainType biome.Biome) (bool, error)
	// DeleteTilesAt removes every row matching the group and coordinates.
	DeleteTilesAt(ctx context.Context, groupID string, x, y int) (int64, error)
	// TilesByGroup lists a group's rows in ID order.
	TilesByGroup(ctx context.Context, groupID string) ([]Tile, error)
}

// Tx is a Session that must end with exactly one of Commit or Rollback.
type Tx interface {
	Session
	Commit() error
	Rollback() error
}

// Engine is the durable tile store. It admits one writer at a time; waiting
// for the writer honours the caller's ctx.
type Engine interface {
	// BeginSession waits for the writer and opens a transaction bound to
	// ctx. The writer is held until Commit or Rollback.
	BeginSession(ctx context.Context) (Tx, error)
	// AutoCommit runs fn in its own transaction, committing when fn
	// succeeds and rolling back otherwise.
	AutoCommit(ctx context.Context, fn func(Session) error) error
	// NextTileID reserves a tile id no other insert will use.
	NextTileID(ctx context.Context) (int64, error)
	// TileByID reads a committed row.
	TileByID(ctx context.Context, id int64) (Tile, error)
	// TilesByGroup reads committed rows for a group in ID order.
	TilesByGroup(ctx context.Context, groupID string) ([]Tile, error)
	Close() error
}
