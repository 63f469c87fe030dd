package txn

import (
	"context"

	"github.com/louisbranch/hexterrain/internal/services/persistence/storage"
)

// TileStore is the committed state staged writes are checked against.
type TileStore interface {
	NextTileID(ctx context.Context) (int64, error)
	TileByID(ctx context.Context, id int64) (storage.Tile, error)
}

type stagedWrite struct {
	tile   storage.Tile
	insert bool
}

// staged records a transaction's direct writes without touching storage.
// Inserts get reserved ids at once, so later calls in the same transaction
// can update them by id. Everything is applied in order at commit.
type staged struct {
	store    TileStore
	writes   []stagedWrite
	inserted map[int64]int
}

var _ storage.TileWriter = (*staged)(nil)

func newStaged(store TileStore) *staged {
	return &staged{store: store, inserted: make(map[int64]int)}
}

func (s *staged) InsertTile(ctx context.Context, t storage.Tile) (int64, error) {
	id, err := s.store.NextTileID(ctx)
	if err != nil {
		return 0, err
	}
	t.ID = id
	s.inserted[id] = len(s.writes)
	s.writes = append(s.writes, stagedWrite{tile: t, insert: true})
	return id, nil
}

func (s *staged) UpdateTile(ctx context.Context, t storage.Tile) (storage.Tile, error) {
	if idx, ok := s.inserted[t.ID]; ok {
		w := &s.writes[idx]
		w.tile.X, w.tile.Y, w.tile.TerrainType = t.X, t.Y, t.TerrainType
		return w.tile, nil
	}

	current, err := s.store.TileByID(ctx, t.ID)
	if err != nil {
		return storage.Tile{}, err
	}
	current.X, current.Y, current.TerrainType = t.X, t.Y, t.TerrainType
	s.writes = append(s.writes, stagedWrite{tile: current})
	return current, nil
}

// mark and reset let a failed call drop only the writes it staged.
func (s *staged) mark() int {
	return len(s.writes)
}

func (s *staged) reset(n int) {
	for _, w := range s.writes[n:] {
		if w.insert {
			delete(s.inserted, w.tile.ID)
		}
	}
	s.writes = s.writes[:n]
}

// apply writes every staged change to session in order.
func (s *staged) apply(ctx context.Context, session storage.Session) error {
	for _, w := range s.writes {
		if w.insert {
			if _, err := session.InsertTile(ctx, w.tile); err != nil {
				return err
			}
			continue
		}
		if _, err := session.UpdateTile(ctx, w.tile); err != nil {
			return err
		}
	}
	return nil
}
