package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/hexterrain/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage/sqlite/migrations"
	"github.com/louisbranch/hexterrain/internal/terrain/biome"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	_ "modernc.org/sqlite"
)

const dsnParams = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Store implements storage.Engine over SQLite.
//
// SQLite admits one writer at a time. Store hands that right out through a
// single slot held for the life of a session, so writers queue on their own
// context instead of failing with SQLITE_BUSY. Tile ids come from an
// in-process counter so they can be reserved before the row is written.
type Store struct {
	sqlDB  *sql.DB
	now    func() time.Time
	writer *semaphore.Weighted
	ids    *idAllocator
}

var _ storage.Engine = (*Store)(nil)

// Open opens the SQLite file at path and applies bundled migrations.
func Open(ctx context.Context, path string, log *logrus.Entry) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	sqlDB, err := sql.Open("sqlite", filepath.Clean(path)+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	migrator := sqlitemigrate.Migrator{DB: sqlDB, FS: migrations.FS, Log: log}
	if _, err := migrator.Apply(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	var last int64
	if err := sqlDB.QueryRowContext(ctx, `
SELECT MAX(
    COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'terrain_tiles'), 0),
    COALESCE((SELECT MAX(id) FROM terrain_tiles), 0)
)`).Scan(&last); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("read last tile id: %w", err)
	}

	return &Store{
		sqlDB:  sqlDB,
		now:    time.Now,
		writer: semaphore.NewWeighted(1),
		ids:    &idAllocator{last: last},
	}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// BeginSession waits for the writer slot and opens a transaction bound to
// ctx. The slot is released by Commit or Rollback.
func (s *Store) BeginSession(ctx context.Context) (storage.Tx, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := s.writer.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for writer: %w", err)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		s.writer.Release(1)
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &txSession{session: s.session(tx), tx: tx, writer: s.writer}, nil
}

// AutoCommit runs fn inside a short transaction.
func (s *Store) AutoCommit(ctx context.Context, fn func(storage.Session) error) error {
	tx, err := s.BeginSession(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// NextTileID reserves a tile id. Reserved ids that are never written leave
// gaps, as AUTOINCREMENT does.
func (s *Store) NextTileID(context.Context) (int64, error) {
	if s == nil || s.ids == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	return s.ids.next(), nil
}

// TileByID reads a committed row.
func (s *Store) TileByID(ctx context.Context, id int64) (storage.Tile, error) {
	if s == nil || s.sqlDB == nil {
		return storage.Tile{}, fmt.Errorf("storage is not configured")
	}
	return s.session(s.sqlDB).tileByID(ctx, id)
}

// TilesByGroup reads committed rows.
func (s *Store) TilesByGroup(ctx context.Context, groupID string) ([]storage.Tile, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	return s.session(s.sqlDB).TilesByGroup(ctx, groupID)
}

func (s *Store) session(q queryer) session {
	return session{q: q, now: s.now, ids: s.ids}
}

type idAllocator struct {
	mu   sync.Mutex
	last int64
}

func (a *idAllocator) next() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last++
	return a.last
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session runs tile statements against either the pool or a transaction.
type session struct {
	q   queryer
	now func() time.Time
	ids *idAllocator
}

type txSession struct {
	session
	tx       *sql.Tx
	writer   *semaphore.Weighted
	released sync.Once
}

func (t *txSession) Commit() error {
	defer t.release()
	return t.tx.Commit()
}

func (t *txSession) Rollback() error {
	defer t.release()
	return t.tx.Rollback()
}

func (t *txSession) release() {
	t.released.Do(func() { t.writer.Release(1) })
}

func (s session) InsertTile(ctx context.Context, t storage.Tile) (int64, error) {
	if strings.TrimSpace(t.GroupID) == "" {
		return 0, fmt.Errorf("group id is required")
	}
	id := t.ID
	if id == 0 {
		id = s.ids.next()
	}
	if _, err := s.q.ExecContext(ctx,
		`INSERT INTO terrain_tiles (id, x, y, terrain_type, group_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, t.X, t.Y, string(t.TerrainType), t.GroupID, s.now().UTC().UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("insert tile: %w", err)
	}
	return id, nil
}

func (s session) UpdateTile(ctx context.Context, t storage.Tile) (storage.Tile, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE terrain_tiles SET x = ?, y = ?, terrain_type = ? WHERE id = ?`,
		t.X, t.Y, string(t.TerrainType), t.ID,
	)
	if err != nil {
		return storage.Tile{}, fmt.Errorf("update tile %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Tile{}, fmt.Errorf("update tile %d: %w", t.ID, err)
	}
	if n == 0 {
		return storage.Tile{}, storage.ErrNotFound
	}

	stored, err := s.tileByID(ctx, t.ID)
	if err != nil {
		return storage.Tile{}, fmt.Errorf("read updated tile %d: %w", t.ID, err)
	}
	return stored, nil
}

func (s session) tileByID(ctx context.Context, id int64) (storage.Tile, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, x, y, terrain_type, group_id FROM terrain_tiles WHERE id = ?`, id)
	return scanTile(row)
}

func (s session) UpdateTileTerrainAt(ctx context.Context, groupID string, x, y int, terrainType biome.Biome) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
UPDATE terrain_tiles SET terrain_type = ?
WHERE id = (
    SELECT id FROM terrain_tiles
    WHERE group_id = ? AND x = ? AND y = ?
    ORDER BY id
    LIMIT 1
)`, string(terrainType), groupID, x, y)
	if err != nil {
		return false, fmt.Errorf("update tile terrain: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update tile terrain: %w", err)
	}
	return n > 0, nil
}

func (s session) DeleteTilesAt(ctx context.Context, groupID string, x, y int) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM terrain_tiles WHERE group_id = ? AND x = ? AND y = ?`, groupID, x, y)
	if err != nil {
		return 0, fmt.Errorf("delete tiles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete tiles: %w", err)
	}
	return n, nil
}

func (s session) TilesByGroup(ctx context.Context, groupID string) ([]storage.Tile, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, x, y, terrain_type, group_id FROM terrain_tiles WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query tiles: %w", err)
	}
	defer rows.Close()

	var tiles []storage.Tile
	for rows.Next() {
		tile, err := scanTile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tile: %w", err)
		}
		tiles = append(tiles, tile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tiles: %w", err)
	}
	return tiles, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTile(row scanner) (storage.Tile, error) {
	var (
		t           storage.Tile
		terrainType string
	)
	if err := row.Scan(&t.ID, &t.X, &t.Y, &terrainType, &t.GroupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Tile{}, storage.ErrNotFound
		}
		return storage.Tile{}, err
	}
	t.TerrainType = biome.Biome(terrainType)
	return t, nil
}
