package txn

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/hexterrain/internal/platform/errors"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	"github.com/louisbranch/hexterrain/internal/services/persistence/operation"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage/sqlite"
	"github.com/louisbranch/hexterrain/internal/terrain/biome"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "tiles.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func tileOp(seq int64, kind operation.Kind, payload string) operation.Operation {
	return operation.Operation{
		Sequence:   seq,
		Kind:       kind,
		EntityType: operation.EntityTerrainTile,
		Payload:    json.RawMessage(payload),
	}
}

func TestCommitReplaysQueueInSequenceOrder(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()

	id, err := c.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	// Queued out of order: the update must run after the create.
	if err := c.Queue(ctx, id, tileOp(2, operation.KindUpdate, `{"group_id": "g", "x": 1, "y": 1, "terrain_type": "desert"}`)); err != nil {
		t.Fatalf("queue update: %v", err)
	}
	if err := c.Queue(ctx, id, tileOp(1, operation.KindCreate, `{"group_id": "g", "x": 1, "y": 1, "terrain_type": "plains"}`)); err != nil {
		t.Fatalf("queue create: %v", err)
	}

	if tiles, _ := store.TilesByGroup(ctx, "g"); len(tiles) != 0 {
		t.Fatalf("queued operations must not touch storage before commit: %v", tiles)
	}

	result, err := c.Commit(ctx, id)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Operations != 2 || result.TransactionID != id {
		t.Fatalf("unexpected result %+v", result)
	}

	tiles, err := store.TilesByGroup(ctx, "g")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tiles) != 1 || tiles[0].TerrainType != biome.Desert {
		t.Fatalf("expected updated desert tile, got %+v", tiles)
	}
}

func TestQueueKeepsArrivalOrderForEqualSequence(t *testing.T) {
	var order []string
	builder := builderFunc(func(op operation.Operation) (operation.Func, error) {
		name := string(op.Payload)
		return func(context.Context, storage.Session) error {
			order = append(order, name)
			return nil
		}, nil
	})
	c := New(&fakeStore{}, builder)
	ctx := context.Background()
	id, _ := c.Begin(ctx)

	for _, q := range []struct {
		seq  int64
		name string
	}{{5, "a"}, {1, "b"}, {5, "c"}, {3, "d"}, {1, "e"}} {
		if err := c.Queue(ctx, id, operation.Operation{Sequence: q.seq, Payload: json.RawMessage(q.name)}); err != nil {
			t.Fatalf("queue: %v", err)
		}
	}
	if _, err := c.Commit(ctx, id); err != nil {
		t.Fatalf("commit: %v", err)
	}
	want := []string{"b", "e", "d", "a", "c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestDoWritesBecomeVisibleOnCommit(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()
	id, _ := c.Begin(ctx)

	err := c.Do(ctx, id, func(s storage.TileWriter) error {
		_, err := s.InsertTile(ctx, storage.Tile{X: 0, Y: 0, TerrainType: biome.Forest, GroupID: "g"})
		return err
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if tiles, _ := store.TilesByGroup(ctx, "g"); len(tiles) != 0 {
		t.Fatalf("uncommitted write leaked: %v", tiles)
	}

	result, err := c.Commit(ctx, id)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Writes != 1 {
		t.Fatalf("writes = %d", result.Writes)
	}
	if tiles, _ := store.TilesByGroup(ctx, "g"); len(tiles) != 1 {
		t.Fatalf("expected committed tile, got %v", tiles)
	}
}

func TestRollbackDiscardsDirectWritesAndQueue(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()
	id, _ := c.Begin(ctx)

	_ = c.Do(ctx, id, func(s storage.TileWriter) error {
		_, err := s.InsertTile(ctx, storage.Tile{TerrainType: biome.Forest, GroupID: "g"})
		return err
	})
	if err := c.Queue(ctx, id, tileOp(1, operation.KindCreate, `{"group_id": "g", "x": 2, "y": 2, "terrain_type": "lake"}`)); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := c.Rollback(ctx, id); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if tiles, _ := store.TilesByGroup(ctx, "g"); len(tiles) != 0 {
		t.Fatalf("expected nothing stored, got %v", tiles)
	}
	if c.Open() != 0 {
		t.Fatalf("expected no open transactions, got %d", c.Open())
	}
}

func TestTerminalTransactionsAreNotFound(t *testing.T) {
	c := New(&fakeStore{}, operation.NewDefaultRegistry())
	ctx := context.Background()

	committed, _ := c.Begin(ctx)
	if _, err := c.Commit(ctx, committed); err != nil {
		t.Fatalf("commit: %v", err)
	}
	rolledBack, _ := c.Begin(ctx)
	if err := c.Rollback(ctx, rolledBack); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	for _, id := range []string{committed, rolledBack, "never-begun"} {
		if _, err := c.Commit(ctx, id); !apperrors.IsCode(err, apperrors.CodeTransactionNotFound) {
			t.Fatalf("commit %s: expected not found, got %v", id, err)
		}
		if err := c.Rollback(ctx, id); !apperrors.IsCode(err, apperrors.CodeTransactionNotFound) {
			t.Fatalf("rollback %s: expected not found, got %v", id, err)
		}
		if err := c.Queue(ctx, id, tileOp(1, operation.KindDelete, `{"group_id": "g", "x": 0, "y": 0}`)); !apperrors.IsCode(err, apperrors.CodeTransactionNotFound) {
			t.Fatalf("queue %s: expected not found, got %v", id, err)
		}
		if err := c.Do(ctx, id, func(storage.TileWriter) error { return nil }); !apperrors.IsCode(err, apperrors.CodeTransactionNotFound) {
			t.Fatalf("do %s: expected not found, got %v", id, err)
		}
	}
}

func TestEmptyTransactionID(t *testing.T) {
	c := New(&fakeStore{}, operation.NewDefaultRegistry())
	if _, err := c.Commit(context.Background(), " "); !apperrors.IsCode(err, apperrors.CodeTransactionIDMissing) {
		t.Fatalf("expected missing id, got %v", err)
	}
}

func TestCommitFailureRollsBackAndMarksFailed(t *testing.T) {
	store := openStore(t)
	boom := errors.New("boom")
	registry := operation.NewDefaultRegistry()
	registry.Register("Exploding", handlerFunc(func(operation.Kind, json.RawMessage) (operation.Func, error) {
		return func(context.Context, storage.Session) error { return boom }, nil
	}))
	c := New(store, registry)
	ctx := context.Background()
	id, _ := c.Begin(ctx)

	_ = c.Do(ctx, id, func(s storage.TileWriter) error {
		_, err := s.InsertTile(ctx, storage.Tile{TerrainType: biome.Hills, GroupID: "g"})
		return err
	})
	if err := c.Queue(ctx, id, tileOp(1, operation.KindCreate, `{"group_id": "g", "x": 1, "y": 0, "terrain_type": "lake"}`)); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := c.Queue(ctx, id, operation.Operation{Sequence: 2, Kind: operation.KindCreate, EntityType: "Exploding"}); err != nil {
		t.Fatalf("queue: %v", err)
	}

	_, err := c.Commit(ctx, id)
	if !apperrors.IsCode(err, apperrors.CodeTransactionFailed) {
		t.Fatalf("expected transaction failed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if tiles, _ := store.TilesByGroup(ctx, "g"); len(tiles) != 0 {
		t.Fatalf("failed commit left rows behind: %v", tiles)
	}
	if err := c.Rollback(ctx, id); !apperrors.IsCode(err, apperrors.CodeTransactionNotFound) {
		t.Fatalf("failed transaction should be terminal, got %v", err)
	}
}

func TestQueueRejectsUnsupportedOperation(t *testing.T) {
	c := New(&fakeStore{}, operation.NewDefaultRegistry())
	ctx := context.Background()
	id, _ := c.Begin(ctx)

	err := c.Queue(ctx, id, operation.Operation{Kind: operation.KindCreate, EntityType: "Castle"})
	if !errors.Is(err, operation.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if c.Open() != 1 {
		t.Fatal("a rejected operation must not end the transaction")
	}
}

func TestConcurrentCommitAndRollbackHaveOneWinner(t *testing.T) {
	for i := 0; i < 20; i++ {
		c := New(&fakeStore{}, operation.NewDefaultRegistry())
		ctx := context.Background()
		id, _ := c.Begin(ctx)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = c.Commit(ctx, id)
		}()
		go func() {
			defer wg.Done()
			errs[1] = c.Rollback(ctx, id)
		}()
		wg.Wait()

		winners := 0
		for _, err := range errs {
			switch {
			case err == nil:
				winners++
			case apperrors.IsCode(err, apperrors.CodeTransactionNotFound):
			default:
				t.Fatalf("unexpected error %v", err)
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winner, got %d (%v)", winners, errs)
		}
	}
}

func TestSweepExpiresIdleTransactions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(&fakeStore{}, operation.NewDefaultRegistry(),
		WithIdleTimeout(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	stale, _ := c.Begin(ctx)
	now = now.Add(50 * time.Second)
	fresh, _ := c.Begin(ctx)

	if n := c.Sweep(now.Add(30 * time.Second)); n != 1 {
		t.Fatalf("expected 1 expired transaction, got %d", n)
	}
	if _, err := c.Commit(ctx, stale); !apperrors.IsCode(err, apperrors.CodeTransactionNotFound) {
		t.Fatalf("expired transaction should be gone, got %v", err)
	}
	if _, err := c.Commit(ctx, fresh); err != nil {
		t.Fatalf("fresh transaction should commit: %v", err)
	}
}

func TestWaitingCallHonoursDeadline(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()

	id, err := c.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	entered := make(chan struct{})
	unblock := make(chan struct{})
	doErr := make(chan error, 1)
	go func() {
		doErr <- c.Do(ctx, id, func(storage.TileWriter) error {
			close(entered)
			<-unblock
			return nil
		})
	}()
	<-entered

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := c.Rollback(waitCtx, id); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while transaction is busy, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("rollback ignored its deadline: %v", elapsed)
	}

	close(unblock)
	if err := <-doErr; err != nil {
		t.Fatalf("do: %v", err)
	}
	if err := c.Rollback(ctx, id); err != nil {
		t.Fatalf("rollback after the busy call finished: %v", err)
	}
}

func TestCommitFailsWhenSessionCannotStart(t *testing.T) {
	c := New(&fakeStore{err: errors.New("disk full")}, operation.NewDefaultRegistry())
	ctx := context.Background()
	id, err := c.Begin(ctx)
	if err != nil {
		t.Fatalf("begin must not need storage: %v", err)
	}
	if _, err := c.Commit(ctx, id); !apperrors.IsCode(err, apperrors.CodeTransactionFailed) {
		t.Fatalf("expected transaction failed, got %v", err)
	}
	if err := c.Rollback(ctx, id); !apperrors.IsCode(err, apperrors.CodeTransactionNotFound) {
		t.Fatalf("failed transaction should be terminal, got %v", err)
	}
}

func TestOpenTransactionsLeaveTheWriterFree(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()

	insert := func(group string) func(storage.TileWriter) error {
		return func(s storage.TileWriter) error {
			_, err := s.InsertTile(ctx, storage.Tile{TerrainType: biome.Hills, GroupID: group})
			return err
		}
	}
	first, _ := c.Begin(ctx)
	second, _ := c.Begin(ctx)
	if err := c.Do(ctx, first, insert("first")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := c.Do(ctx, second, insert("second")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := store.AutoCommit(waitCtx, func(s storage.Session) error {
		_, err := s.InsertTile(waitCtx, storage.Tile{TerrainType: biome.Plains, GroupID: "auto"})
		return err
	}); err != nil {
		t.Fatalf("auto commit beside open transactions: %v", err)
	}

	if _, err := c.Commit(ctx, second); err != nil {
		t.Fatalf("commit second: %v", err)
	}
	if _, err := c.Commit(ctx, first); err != nil {
		t.Fatalf("commit first: %v", err)
	}
	for _, group := range []string{"first", "second", "auto"} {
		if tiles, _ := store.TilesByGroup(ctx, group); len(tiles) != 1 {
			t.Fatalf("expected one %s tile, got %v", group, tiles)
		}
	}
}

func TestUpdateOwnInsertBeforeCommit(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()
	id, _ := c.Begin(ctx)

	var tileID int64
	if err := c.Do(ctx, id, func(s storage.TileWriter) error {
		var err error
		tileID, err = s.InsertTile(ctx, storage.Tile{X: 1, Y: 2, TerrainType: biome.Plains, GroupID: "g"})
		return err
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := c.Do(ctx, id, func(s storage.TileWriter) error {
		updated, err := s.UpdateTile(ctx, storage.Tile{ID: tileID, X: 1, Y: 2, TerrainType: biome.Mountain})
		if err == nil && updated.GroupID != "g" {
			t.Errorf("updated tile lost its group: %+v", updated)
		}
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := c.Commit(ctx, id); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tiles, _ := store.TilesByGroup(ctx, "g")
	if len(tiles) != 1 || tiles[0].ID != tileID || tiles[0].TerrainType != biome.Mountain {
		t.Fatalf("expected one mountain tile %d, got %+v", tileID, tiles)
	}
}

func TestUpdateCommittedTileIsStaged(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()

	var tileID int64
	if err := store.AutoCommit(ctx, func(s storage.Session) error {
		var err error
		tileID, err = s.InsertTile(ctx, storage.Tile{TerrainType: biome.Plains, GroupID: "g"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	id, _ := c.Begin(ctx)
	if err := c.Do(ctx, id, func(s storage.TileWriter) error {
		_, err := s.UpdateTile(ctx, storage.Tile{ID: tileID, X: 3, Y: 4, TerrainType: biome.Desert})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if tile, _ := store.TileByID(ctx, tileID); tile.TerrainType != biome.Plains {
		t.Fatalf("staged update leaked: %+v", tile)
	}
	if _, err := c.Commit(ctx, id); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if tile, _ := store.TileByID(ctx, tileID); tile.TerrainType != biome.Desert || tile.X != 3 || tile.Y != 4 {
		t.Fatalf("expected committed update, got %+v", tile)
	}
}

func TestFailedDoDropsItsWrites(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()
	id, _ := c.Begin(ctx)

	err := c.Do(ctx, id, func(s storage.TileWriter) error {
		if _, err := s.InsertTile(ctx, storage.Tile{TerrainType: biome.Forest, GroupID: "g"}); err != nil {
			return err
		}
		_, err := s.UpdateTile(ctx, storage.Tile{ID: 404, TerrainType: biome.Lake})
		return err
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected missing tile, got %v", err)
	}
	result, err := c.Commit(ctx, id)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Writes != 0 {
		t.Fatalf("writes = %d", result.Writes)
	}
	if tiles, _ := store.TilesByGroup(ctx, "g"); len(tiles) != 0 {
		t.Fatalf("failed call left rows behind: %v", tiles)
	}
}

func TestCommitFailsWhenStagedTileWasDeleted(t *testing.T) {
	store := openStore(t)
	c := New(store, operation.NewDefaultRegistry())
	ctx := context.Background()

	var tileID int64
	_ = store.AutoCommit(ctx, func(s storage.Session) error {
		var err error
		tileID, err = s.InsertTile(ctx, storage.Tile{TerrainType: biome.Plains, GroupID: "g"})
		return err
	})
	id, _ := c.Begin(ctx)
	if err := c.Do(ctx, id, func(s storage.TileWriter) error {
		_, err := s.UpdateTile(ctx, storage.Tile{ID: tileID, TerrainType: biome.Hills})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.AutoCommit(ctx, func(s storage.Session) error {
		_, err := s.DeleteTilesAt(ctx, "g", 0, 0)
		return err
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err := c.Commit(ctx, id)
	if !apperrors.IsCode(err, apperrors.CodeTransactionFailed) || !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected failed commit caused by the missing tile, got %v", err)
	}
}

func TestSweepDisabled(t *testing.T) {
	c := New(&fakeStore{}, operation.NewDefaultRegistry(), WithIdleTimeout(0))
	_, _ = c.Begin(context.Background())
	if n := c.Sweep(time.Now().Add(24 * time.Hour)); n != 0 {
		t.Fatalf("expected sweep disabled, expired %d", n)
	}
}

func TestCloseRollsBackOpenTransactions(t *testing.T) {
	c := New(&fakeStore{}, operation.NewDefaultRegistry())
	ctx := context.Background()
	id, _ := c.Begin(ctx)
	_, _ = c.Begin(ctx)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.Open() != 0 {
		t.Fatalf("open = %d", c.Open())
	}
	if _, err := c.Commit(ctx, id); !apperrors.IsCode(err, apperrors.CodeTransactionNotFound) {
		t.Fatalf("closed transaction should be gone, got %v", err)
	}
	if _, err := c.Begin(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected begin after close to fail, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateOpen:       "open",
		StateCommitted:  "committed",
		StateRolledBack: "rolled_back",
		StateFailed:     "failed",
	} {
		if state.String() != want {
			t.Fatalf("%d.String() = %q", state, state.String())
		}
	}
}

type builderFunc func(operation.Operation) (operation.Func, error)

func (f builderFunc) Build(op operation.Operation) (operation.Func, error) { return f(op) }

type handlerFunc func(operation.Kind, json.RawMessage) (operation.Func, error)

func (f handlerFunc) Build(kind operation.Kind, payload json.RawMessage) (operation.Func, error) {
	return f(kind, payload)
}

type fakeStore struct {
	mu     sync.Mutex
	err    error
	lastID int64
}

func (f *fakeStore) BeginSession(context.Context) (storage.Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	return fakeTx{}, nil
}

func (f *fakeStore) NextTileID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastID++
	return f.lastID, nil
}

func (f *fakeStore) TileByID(context.Context, int64) (storage.Tile, error) {
	return storage.Tile{}, storage.ErrNotFound
}

type fakeTx struct {
	storage.Session
}

func (fakeTx) Commit() error { return nil }

func (fakeTx) Rollback() error { return nil }
