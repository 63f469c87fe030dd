// Package txn coordinates multi-call transactions against a storage engine.
//
// A remote caller begins a transaction, performs direct writes and queues
// deferred operations under its id, then commits or rolls back. Each id
// reaches exactly one terminal state; once terminal it is forgotten and
// later calls observe NotFound.
//
// Nothing touches the storage writer until Commit: direct writes are staged
// in memory with reserved tile ids and applied, followed by the queue, in a
// single short storage session.
package txn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/louisbranch/hexterrain/internal/platform/errors"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	"github.com/louisbranch/hexterrain/internal/platform/timeouts"
	"github.com/louisbranch/hexterrain/internal/services/persistence/operation"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage"
)

// State is a transaction lifecycle state.
type State int

const (
	StateOpen State = iota
	StateCommitted
	StateRolledBack
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Store is the storage the coordinator stages against and commits into.
type Store interface {
	TileStore
	BeginSession(ctx context.Context) (storage.Tx, error)
}

// Builder turns queued operations into closures.
type Builder interface {
	Build(op operation.Operation) (operation.Func, error)
}

// CommitResult summarizes a committed transaction.
type CommitResult struct {
	TransactionID string
	Operations    int
	Writes        int
	CommittedAt   time.Time
}

// ErrClosed is returned by Begin after Close.
var ErrClosed = apperrors.New(apperrors.CodeStorageFailure, "transaction coordinator is closed")

type queued struct {
	op operation.Operation
	fn operation.Func
}

type entry struct {
	// sem is a one-slot lock so waiting callers can give up with their ctx.
	sem      *semaphore.Weighted
	id       string
	state    State
	queue    []queued
	staged   *staged
	writes   int
	lastUsed time.Time
}

// Coordinator tracks open transactions. The map lock is held only for
// lookups; each transaction serializes its own calls.
type Coordinator struct {
	store       Store
	builder     Builder
	idleTimeout time.Duration
	now         func() time.Time
	newID       func() string
	log         *logrus.Entry

	mu     sync.Mutex
	txns   map[string]*entry
	closed bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithIdleTimeout sets how long an untouched transaction may stay open
// before Sweep rolls it back. Zero disables expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.idleTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// New returns a coordinator committing into store and building queued
// operations with builder.
func New(store Store, builder Builder, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		builder:     builder,
		idleTimeout: timeouts.TransactionIdle,
		now:         time.Now,
		newID:       uuid.NewString,
		log:         logging.Discard(),
		txns:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin registers a new open transaction with an empty queue and staging
// area.
func (c *Coordinator) Begin(ctx context.Context) (string, error) {
	e := &entry{
		sem:      semaphore.NewWeighted(1),
		id:       c.newID(),
		state:    StateOpen,
		staged:   newStaged(c.store),
		lastUsed: c.now(),
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.txns[e.id] = e
	c.mu.Unlock()

	c.log.WithField("transaction_id", e.id).Info("transaction started")
	return e.id, nil
}

// Queue defers op until Commit. The queue stays ordered by sequence; equal
// sequences keep arrival order.
func (c *Coordinator) Queue(ctx context.Context, id string, op operation.Operation) error {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.release()

	fn, err := c.builder.Build(op)
	if err != nil {
		return err
	}
	idx := sort.Search(len(e.queue), func(i int) bool {
		return e.queue[i].op.Sequence > op.Sequence
	})
	e.queue = append(e.queue, queued{})
	copy(e.queue[idx+1:], e.queue[idx:])
	e.queue[idx] = queued{op: op, fn: fn}
	e.lastUsed = c.now()
	return nil
}

// Do stages fn's writes in the transaction. Inserts receive their final ids
// immediately; updates are checked against committed rows and the
// transaction's own inserts. A failing fn leaves the transaction open
// without any of that call's writes.
func (c *Coordinator) Do(ctx context.Context, id string, fn func(storage.TileWriter) error) error {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.release()

	e.lastUsed = c.now()
	mark := e.staged.mark()
	if err := fn(e.staged); err != nil {
		e.staged.reset(mark)
		return err
	}
	e.writes++
	return nil
}

// Commit applies staged writes and then queued operations in sequence order
// inside one storage session. Any failure rolls the session back and marks
// the transaction failed.
func (c *Coordinator) Commit(ctx context.Context, id string) (CommitResult, error) {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return CommitResult{}, err
	}
	defer e.release()
	defer c.forget(e)

	log := c.log.WithField("transaction_id", id)
	session, err := c.store.BeginSession(ctx)
	if err != nil {
		return CommitResult{}, c.fail(e, log, nil, fmt.Errorf("begin storage session: %w", err))
	}
	if err := e.staged.apply(ctx, session); err != nil {
		return CommitResult{}, c.fail(e, log, session, fmt.Errorf("apply staged writes: %w", err))
	}
	for _, q := range e.queue {
		if err := q.fn(ctx, session); err != nil {
			return CommitResult{}, c.fail(e, log, session, fmt.Errorf("operation %d %s %s: %w", q.op.Sequence, q.op.Kind, q.op.EntityType, err))
		}
	}
	if err := session.Commit(); err != nil {
		return CommitResult{}, c.fail(e, log, nil, fmt.Errorf("commit: %w", err))
	}

	e.state = StateCommitted
	result := CommitResult{
		TransactionID: id,
		Operations:    len(e.queue),
		Writes:        e.writes,
		CommittedAt:   c.now(),
	}
	e.discard()
	log.WithFields(logrus.Fields{"operations": result.Operations, "writes": result.Writes}).Info("transaction committed")
	return result, nil
}

// Rollback discards queued operations and staged writes.
func (c *Coordinator) Rollback(ctx context.Context, id string) error {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.release()
	defer c.forget(e)

	c.rollback(e, "transaction rolled back")
	return nil
}

// Sweep rolls back open transactions idle since before now minus the idle
// timeout and returns how many it expired. Transactions busy in another
// call are skipped.
func (c *Coordinator) Sweep(now time.Time) int {
	if c.idleTimeout <= 0 {
		return 0
	}
	expired := 0
	for _, e := range c.snapshot() {
		if !e.sem.TryAcquire(1) {
			continue
		}
		if e.state == StateOpen && now.Sub(e.lastUsed) > c.idleTimeout {
			c.rollback(e, "transaction expired")
			c.forget(e)
			expired++
		}
		e.release()
	}
	return expired
}

// Close rolls back every open transaction and refuses new ones. It waits
// for calls already running against a transaction.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	for _, e := range c.snapshot() {
		_ = e.sem.Acquire(context.Background(), 1)
		if e.state == StateOpen {
			c.rollback(e, "transaction aborted on shutdown")
			c.forget(e)
		}
		e.release()
	}
	return nil
}

// Open reports the number of open transactions.
func (c *Coordinator) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.txns)
}

// acquire returns the open entry for id with its lock held. Waiting for a
// busy transaction ends with ctx.
func (c *Coordinator) acquire(ctx context.Context, id string) (*entry, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.New(apperrors.CodeTransactionIDMissing, "transaction id is required")
	}
	c.mu.Lock()
	e, ok := c.txns[id]
	c.mu.Unlock()
	if !ok {
		return nil, notFound(id)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if e.state != StateOpen {
		e.release()
		return nil, notFound(id)
	}
	return e, nil
}

func (e *entry) release() {
	e.sem.Release(1)
}

func (e *entry) discard() {
	e.queue = nil
	e.staged = nil
}

func (c *Coordinator) snapshot() []*entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*entry, 0, len(c.txns))
	for _, e := range c.txns {
		out = append(out, e)
	}
	return out
}

func (c *Coordinator) forget(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txns[e.id] == e {
		delete(c.txns, e.id)
	}
}

// rollback requires e's lock held.
func (c *Coordinator) rollback(e *entry, msg string) {
	e.discard()
	e.state = StateRolledBack
	c.log.WithField("transaction_id", e.id).Info(msg)
}

// fail requires e's lock held. A non-nil session is rolled back.
func (c *Coordinator) fail(e *entry, log *logrus.Entry, session storage.Tx, cause error) error {
	e.discard()
	e.state = StateFailed
	if session != nil {
		if rbErr := session.Rollback(); rbErr != nil {
			cause = errors.Join(cause, fmt.Errorf("rollback: %w", rbErr))
		}
	}
	log.WithError(cause).Error("transaction failed")
	return failed(e.id, cause)
}

func notFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeTransactionNotFound,
		"transaction "+id+" not found",
		map[string]string{"TransactionID": id})
}

func failed(id string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeTransactionFailed,
		"transaction "+id+" failed",
		map[string]string{"TransactionID": id}, cause)
}
