// Package saga runs terrain generation and, on request, persists the result
// through the persistence service inside one remote transaction.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	persistencev1 "github.com/louisbranch/hexterrain/api/persistence/v1"
	apperrors "github.com/louisbranch/hexterrain/internal/platform/errors"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	"github.com/louisbranch/hexterrain/internal/platform/timeouts"
	"github.com/louisbranch/hexterrain/internal/terrain"
)

// Saga steps, reported in PersistenceFailed metadata.
const (
	StepBegin  = "begin"
	StepStore  = "store"
	StepCommit = "commit"
)

// Grower produces a contiguous terrain of target tiles.
type Grower interface {
	Grow(ctx context.Context, target int) ([]terrain.Tile, error)
}

// Result is the outcome of one generation. GroupID is empty when the tiles
// were not persisted.
type Result struct {
	Tiles   []terrain.Tile
	GroupID string
}

// Orchestrator coordinates a Grower with the persistence service.
type Orchestrator struct {
	grower              Grower
	store               persistencev1.PersistenceServiceClient
	callTimeout         time.Duration
	compensationTimeout time.Duration
	log                 *logrus.Entry
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCallTimeout bounds each remote step. Zero leaves steps bounded only by
// the caller context.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.callTimeout = d
		}
	}
}

// WithCompensationTimeout bounds the rollback issued after a failed step.
func WithCompensationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.compensationTimeout = d
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(log *logrus.Entry) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// New returns an orchestrator. store may be nil when persistence is not
// available; persisting requests then fail with PersistenceFailed.
func New(grower Grower, store persistencev1.PersistenceServiceClient, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		grower:              grower,
		store:               store,
		callTimeout:         timeouts.GRPCRequest,
		compensationTimeout: timeouts.Compensation,
		log:                 logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateAndPersist grows target tiles and, when persist is set, stores them
// with Begin, Store, Commit. Any failure after Begin rolls the transaction
// back before the error is returned, even when ctx was cancelled.
func (o *Orchestrator) GenerateAndPersist(ctx context.Context, target int, persist bool) (Result, error) {
	tiles, err := o.grower.Grow(ctx, target)
	if err != nil {
		return Result{}, err
	}
	result := Result{Tiles: tiles}
	if !persist {
		return result, nil
	}
	if o.store == nil {
		return Result{}, apperrors.New(apperrors.CodePersistenceFailed, "persistence service is not configured")
	}

	groupID, err := o.persist(ctx, tiles)
	if err != nil {
		return Result{}, err
	}
	result.GroupID = groupID
	return result, nil
}

func (o *Orchestrator) persist(ctx context.Context, tiles []terrain.Tile) (string, error) {
	begin, err := step(ctx, o.callTimeout, func(ctx context.Context) (*persistencev1.BeginTransactionResponse, error) {
		return o.store.BeginTransaction(ctx, &persistencev1.BeginTransactionRequest{})
	})
	if err != nil {
		return "", stepFailed(StepBegin, "", err)
	}
	txID := begin.TransactionID
	if txID == "" {
		return "", stepFailed(StepBegin, "", errors.New("empty transaction id"))
	}
	log := o.log.WithField("transaction_id", txID)

	stored, err := step(ctx, o.callTimeout, func(ctx context.Context) (*persistencev1.StoreTerrainResponse, error) {
		return o.store.StoreTerrain(ctx, &persistencev1.StoreTerrainRequest{
			Tiles:         toWire(tiles),
			TransactionID: txID,
		})
	})
	if err == nil && !stored.Success {
		err = errors.New("store reported no success")
	}
	if err != nil {
		return "", o.compensate(ctx, txID, stepFailed(StepStore, txID, err))
	}

	_, err = step(ctx, o.callTimeout, func(ctx context.Context) (*persistencev1.CommitTransactionResponse, error) {
		return o.store.CommitTransaction(ctx, &persistencev1.CommitTransactionRequest{TransactionID: txID})
	})
	if err != nil {
		return "", o.compensate(ctx, txID, stepFailed(StepCommit, txID, err))
	}

	log.WithFields(logrus.Fields{
		"terrain_group_id": stored.TerrainGroupID,
		"tiles":            len(tiles),
	}).Info("persisted terrain")
	return stored.TerrainGroupID, nil
}

// compensate rolls txID back on a context detached from ctx and returns cause,
// joined with the rollback error when the rollback itself failed. NotFound
// means the transaction already ended, which commit failures do server-side.
func (o *Orchestrator) compensate(ctx context.Context, txID string, cause error) error {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.compensationTimeout)
	defer cancel()

	log := o.log.WithField("transaction_id", txID).WithError(cause)
	_, err := o.store.RollbackTransaction(rbCtx, &persistencev1.RollbackTransactionRequest{TransactionID: txID})
	switch {
	case err == nil:
		log.Warn("rolled back terrain transaction")
	case status.Code(err) == codes.NotFound:
		log.Debug("terrain transaction already finished")
	default:
		log.WithField("rollback_error", err.Error()).Error("compensating rollback failed")
		return errors.Join(cause, fmt.Errorf("rollback transaction %s: %w", txID, err))
	}
	return cause
}

func step[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return call(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(stepCtx)
}

func stepFailed(name, txID string, cause error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodePersistenceFailed,
		fmt.Sprintf("%s terrain transaction", name),
		map[string]string{"Step": name, "TransactionID": txID},
		cause,
	)
}

func toWire(tiles []terrain.Tile) []*persistencev1.TerrainTile {
	out := make([]*persistencev1.TerrainTile, 0, len(tiles))
	for _, t := range tiles {
		out = append(out, &persistencev1.TerrainTile{
			X:           int32(t.X),
			Y:           int32(t.Y),
			TerrainType: t.Biome.String(),
		})
	}
	return out
}
