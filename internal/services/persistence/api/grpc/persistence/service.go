// Package persistence implements the persistence.v1 gRPC API over the
// transaction coordinator and the tile store.
package persistence

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	persistencev1 "github.com/louisbranch/hexterrain/api/persistence/v1"
	apperrors "github.com/louisbranch/hexterrain/internal/platform/errors"
	platformgrpc "github.com/louisbranch/hexterrain/internal/platform/grpc"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	"github.com/louisbranch/hexterrain/internal/platform/timeouts"
	"github.com/louisbranch/hexterrain/internal/services/persistence/events"
	"github.com/louisbranch/hexterrain/internal/services/persistence/operation"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage"
	"github.com/louisbranch/hexterrain/internal/services/persistence/txn"
	"github.com/louisbranch/hexterrain/internal/terrain/biome"
)

// Deps are the collaborators of Service.
type Deps struct {
	Engine      storage.Engine
	Coordinator *txn.Coordinator
	Publisher   events.Publisher
	Logger      *logrus.Entry
	// NewGroupID generates terrain group ids. Defaults to random UUIDs.
	NewGroupID func() string
	// PublishTimeout caps each commit event delivery. Defaults to
	// timeouts.EventPublish.
	PublishTimeout time.Duration
}

// Service exposes persistence.v1 gRPC operations.
type Service struct {
	persistencev1.UnimplementedPersistenceServiceServer

	engine     storage.Engine
	coord      *txn.Coordinator
	publisher  events.Publisher
	log        *logrus.Entry
	newGroupID func() string

	publishTimeout time.Duration
	// publishing tracks commit events still in flight.
	publishing sync.WaitGroup
}

// NewService creates a persistence service.
func NewService(deps Deps) *Service {
	s := &Service{
		engine:     deps.Engine,
		coord:      deps.Coordinator,
		publisher:  deps.Publisher,
		log:        deps.Logger,
		newGroupID: deps.NewGroupID,

		publishTimeout: deps.PublishTimeout,
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.newGroupID == nil {
		s.newGroupID = uuid.NewString
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = timeouts.EventPublish
	}
	return s
}

// Wait blocks until commit events already handed to the publisher are
// delivered or have timed out.
func (s *Service) Wait() {
	s.publishing.Wait()
}

// BeginTransaction opens a transaction and returns its id.
func (s *Service) BeginTransaction(ctx context.Context, _ *persistencev1.BeginTransactionRequest) (*persistencev1.BeginTransactionResponse, error) {
	id, err := s.coord.Begin(ctx)
	if err != nil {
		return nil, s.handleError(ctx, err)
	}
	return &persistencev1.BeginTransactionResponse{TransactionID: id}, nil
}

// CommitTransaction applies the transaction's writes and queued operations.
// The commit event is published after the reply so a slow broker cannot
// turn a durable commit into a caller-side timeout.
func (s *Service) CommitTransaction(ctx context.Context, in *persistencev1.CommitTransactionRequest) (*persistencev1.CommitTransactionResponse, error) {
	if in == nil {
		in = &persistencev1.CommitTransactionRequest{}
	}
	result, err := s.coord.Commit(ctx, strings.TrimSpace(in.TransactionID))
	if err != nil {
		return nil, s.handleError(ctx, err)
	}

	event := events.Committed{
		TransactionID: result.TransactionID,
		Operations:    result.Operations,
		Writes:        result.Writes,
		CommittedAt:   result.CommittedAt.UTC(),
	}
	s.publish(context.WithoutCancel(ctx), event)
	return &persistencev1.CommitTransactionResponse{}, nil
}

func (s *Service) publish(ctx context.Context, event events.Committed) {
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
		if err := s.publisher.PublishCommitted(ctx, event); err != nil {
			s.log.WithError(err).WithField("transaction_id", event.TransactionID).Warn("publish committed event")
		}
	}()
}

// RollbackTransaction discards the transaction.
func (s *Service) RollbackTransaction(ctx context.Context, in *persistencev1.RollbackTransactionRequest) (*persistencev1.RollbackTransactionResponse, error) {
	if in == nil {
		in = &persistencev1.RollbackTransactionRequest{}
	}
	if err := s.coord.Rollback(ctx, strings.TrimSpace(in.TransactionID)); err != nil {
		return nil, s.handleError(ctx, err)
	}
	return &persistencev1.RollbackTransactionResponse{}, nil
}

// QueueOperation defers an entity operation until commit.
func (s *Service) QueueOperation(ctx context.Context, in *persistencev1.QueueOperationRequest) (*persistencev1.QueueOperationResponse, error) {
	if in == nil {
		in = &persistencev1.QueueOperationRequest{}
	}
	kind, err := operation.ParseKind(in.OperationType)
	if err != nil {
		return nil, s.handleError(ctx, err)
	}
	op := operation.Operation{
		Sequence:   in.Sequence,
		Kind:       kind,
		EntityType: strings.TrimSpace(in.EntityType),
		Payload:    in.Payload,
	}
	if err := s.coord.Queue(ctx, strings.TrimSpace(in.TransactionID), op); err != nil {
		return nil, s.handleError(ctx, err)
	}
	return &persistencev1.QueueOperationResponse{}, nil
}

// StoreTerrain writes tiles: staged in the named transaction when one is
// given, otherwise in a one-shot transaction serialized by the engine's
// writer slot. Tiles carrying an id update that row; the rest are inserted
// under the request's group. Returned ids are final either way.
func (s *Service) StoreTerrain(ctx context.Context, in *persistencev1.StoreTerrainRequest) (*persistencev1.StoreTerrainResponse, error) {
	start := time.Now()
	if in == nil {
		in = &persistencev1.StoreTerrainRequest{}
	}
	tiles, err := decodeTiles(in.Tiles)
	if err != nil {
		return nil, s.handleError(ctx, err)
	}

	groupID := strings.TrimSpace(in.TerrainGroupID)
	if groupID == "" && hasInserts(tiles) {
		groupID = s.newGroupID()
	}

	var ids []int64
	write := func(w storage.TileWriter) error {
		var err error
		ids, groupID, err = writeTiles(ctx, w, tiles, groupID)
		return err
	}

	txID := strings.TrimSpace(in.TransactionID)
	if txID != "" {
		err = s.coord.Do(ctx, txID, write)
	} else {
		err = s.engine.AutoCommit(ctx, func(session storage.Session) error { return write(session) })
	}
	if err != nil {
		return nil, s.handleError(ctx, err)
	}

	s.log.WithFields(logrus.Fields{
		"terrain_group_id": groupID,
		"transaction_id":   txID,
		"tiles":            len(ids),
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Info("stored terrain")
	return &persistencev1.StoreTerrainResponse{
		TerrainGroupID: groupID,
		TileIDs:        ids,
		Success:        true,
	}, nil
}

// RetrieveTerrain returns the committed tiles of a group.
func (s *Service) RetrieveTerrain(ctx context.Context, in *persistencev1.RetrieveTerrainRequest) (*persistencev1.RetrieveTerrainResponse, error) {
	start := time.Now()
	if in == nil {
		in = &persistencev1.RetrieveTerrainRequest{}
	}
	groupID := strings.TrimSpace(in.TerrainGroupID)
	if groupID == "" {
		return nil, s.handleError(ctx, apperrors.New(apperrors.CodeTerrainGroupIDMissing, "terrain group id is required"))
	}

	tiles, err := s.engine.TilesByGroup(ctx, groupID)
	if err != nil {
		return nil, s.handleError(ctx, apperrors.Wrap(apperrors.CodeStorageFailure, "retrieve terrain", err))
	}
	if len(tiles) == 0 {
		return nil, s.handleError(ctx, apperrors.WithMetadata(apperrors.CodeTerrainGroupNotFound,
			"terrain "+groupID+" not found",
			map[string]string{"TerrainGroupID": groupID}))
	}

	resp := &persistencev1.RetrieveTerrainResponse{Tiles: make([]*persistencev1.TerrainTile, 0, len(tiles))}
	for _, t := range tiles {
		resp.Tiles = append(resp.Tiles, tileToProto(t))
	}
	s.log.WithFields(logrus.Fields{
		"terrain_group_id": groupID,
		"tiles":            len(tiles),
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Info("retrieved terrain")
	return resp, nil
}

// handleError maps err to a gRPC status. Errors without a domain code are
// reported as storage failures; context errors keep their own codes.
func (s *Service) handleError(ctx context.Context, err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return status.Error(codes.DeadlineExceeded, err.Error())
		case errors.Is(err, context.Canceled):
			return status.Error(codes.Canceled, err.Error())
		}
		err = apperrors.Wrap(apperrors.CodeStorageFailure, "storage operation failed", err)
	}
	return apperrors.HandleError(err, platformgrpc.LocaleFromContext(ctx))
}

func decodeTiles(in []*persistencev1.TerrainTile) ([]storage.Tile, error) {
	tiles := make([]storage.Tile, 0, len(in))
	for _, t := range in {
		if t == nil {
			continue
		}
		b, err := biome.Parse(t.TerrainType)
		if err != nil {
			return nil, apperrors.WrapWithMetadata(apperrors.CodeTerrainTypeInvalid,
				"invalid terrain type",
				map[string]string{"TerrainType": t.TerrainType}, err)
		}
		if t.ID < 0 {
			return nil, apperrors.WithMetadata(apperrors.CodeTileNotFound,
				"tile "+strconv.FormatInt(t.ID, 10)+" not found",
				map[string]string{"TileID": strconv.FormatInt(t.ID, 10)})
		}
		tiles = append(tiles, storage.Tile{ID: t.ID, X: int(t.X), Y: int(t.Y), TerrainType: b})
	}
	return tiles, nil
}

func hasInserts(tiles []storage.Tile) bool {
	for _, t := range tiles {
		if t.ID == 0 {
			return true
		}
	}
	return false
}

// writeTiles applies tiles in order. When groupID is empty (update-only
// requests) it adopts the group of the first updated row.
func writeTiles(ctx context.Context, w storage.TileWriter, tiles []storage.Tile, groupID string) ([]int64, string, error) {
	ids := make([]int64, 0, len(tiles))
	for _, t := range tiles {
		if t.ID == 0 {
			t.GroupID = groupID
			id, err := w.InsertTile(ctx, t)
			if err != nil {
				return nil, groupID, err
			}
			ids = append(ids, id)
			continue
		}

		updated, err := w.UpdateTile(ctx, t)
		if errors.Is(err, storage.ErrNotFound) {
			idText := strconv.FormatInt(t.ID, 10)
			return nil, groupID, apperrors.WithMetadata(apperrors.CodeTileNotFound,
				"tile "+idText+" not found",
				map[string]string{"TileID": idText})
		}
		if err != nil {
			return nil, groupID, err
		}
		if groupID == "" {
			groupID = updated.GroupID
		}
		ids = append(ids, updated.ID)
	}
	return ids, groupID, nil
}

func tileToProto(t storage.Tile) *persistencev1.TerrainTile {
	return &persistencev1.TerrainTile{
		ID:             t.ID,
		X:              int32(t.X),
		Y:              int32(t.Y),
		TerrainType:    t.TerrainType.String(),
		TerrainGroupID: t.GroupID,
	}
}
