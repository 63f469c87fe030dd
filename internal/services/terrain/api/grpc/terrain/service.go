// Package terrain implements the terrain.v1 gRPC API.
package terrain

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/status"

	terrainv1 "github.com/louisbranch/hexterrain/api/terrain/v1"
	apperrors "github.com/louisbranch/hexterrain/internal/platform/errors"
	platformgrpc "github.com/louisbranch/hexterrain/internal/platform/grpc"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	"github.com/louisbranch/hexterrain/internal/services/terrain/saga"
)

// Generator grows terrain and optionally persists it.
type Generator interface {
	GenerateAndPersist(ctx context.Context, target int, persist bool) (saga.Result, error)
}

// Service exposes terrain.v1 gRPC operations.
type Service struct {
	terrainv1.UnimplementedTerrainGenerationServiceServer

	generator Generator
	log       *logrus.Entry
}

// NewService creates a terrain service over generator.
func NewService(generator Generator, log *logrus.Entry) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{generator: generator, log: log}
}

// GenerateTerrain grows TotalLandHexagons tiles and, when Persist is set,
// stores them as one terrain group.
func (s *Service) GenerateTerrain(ctx context.Context, in *terrainv1.GenerateTerrainRequest) (*terrainv1.GenerateTerrainResponse, error) {
	if in == nil {
		in = &terrainv1.GenerateTerrainRequest{}
	}
	start := time.Now()
	log := s.log.WithFields(logrus.Fields{
		"total_land_hexagons": in.TotalLandHexagons,
		"persist":             in.Persist,
	})

	result, err := s.generator.GenerateAndPersist(ctx, int(in.TotalLandHexagons), in.Persist)
	if err != nil {
		log.WithError(err).Warn("generate terrain failed")
		return nil, handleError(ctx, err)
	}

	resp := &terrainv1.GenerateTerrainResponse{
		Tiles:          make([]*terrainv1.TerrainTile, 0, len(result.Tiles)),
		TerrainGroupID: result.GroupID,
	}
	debug := log.Logger.IsLevelEnabled(logrus.DebugLevel)
	for _, t := range result.Tiles {
		if debug {
			log.WithFields(logrus.Fields{"x": t.X, "y": t.Y, "terrain_type": t.Biome}).Debug("generated tile")
		}
		resp.Tiles = append(resp.Tiles, &terrainv1.TerrainTile{
			X:           int32(t.X),
			Y:           int32(t.Y),
			TerrainType: t.Biome.String(),
		})
	}

	log.WithFields(logrus.Fields{
		"tiles":            len(resp.Tiles),
		"terrain_group_id": resp.TerrainGroupID,
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Info("generated terrain")
	return resp, nil
}

func handleError(ctx context.Context, err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return status.FromContextError(err).Err()
	}
	return apperrors.HandleError(err, platformgrpc.LocaleFromContext(ctx))
}
