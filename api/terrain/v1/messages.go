// Package terrainv1 defines the terrain.v1 wire contract for the
// TerrainGenerationService.
package terrainv1

// TerrainTile is one generated hex at axial coordinates (X, Y).
type TerrainTile struct {
	X           int32  `json:"x"`
	Y           int32  `json:"y"`
	TerrainType string `json:"terrain_type"`
}

type GenerateTerrainRequest struct {
	TotalLandHexagons int32 `json:"total_land_hexagons"`
	Persist           bool  `json:"persist"`
}

// GenerateTerrainResponse carries the tiles in generation order.
// TerrainGroupID is empty unless the request asked to persist.
type GenerateTerrainResponse struct {
	Tiles          []*TerrainTile `json:"tiles"`
	TerrainGroupID string         `json:"terrain_group_id"`
}
