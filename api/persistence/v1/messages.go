// Package persistencev1 defines the persistence.v1 wire contract: request and
// response messages, the PersistenceService descriptor, and its client.
//
// Messages travel as JSON under the "json" gRPC content-subtype.
package persistencev1

import "encoding/json"

// TerrainTile is a stored hex tile. ID is zero until storage assigns one.
type TerrainTile struct {
	ID             int64  `json:"id,omitempty"`
	X              int32  `json:"x"`
	Y              int32  `json:"y"`
	TerrainType    string `json:"terrain_type"`
	TerrainGroupID string `json:"terrain_group_id,omitempty"`
}

type BeginTransactionRequest struct{}

type BeginTransactionResponse struct {
	TransactionID string `json:"transaction_id"`
}

type CommitTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

type CommitTransactionResponse struct{}

type RollbackTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

type RollbackTransactionResponse struct{}

// StoreTerrainRequest writes tiles directly, inside TransactionID when set.
// Tiles with an ID update the stored row; tiles without one are inserted
// under TerrainGroupID (generated when empty).
type StoreTerrainRequest struct {
	Tiles          []*TerrainTile `json:"tiles"`
	TransactionID  string         `json:"transaction_id,omitempty"`
	TerrainGroupID string         `json:"terrain_group_id,omitempty"`
}

type StoreTerrainResponse struct {
	TerrainGroupID string  `json:"terrain_group_id"`
	TileIDs        []int64 `json:"tile_ids"`
	Success        bool    `json:"success"`
}

type RetrieveTerrainRequest struct {
	TerrainGroupID string `json:"terrain_group_id"`
}

type RetrieveTerrainResponse struct {
	Tiles []*TerrainTile `json:"tiles"`
}

// QueueOperationRequest defers one entity operation until CommitTransaction.
// OperationType is CREATE, UPDATE, or DELETE; Payload is entity specific.
// A TerrainTile payload is a JSON object with x, y, terrain_type and the
// tile's group under "group_id" ("terrain_group_id" and "terrain_id" are
// accepted too). CREATE without a group gets a fresh one; UPDATE and
// DELETE require it.
type QueueOperationRequest struct {
	TransactionID string          `json:"transaction_id"`
	Sequence      int64           `json:"sequence"`
	OperationType string          `json:"operation_type"`
	EntityType    string          `json:"entity_type"`
	Payload       json.RawMessage `json:"payload"`
}

type QueueOperationResponse struct{}
