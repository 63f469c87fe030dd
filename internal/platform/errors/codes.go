// Package errors provides structured domain errors and their gRPC mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Generation errors
	CodeTerrainSizeInvalid  Code = "TERRAIN_SIZE_INVALID"
	CodeTerrainSizeTooLarge Code = "TERRAIN_SIZE_TOO_LARGE"
	CodeGrowthExhausted     Code = "GROWTH_EXHAUSTED"

	// Tile errors
	CodeTerrainTypeInvalid    Code = "TERRAIN_TYPE_INVALID"
	CodeTerrainGroupNotFound  Code = "TERRAIN_GROUP_NOT_FOUND"
	CodeTerrainGroupIDMissing Code = "TERRAIN_GROUP_ID_MISSING"
	CodeTileNotFound          Code = "TILE_NOT_FOUND"

	// Transaction errors
	CodeTransactionNotFound     Code = "TRANSACTION_NOT_FOUND"
	CodeTransactionIDMissing    Code = "TRANSACTION_ID_MISSING"
	CodeTransactionFailed       Code = "TRANSACTION_FAILED"
	CodeUnsupportedOperation    Code = "UNSUPPORTED_OPERATION"
	CodeOperationPayloadInvalid Code = "OPERATION_PAYLOAD_INVALID"

	// Storage and saga errors
	CodeStorageFailure    Code = "STORAGE_FAILURE"
	CodePersistenceFailed Code = "PERSISTENCE_FAILED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeTerrainSizeInvalid,
		CodeTerrainSizeTooLarge,
		CodeTerrainTypeInvalid,
		CodeTerrainGroupIDMissing,
		CodeTransactionIDMissing,
		CodeUnsupportedOperation,
		CodeOperationPayloadInvalid:
		return codes.InvalidArgument

	// NotFound - resource doesn't exist or is no longer usable
	case CodeTerrainGroupNotFound,
		CodeTileNotFound,
		CodeTransactionNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
