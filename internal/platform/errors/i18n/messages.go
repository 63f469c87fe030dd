package i18n

// Error codes must match internal/platform/errors/codes.go.
const (
	CodeTerrainSizeInvalid      = "TERRAIN_SIZE_INVALID"
	CodeTerrainSizeTooLarge     = "TERRAIN_SIZE_TOO_LARGE"
	CodeGrowthExhausted         = "GROWTH_EXHAUSTED"
	CodeTerrainTypeInvalid      = "TERRAIN_TYPE_INVALID"
	CodeTerrainGroupNotFound    = "TERRAIN_GROUP_NOT_FOUND"
	CodeTerrainGroupIDMissing   = "TERRAIN_GROUP_ID_MISSING"
	CodeTileNotFound            = "TILE_NOT_FOUND"
	CodeTransactionNotFound     = "TRANSACTION_NOT_FOUND"
	CodeTransactionIDMissing    = "TRANSACTION_ID_MISSING"
	CodeTransactionFailed       = "TRANSACTION_FAILED"
	CodeUnsupportedOperation    = "UNSUPPORTED_OPERATION"
	CodeOperationPayloadInvalid = "OPERATION_PAYLOAD_INVALID"
	CodeStorageFailure          = "STORAGE_FAILURE"
	CodePersistenceFailed       = "PERSISTENCE_FAILED"
)

var enUS = map[Code]string{
	CodeTerrainSizeInvalid:      "total_land_hexagons must be greater than 0.",
	CodeTerrainSizeTooLarge:     "total_land_hexagons must be at most {{.Max}}.",
	CodeGrowthExhausted:         "Terrain could not be grown to {{.Target}} tiles.",
	CodeTerrainTypeInvalid:      "Unknown terrain type {{.TerrainType}}.",
	CodeTerrainGroupNotFound:    "Terrain not found.",
	CodeTerrainGroupIDMissing:   "A terrain group id is required.",
	CodeTileNotFound:            "Tile {{.TileID}} was not found.",
	CodeTransactionNotFound:     "Transaction {{.TransactionID}} was not found or already finished.",
	CodeTransactionIDMissing:    "A transaction id is required.",
	CodeTransactionFailed:       "The transaction failed and was rolled back.",
	CodeUnsupportedOperation:    "Operation {{.OperationType}} is not supported for {{.EntityType}}.",
	CodeOperationPayloadInvalid: "The operation payload is invalid.",
	CodeStorageFailure:          "Storage is unavailable.",
	CodePersistenceFailed:       "Failed to store terrain.",
}

var ptBR = map[Code]string{
	CodeTerrainSizeInvalid:      "total_land_hexagons deve ser maior que 0.",
	CodeTerrainSizeTooLarge:     "total_land_hexagons deve ser no máximo {{.Max}}.",
	CodeGrowthExhausted:         "Não foi possível gerar {{.Target}} hexágonos.",
	CodeTerrainTypeInvalid:      "Tipo de terreno desconhecido {{.TerrainType}}.",
	CodeTerrainGroupNotFound:    "Terreno não encontrado.",
	CodeTerrainGroupIDMissing:   "O id do grupo de terreno é obrigatório.",
	CodeTileNotFound:            "Hexágono {{.TileID}} não encontrado.",
	CodeTransactionNotFound:     "Transação {{.TransactionID}} não encontrada ou já finalizada.",
	CodeTransactionIDMissing:    "O id da transação é obrigatório.",
	CodeTransactionFailed:       "A transação falhou e foi desfeita.",
	CodeUnsupportedOperation:    "Operação {{.OperationType}} não suportada para {{.EntityType}}.",
	CodeOperationPayloadInvalid: "O conteúdo da operação é inválido.",
	CodeStorageFailure:          "Armazenamento indisponível.",
	CodePersistenceFailed:       "Falha ao armazenar o terreno.",
}
