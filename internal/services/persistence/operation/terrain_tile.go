package operation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	apperrors "github.com/louisbranch/hexterrain/internal/platform/errors"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage"
	"github.com/louisbranch/hexterrain/internal/terrain/biome"
)

// EntityTerrainTile is the entity type name for terrain tiles.
const EntityTerrainTile = "TerrainTile"

// TerrainTilePayload is the JSON body of a TerrainTile operation. The group
// is named group_id; terrain_group_id and terrain_id are accepted as the
// same field.
type TerrainTilePayload struct {
	GroupID        string `json:"group_id,omitempty"`
	TerrainGroupID string `json:"terrain_group_id,omitempty"`
	TerrainID      string `json:"terrain_id,omitempty"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	TerrainType    string `json:"terrain_type,omitempty"`
}

// Group returns the payload's group under whichever key it was sent.
// Different values under two keys are rejected.
func (p TerrainTilePayload) Group() (string, error) {
	group := ""
	for _, v := range []string{p.GroupID, p.TerrainGroupID, p.TerrainID} {
		if v == "" {
			continue
		}
		if group != "" && v != group {
			return "", apperrors.New(apperrors.CodeOperationPayloadInvalid,
				"operation payload names two different groups")
		}
		group = v
	}
	return group, nil
}

const (
	terrainTypeSchema = `{"type": "string", "enum": ["mountain", "hills", "forest", "plains", "desert", "lake"]}`
	groupIDSchema     = `{"type": "string", "minLength": 1}`

	tileProperties = `"properties": {
    "group_id": ` + groupIDSchema + `,
    "terrain_group_id": ` + groupIDSchema + `,
    "terrain_id": ` + groupIDSchema + `,
    "x": {"type": "integer"},
    "y": {"type": "integer"},
    "terrain_type": ` + terrainTypeSchema + `
  }`

	requireGroup = `"anyOf": [
    {"required": ["group_id"]},
    {"required": ["terrain_group_id"]},
    {"required": ["terrain_id"]}
  ]`
)

var terrainTileSchemas = map[Kind]string{
	KindCreate: `{
  "type": "object",
  "required": ["x", "y", "terrain_type"],
  ` + tileProperties + `
}`,
	KindUpdate: `{
  "type": "object",
  "required": ["x", "y", "terrain_type"],
  ` + requireGroup + `,
  ` + tileProperties + `
}`,
	KindDelete: `{
  "type": "object",
  "required": ["x", "y"],
  ` + requireGroup + `,
  ` + tileProperties + `
}`,
}

// TerrainTileHandler builds closures over the terrain_tiles table.
type TerrainTileHandler struct {
	schemas    map[Kind]*gojsonschema.Schema
	newGroupID func() string
}

// NewTerrainTileHandler compiles the payload schemas. newGroupID supplies
// the group for CREATE payloads without one; nil uses random UUIDs.
func NewTerrainTileHandler(newGroupID func() string) *TerrainTileHandler {
	if newGroupID == nil {
		newGroupID = uuid.NewString
	}
	schemas := make(map[Kind]*gojsonschema.Schema, len(terrainTileSchemas))
	for kind, doc := range terrainTileSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			panic(fmt.Sprintf("compile %s schema: %v", kind, err))
		}
		schemas[kind] = schema
	}
	return &TerrainTileHandler{schemas: schemas, newGroupID: newGroupID}
}

// Build validates payload against the schema for kind and returns its closure.
func (h *TerrainTileHandler) Build(kind Kind, payload json.RawMessage) (Func, error) {
	schema, ok := h.schemas[kind]
	if !ok {
		return nil, unsupported(string(kind), EntityTerrainTile)
	}
	p, err := decodeTerrainTile(schema, payload)
	if err != nil {
		return nil, err
	}
	groupID, err := p.Group()
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindCreate:
		return func(ctx context.Context, s storage.Session) error {
			group := groupID
			if group == "" {
				group = h.newGroupID()
			}
			_, err := s.InsertTile(ctx, storage.Tile{
				X:           p.X,
				Y:           p.Y,
				TerrainType: biome.Biome(p.TerrainType),
				GroupID:     group,
			})
			return err
		}, nil
	case KindUpdate:
		return func(ctx context.Context, s storage.Session) error {
			_, err := s.UpdateTileTerrainAt(ctx, groupID, p.X, p.Y, biome.Biome(p.TerrainType))
			return err
		}, nil
	default:
		return func(ctx context.Context, s storage.Session) error {
			_, err := s.DeleteTilesAt(ctx, groupID, p.X, p.Y)
			return err
		}, nil
	}
}

func decodeTerrainTile(schema *gojsonschema.Schema, payload json.RawMessage) (TerrainTilePayload, error) {
	var p TerrainTilePayload
	if len(payload) == 0 {
		return p, apperrors.New(apperrors.CodeOperationPayloadInvalid, "operation payload is empty")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return p, apperrors.Wrap(apperrors.CodeOperationPayloadInvalid, "operation payload is not valid JSON", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return p, apperrors.New(apperrors.CodeOperationPayloadInvalid,
			"operation payload failed validation: "+strings.Join(problems, "; "))
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, apperrors.Wrap(apperrors.CodeOperationPayloadInvalid, "decode operation payload", err)
	}
	return p, nil
}
