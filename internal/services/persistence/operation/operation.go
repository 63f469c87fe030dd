// Package operation turns queued entity operations into closures the
// transaction coordinator replays against a storage session at commit.
package operation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/hexterrain/internal/platform/errors"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage"
)

// Kind is the operation verb.
type Kind string

const (
	KindCreate Kind = "CREATE"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

// ParseKind normalizes an operation verb. Unknown verbs are unsupported.
func ParseKind(value string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(value)))
	switch k {
	case KindCreate, KindUpdate, KindDelete:
		return k, nil
	}
	return "", unsupported(value, "")
}

// Operation is one deferred write. Operations replay in ascending Sequence.
type Operation struct {
	Sequence   int64
	Kind       Kind
	EntityType string
	Payload    json.RawMessage
}

// Func applies one operation to a session.
type Func func(ctx context.Context, s storage.Session) error

// Handler builds closures for a single entity type.
type Handler interface {
	Build(kind Kind, payload json.RawMessage) (Func, error)
}

// ErrUnsupportedOperation matches (via errors.Is) every error for an
// unregistered entity type or a verb its handler does not implement.
var ErrUnsupportedOperation = apperrors.New(apperrors.CodeUnsupportedOperation, "unsupported operation")

// Registry maps entity types to handlers. New entity types register without
// touching existing handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewDefaultRegistry returns a registry with the TerrainTile handler.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(EntityTerrainTile, NewTerrainTileHandler(nil))
	return r
}

// Register installs h for entityType, replacing any previous handler.
func (r *Registry) Register(entityType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[entityType] = h
}

// Build resolves op to a closure without touching storage.
func (r *Registry) Build(op Operation) (Func, error) {
	r.mu.RLock()
	h, ok := r.handlers[op.EntityType]
	r.mu.RUnlock()
	if !ok {
		return nil, unsupported(string(op.Kind), op.EntityType)
	}
	return h.Build(op.Kind, op.Payload)
}

func unsupported(kind, entityType string) error {
	return apperrors.WithMetadata(apperrors.CodeUnsupportedOperation,
		"unsupported operation "+kind+" on entity "+entityType,
		map[string]string{"OperationType": kind, "EntityType": entityType})
}
