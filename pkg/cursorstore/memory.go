package cursorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// MemoryBackend is an in-process Backend, useful for tests and as the
// fallback when no durable backend is configured.
type MemoryBackend struct {
	mu   sync.Mutex
	id   objectid.ObjectId
	head ConnectorStateObject
	has  bool
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) LoadHead(_ context.Context) (objectid.ObjectId, ConnectorStateObject, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, m.head, m.has, nil
}

func (m *MemoryBackend) StoreStateObject(_ context.Context, obj ConnectorStateObject) (objectid.ObjectId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, err := canonical.CBOR(obj)
	if err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: canonicalize state object: %w", err)
	}
	id := objectid.FromUnscopedBytes(body)
	m.id = id
	m.head = obj
	m.has = true
	return id, nil
}
