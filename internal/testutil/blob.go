package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/crewfund/crew/internal/app/system/blob"
)

// MemBlobs is an in-memory blob.Store.
type MemBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailPut, when set, is returned by every Put.
	FailPut error
}

var _ blob.Store = (*MemBlobs)(nil)

func (m *MemBlobs) Put(_ context.Context, objPath string, r io.Reader, _ *blob.PutOptions) error {
	if m.FailPut != nil {
		return m.FailPut
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[objPath] = b
	return nil
}

func (m *MemBlobs) URL(_ context.Context, objPath string) (string, error) {
	return "/files/" + objPath, nil
}

func (m *MemBlobs) Delete(_ context.Context, objPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objPath)
	return nil
}

// Object returns the stored bytes at objPath.
func (m *MemBlobs) Object(objPath string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[objPath]
	return b, ok
}

// Len reports how many objects are stored.
func (m *MemBlobs) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
