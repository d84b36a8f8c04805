package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/pressworks/disseminator/internal/model"
)

// MemoryClient is an in-memory registry used by tests and dry runs. An
// RWMutex guards the maps so bulk runs can read works concurrently while
// location writes stay serialized.
type MemoryClient struct {
	mu        sync.RWMutex
	works     map[string]*model.WorkRecord
	locations []model.LocationRecord
}

// NewMemory constructs an empty MemoryClient.
func NewMemory() *MemoryClient {
	return &MemoryClient{works: make(map[string]*model.WorkRecord)}
}

// SaveWork inserts or replaces a work snapshot.
func (m *MemoryClient) SaveWork(rec *model.WorkRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.works[rec.ID] = rec
}

// GetWork returns a copy of the stored work so callers cannot mutate
// registry state through the snapshot.
func (m *MemoryClient) GetWork(_ context.Context, workID string) (*model.WorkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.works[workID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, workID)
	}
	cp := *rec
	cp.Locations = append([]model.LocationRecord(nil), rec.Locations...)
	for _, loc := range m.locations {
		if loc.WorkID == workID {
			cp.Locations = append(cp.Locations, loc)
		}
	}
	return &cp, nil
}

// PutLocation appends a location record.
func (m *MemoryClient) PutLocation(_ context.Context, rec model.LocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, rec)
	return nil
}

// Locations returns a snapshot of every recorded location, for assertions.
func (m *MemoryClient) Locations() []model.LocationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.LocationRecord(nil), m.locations...)
}
