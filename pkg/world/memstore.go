package world

import (
	"fmt"
	"strconv"
	"sync"
)

// MemStore is an in-memory Store with full revision semantics. It backs
// the eval harness and tests; the server uses bbolt.
type MemStore struct {
	mu   sync.Mutex
	docs map[string]*Object
	revs map[string]uint64
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		docs: make(map[string]*Object),
		revs: make(map[string]uint64),
	}
}

var _ Store = (*MemStore)(nil)

// Fetch implements Store.
func (m *MemStore) Fetch(id string) (*Object, Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.docs[id]
	if !ok {
		return nil, "", fmt.Errorf("world: fetch %s: %w", id, ErrNotFound)
	}
	return obj.Clone(), Revision(strconv.FormatUint(m.revs[id], 10)), nil
}

// Store implements Store.
func (m *MemStore) Store(obj *Object, prior Revision) (Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.revs[obj.ID]
	if err := m.checkPrior(obj.ID, cur, exists, prior); err != nil {
		return "", err
	}
	next := cur + 1
	m.docs[obj.ID] = obj.Clone()
	m.revs[obj.ID] = next
	return Revision(strconv.FormatUint(next, 10)), nil
}

// DeleteByID implements Store.
func (m *MemStore) DeleteByID(id string, prior Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.revs[id]
	if !exists {
		return fmt.Errorf("world: delete %s: %w", id, ErrNotFound)
	}
	if err := m.checkPrior(id, cur, exists, prior); err != nil {
		return err
	}
	delete(m.docs, id)
	delete(m.revs, id)
	return nil
}

func (m *MemStore) checkPrior(id string, cur uint64, exists bool, prior Revision) error {
	if prior == "" {
		if exists {
			return fmt.Errorf("world: create %s over existing: %w", id, ErrConflict)
		}
		return nil
	}
	n, err := strconv.ParseUint(string(prior), 10, 64)
	if err != nil || !exists || n != cur {
		return fmt.Errorf("world: revision %q for %s: %w", prior, id, ErrConflict)
	}
	return nil
}

// ListByIndex implements Store. MemStore answers the same secondary
// views the bbolt store indexes: location and owner.
func (m *MemStore) ListByIndex(name, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, obj := range m.docs {
		switch name {
		case "location":
			if obj.LocationID == key {
				out = append(out, id)
			}
		case "owner":
			if obj.OwnerID == key {
				out = append(out, id)
			}
		default:
			return nil, fmt.Errorf("world: unknown index %q", name)
		}
	}
	return out, nil
}

// Count returns the number of stored objects.
func (m *MemStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}
