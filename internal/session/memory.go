package session

import "sync"

// MemoryStore keeps slots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]string

	// test hooks
	getErr error
	setErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.slots[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.slots[key] = value
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	delete(m.slots, key)
	return nil
}

// FailReads makes every Get return err (nil restores normal behavior).
func (m *MemoryStore) FailReads(err error) {
	m.mu.Lock()
	m.getErr = err
	m.mu.Unlock()
}

// FailWrites makes every Set and Remove return err (nil restores normal behavior).
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	m.setErr = err
	m.mu.Unlock()
}
